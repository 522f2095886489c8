// ABOUTME: ADTS (AAC) stream parser
// ABOUTME: Emits AudioSpecificConfig side data, the format and raw AAC frames
package parse

import (
	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	log "github.com/sirupsen/logrus"
)

const adtsFramesPerBlock = 1024

var adtsSampleRates = [...]int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

type adtsHeader struct {
	headerLen int
	frameLen  int
	profile   int
	rateIndex int
	channels  int
	blocks    int
}

// parseADTSHeader decodes the fixed and variable header at b[0:7]
func parseADTSHeader(b []byte) (adtsHeader, bool) {
	if len(b) < 7 || b[0] != 0xFF || b[1]&0xF6 != 0xF0 {
		return adtsHeader{}, false
	}

	h := adtsHeader{
		headerLen: 7,
		profile:   int(b[2] >> 6),
		rateIndex: int(b[2]>>2) & 0x0F,
		channels:  int(b[2]&0x01)<<2 | int(b[3]>>6),
		frameLen:  int(b[3]&0x03)<<11 | int(b[4])<<3 | int(b[5]>>5),
		blocks:    int(b[6]&0x03) + 1,
	}
	if b[1]&0x01 == 0 {
		h.headerLen = 9 // CRC present
	}
	if h.rateIndex >= len(adtsSampleRates) || h.channels == 0 || h.frameLen <= h.headerLen {
		return adtsHeader{}, false
	}
	return h, true
}

// audioSpecificConfig builds the two-byte decoder config for the header
func (h adtsHeader) audioSpecificConfig() []byte {
	v := (h.profile+1)<<11 | h.rateIndex<<7 | h.channels<<3
	return []byte{byte(v >> 8), byte(v)}
}

func (h adtsHeader) format() audio.Format {
	return audio.Format{
		Codec:           audio.CodecAAC,
		SampleRate:      adtsSampleRates[h.rateIndex],
		Channels:        h.channels,
		FramesPerPacket: adtsFramesPerBlock,
	}
}

// ADTSParser strips ADTS headers and reports raw AAC frames
type ADTSParser struct {
	listener audio.PacketListener
	format   audio.Format
	pending  stash
	out      batch
	skipped  int
}

// NewADTS creates an ADTS parser
func NewADTS(listener audio.PacketListener) *ADTSParser {
	return &ADTSParser{listener: listener}
}

// Parse reports every complete frame and keeps a trailing partial one
func (p *ADTSParser) Parse(data []byte) error {
	p.pending.push(data)
	buf := p.pending.buf

	n := 0
	for n+7 <= len(buf) {
		h, ok := parseADTSHeader(buf[n:])
		if !ok {
			n++
			p.skipped++
			continue
		}
		if n+h.frameLen > len(buf) {
			break
		}

		f := h.format()
		if f != p.format {
			// Packets already collected belong to the previous format
			p.out.emit(p.listener, buf)
			p.listener.OnSideData(h.audioSpecificConfig())
			p.listener.OnFormat(f)
			p.format = f
		}

		p.out.add(n+h.headerLen, h.frameLen-h.headerLen, adtsFramesPerBlock*h.blocks)
		n += h.frameLen
	}

	if p.skipped > 0 {
		log.Debugf("ADTS resync skipped %d bytes", p.skipped)
		p.skipped = 0
	}
	p.out.emit(p.listener, buf)
	p.pending.consume(n)
	return nil
}

// Flush discards a trailing partial frame
func (p *ADTSParser) Flush() error {
	p.pending.reset()
	return nil
}

// Close releases resources
func (p *ADTSParser) Close() error {
	p.pending.reset()
	return nil
}
