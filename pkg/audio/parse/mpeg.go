// ABOUTME: MPEG audio (MP1/MP2/MP3) frame parser
// ABOUTME: Skips ID3v2 tags and reports whole frames, header included
package parse

import (
	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	log "github.com/sirupsen/logrus"
)

const (
	mpegVersion25 = 0
	mpegVersion2  = 2
	mpegVersion1  = 3

	mpegLayer3 = 1
	mpegLayer2 = 2
	mpegLayer1 = 3
)

// Bitrates in kbit/s indexed by [version1?0:1][layer-1][index]
var mpegBitrates = [2][3][16]int{
	{ // MPEG-1
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},     // layer III
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},    // layer II
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}, // layer I
	},
	{ // MPEG-2 and 2.5
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
	},
}

var mpegSampleRates = [4][3]int{
	mpegVersion25: {11025, 12000, 8000},
	mpegVersion2:  {22050, 24000, 16000},
	mpegVersion1:  {44100, 48000, 32000},
}

type mpegHeader struct {
	version    int
	layer      int
	sampleRate int
	channels   int
	frameLen   int
	samples    int
}

// parseMPEGHeader decodes a 4-byte frame header. Free-format frames are
// rejected since their length cannot be read from the header.
func parseMPEGHeader(b []byte) (mpegHeader, bool) {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return mpegHeader{}, false
	}

	version := int(b[1]>>3) & 0x03
	layer := int(b[1]>>1) & 0x03
	bitrateIndex := int(b[2] >> 4)
	rateIndex := int(b[2]>>2) & 0x03
	padding := int(b[2]>>1) & 0x01

	if version == 1 || layer == 0 || bitrateIndex == 0 || bitrateIndex == 15 || rateIndex == 3 {
		return mpegHeader{}, false
	}

	table := 0
	if version != mpegVersion1 {
		table = 1
	}
	bitrate := mpegBitrates[table][layer-1][bitrateIndex] * 1000
	rate := mpegSampleRates[version][rateIndex]

	h := mpegHeader{
		version:    version,
		layer:      layer,
		sampleRate: rate,
		channels:   2,
	}
	if b[3]>>6 == 3 {
		h.channels = 1
	}

	switch {
	case layer == mpegLayer1:
		h.samples = 384
		h.frameLen = (12*bitrate/rate + padding) * 4
	case layer == mpegLayer3 && version != mpegVersion1:
		h.samples = 576
		h.frameLen = 72*bitrate/rate + padding
	default:
		h.samples = 1152
		h.frameLen = 144*bitrate/rate + padding
	}
	return h, true
}

// id3v2Size returns the full length of an ID3v2 tag at b, or 0
func id3v2Size(b []byte) (int, bool) {
	if len(b) < 10 {
		return 0, false
	}
	if b[0] != 'I' || b[1] != 'D' || b[2] != '3' {
		return 0, true
	}
	size := int(b[6]&0x7F)<<21 | int(b[7]&0x7F)<<14 | int(b[8]&0x7F)<<7 | int(b[9]&0x7F)
	size += 10
	if b[5]&0x10 != 0 {
		size += 10 // footer
	}
	return size, true
}

// MPEGParser reports MPEG audio frames
type MPEGParser struct {
	listener audio.PacketListener
	format   audio.Format
	pending  stash
	out      batch
	tagSkip  int // bytes of an ID3v2 tag still to discard
	skipped  int
}

// NewMPEG creates an MPEG audio parser
func NewMPEG(listener audio.PacketListener) *MPEGParser {
	return &MPEGParser{listener: listener}
}

// Parse reports every complete frame and keeps a trailing partial one
func (p *MPEGParser) Parse(data []byte) error {
	if p.tagSkip > 0 {
		if len(data) <= p.tagSkip {
			p.tagSkip -= len(data)
			return nil
		}
		data = data[p.tagSkip:]
		p.tagSkip = 0
	}

	p.pending.push(data)
	buf := p.pending.buf

	n := 0
	for n+4 <= len(buf) {
		if buf[n] == 'I' {
			size, complete := id3v2Size(buf[n:])
			if !complete {
				break
			}
			if size > 0 {
				if n+size > len(buf) {
					p.tagSkip = n + size - len(buf)
					n = len(buf)
					break
				}
				n += size
				continue
			}
		}

		h, ok := parseMPEGHeader(buf[n:])
		if !ok {
			n++
			p.skipped++
			continue
		}
		if n+h.frameLen > len(buf) {
			break
		}

		f := audio.Format{
			Codec:           audio.CodecMP3,
			SampleRate:      h.sampleRate,
			Channels:        h.channels,
			FramesPerPacket: h.samples,
		}
		if f != p.format {
			p.out.emit(p.listener, buf)
			p.listener.OnFormat(f)
			p.format = f
		}

		p.out.add(n, h.frameLen, h.samples)
		n += h.frameLen
	}

	if p.skipped > 0 {
		log.Debugf("MPEG resync skipped %d bytes", p.skipped)
		p.skipped = 0
	}
	p.out.emit(p.listener, buf)
	p.pending.consume(n)
	return nil
}

// Flush discards a trailing partial frame
func (p *MPEGParser) Flush() error {
	p.pending.reset()
	return nil
}

// Close releases resources
func (p *MPEGParser) Close() error {
	p.pending.reset()
	return nil
}
