// ABOUTME: Ogg Opus stream parser
// ABOUTME: Reassembles packets from Ogg pages and reports OpusHead as side data
package parse

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	log "github.com/sirupsen/logrus"
)

const (
	oggHeaderLen   = 27
	opusSampleRate = 48000

	// Nominal 20 ms packet; the real count is in each descriptor
	opusDefaultFrames = 960
)

var (
	oggCapture = []byte("OggS")
	opusHead   = []byte("OpusHead")
	opusTags   = []byte("OpusTags")

	// ErrUnsupportedOgg is returned for Ogg streams that do not carry Opus
	ErrUnsupportedOgg = errors.New("ogg stream does not carry opus")
)

// OggParser reassembles Opus packets from the first logical Ogg stream
type OggParser struct {
	listener audio.PacketListener
	pending  stash
	out      batch

	serial   uint32
	locked   bool
	headSeen bool
	tagsSeen bool
	partial  []byte // packet continued on the next page
	packets  []byte // completed packets of the current page
	skipped  int
}

// NewOgg creates an Ogg Opus parser
func NewOgg(listener audio.PacketListener) *OggParser {
	return &OggParser{listener: listener}
}

// Parse consumes whole pages and keeps a trailing partial one
func (p *OggParser) Parse(data []byte) error {
	p.pending.push(data)
	buf := p.pending.buf

	n := 0
	var err error
	for n+oggHeaderLen <= len(buf) {
		if !bytes.HasPrefix(buf[n:], oggCapture) || buf[n+4] != 0 {
			n++
			p.skipped++
			continue
		}

		segments := int(buf[n+26])
		if n+oggHeaderLen+segments > len(buf) {
			break
		}
		lacing := buf[n+oggHeaderLen : n+oggHeaderLen+segments]
		bodyLen := 0
		for _, l := range lacing {
			bodyLen += int(l)
		}
		pageLen := oggHeaderLen + segments + bodyLen
		if n+pageLen > len(buf) {
			break
		}

		if err = p.page(buf[n:n+pageLen], lacing); err != nil {
			break
		}
		n += pageLen
	}

	if p.skipped > 0 {
		log.Debugf("Ogg resync skipped %d bytes", p.skipped)
		p.skipped = 0
	}
	p.pending.consume(n)
	return err
}

// page splits one page into packets using its lacing values
func (p *OggParser) page(page, lacing []byte) error {
	headerType := page[5]
	serial := binary.LittleEndian.Uint32(page[14:18])

	if !p.locked {
		if headerType&0x02 == 0 {
			return nil // wait for a beginning of stream page
		}
		p.serial = serial
		p.locked = true
	}
	if serial != p.serial {
		return nil
	}
	if headerType&0x01 == 0 && len(p.partial) > 0 {
		// Continuation flag missing: the partial packet is lost
		p.partial = p.partial[:0]
	}

	body := page[oggHeaderLen+len(lacing):]
	p.packets = p.packets[:0]

	start := 0
	pos := 0
	for _, l := range lacing {
		pos += int(l)
		if l == 255 {
			continue
		}
		p.partial = append(p.partial, body[start:pos]...)
		if err := p.packet(p.partial); err != nil {
			return err
		}
		p.partial = p.partial[:0]
		start = pos
	}
	if start < pos {
		p.partial = append(p.partial, body[start:pos]...)
	}

	p.out.emit(p.listener, p.packets)

	if headerType&0x04 != 0 {
		// End of stream: the next chained stream starts with its own head
		p.locked = false
		p.headSeen = false
		p.tagsSeen = false
		p.partial = p.partial[:0]
	}
	return nil
}

func (p *OggParser) packet(pkt []byte) error {
	switch {
	case !p.headSeen:
		if !bytes.HasPrefix(pkt, opusHead) {
			return ErrUnsupportedOgg
		}
		if len(pkt) < 19 {
			return fmt.Errorf("opus head too short: %d bytes", len(pkt))
		}
		p.headSeen = true

		channels := int(pkt[9])
		p.listener.OnSideData(append([]byte(nil), pkt...))
		p.listener.OnFormat(audio.Format{
			Codec:           audio.CodecOpus,
			SampleRate:      opusSampleRate,
			Channels:        channels,
			FramesPerPacket: opusDefaultFrames,
		})
		return nil

	case !p.tagsSeen:
		p.tagsSeen = true
		if bytes.HasPrefix(pkt, opusTags) {
			return nil
		}
	}

	if len(pkt) == 0 {
		return nil
	}
	offset := len(p.packets)
	p.packets = append(p.packets, pkt...)
	p.out.add(offset, len(pkt), opusPacketFrames(pkt))
	return nil
}

// opusPacketFrames returns the 48 kHz sample count of an Opus packet from
// its TOC byte
func opusPacketFrames(pkt []byte) int {
	if len(pkt) == 0 {
		return 0
	}
	toc := pkt[0]
	config := int(toc >> 3)

	// Frame duration in units of 2.5 ms
	var units int
	switch {
	case config < 12: // SILK: 10, 20, 40, 60 ms
		units = [4]int{4, 8, 16, 24}[config&3]
	case config < 16: // hybrid: 10, 20 ms
		units = [2]int{4, 8}[config&1]
	default: // CELT: 2.5, 5, 10, 20 ms
		units = [4]int{1, 2, 4, 8}[config&3]
	}

	var count int
	switch toc & 0x03 {
	case 0:
		count = 1
	case 1, 2:
		count = 2
	default:
		if len(pkt) < 2 {
			return 0
		}
		count = int(pkt[1] & 0x3F)
	}
	return count * units * 120
}

// Flush drops a packet left unfinished by a truncated stream
func (p *OggParser) Flush() error {
	p.partial = p.partial[:0]
	p.pending.reset()
	return nil
}

// Close releases resources
func (p *OggParser) Close() error {
	p.partial = nil
	p.packets = nil
	p.pending.reset()
	return nil
}
