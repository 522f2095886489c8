// ABOUTME: Ogg Opus stream writer
// ABOUTME: Wraps Opus packets in Ogg pages with OpusHead and OpusTags headers
package encode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

const (
	oggHeaderLen = 27
	oggVersion   = 0

	pageBOS = 0x02
	pageEOS = 0x04

	// Encoder lookahead for 48 kHz streams, as libopus reports it
	opusPreSkip = 312

	// Ogg Opus granule positions count 48 kHz samples whatever the input rate
	granuleRate = 48000
)

var oggCRCTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		r := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func oggCRC(b []byte) uint32 {
	var crc uint32
	for _, v := range b {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^v]
	}
	return crc
}

// OggWriter writes a single logical Opus stream, one packet per page.
// Page granules include the pre-skip, so the last page's granule minus
// the pre-skip is the playable length in 48 kHz samples.
type OggWriter struct {
	w        io.Writer
	serial   uint32
	seq      uint32
	rate     int
	channels int
	frames   uint64 // input frames written, at rate
	started  bool
	closed   bool
}

// NewOggWriter creates a writer for an Opus stream in format
func NewOggWriter(w io.Writer, format audio.Format, serial uint32) (*OggWriter, error) {
	if format.Codec != audio.CodecOpus {
		return nil, fmt.Errorf("invalid codec for Ogg writer: %s", format.Codec)
	}
	if !opusRate(format.SampleRate) {
		return nil, fmt.Errorf("unsupported opus sample rate: %d", format.SampleRate)
	}
	if format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d", format.Channels)
	}
	return &OggWriter{w: w, serial: serial, rate: format.SampleRate, channels: format.Channels}, nil
}

// OpusHead returns the identification header for the stream
func (o *OggWriter) OpusHead() []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = byte(o.channels)
	binary.LittleEndian.PutUint16(head[10:], opusPreSkip)
	binary.LittleEndian.PutUint32(head[12:], uint32(o.rate))
	return head
}

func (o *OggWriter) writeHeaders() error {
	if err := o.writePage(pageBOS, 0, o.OpusHead()); err != nil {
		return err
	}
	tags := make([]byte, 16)
	copy(tags, "OpusTags")
	return o.writePage(0, 0, tags)
}

// granule converts input frames to a page granule position
func (o *OggWriter) granule(frames uint64) uint64 {
	return opusPreSkip + frames*granuleRate/uint64(o.rate)
}

// Frames returns the input frames written so far, at the stream rate
func (o *OggWriter) Frames() uint64 {
	return o.frames
}

// WritePacket writes one Opus packet holding frames samples per channel at
// the stream rate
func (o *OggWriter) WritePacket(packet []byte, frames int) error {
	if o.closed {
		return fmt.Errorf("ogg writer closed")
	}
	if !o.started {
		if err := o.writeHeaders(); err != nil {
			return err
		}
		o.started = true
	}
	if frames < 0 {
		return fmt.Errorf("negative frame count: %d", frames)
	}
	o.frames += uint64(frames)
	return o.writePage(0, o.granule(o.frames), packet)
}

// Close ends the logical stream with an empty EOS page
func (o *OggWriter) Close() error {
	return o.Finish(0)
}

// Finish ends the logical stream, trimming padding frames of silence the
// last packet was filled with from the final granule
func (o *OggWriter) Finish(padding int) error {
	if o.closed {
		return nil
	}
	o.closed = true
	if !o.started {
		return nil
	}
	end := o.frames
	if padding > 0 {
		end -= min(uint64(padding), end)
	}
	return o.writePage(pageEOS, o.granule(end), nil)
}

func (o *OggWriter) writePage(headerType byte, granule uint64, packet []byte) error {
	var lacing []byte
	n := len(packet)
	for n >= 255 {
		lacing = append(lacing, 255)
		n -= 255
	}
	lacing = append(lacing, byte(n))
	if len(lacing) > 255 {
		return fmt.Errorf("packet of %d bytes does not fit one page", len(packet))
	}

	page := make([]byte, oggHeaderLen, oggHeaderLen+len(lacing)+len(packet))
	copy(page, "OggS")
	page[4] = oggVersion
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:], granule)
	binary.LittleEndian.PutUint32(page[14:], o.serial)
	binary.LittleEndian.PutUint32(page[18:], o.seq)
	page[26] = byte(len(lacing))
	page = append(page, lacing...)
	page = append(page, packet...)
	binary.LittleEndian.PutUint32(page[22:], oggCRC(page))

	o.seq++
	if _, err := o.w.Write(page); err != nil {
		return fmt.Errorf("failed to write ogg page: %w", err)
	}
	return nil
}
