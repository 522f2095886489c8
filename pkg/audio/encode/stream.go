// ABOUTME: Frame-packing stream writer over an encoder
// ABOUTME: Buffers samples into whole packets and frames them as raw PCM or Ogg Opus
package encode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// StreamWriter accepts samples in any run length and writes them as
// FrameSize packets. PCM packets go to w as raw bytes. Opus packets are
// wrapped in Ogg pages, with the final packet padded with silence and the
// padding trimmed from the closing granule.
type StreamWriter struct {
	w       io.Writer
	encoder Encoder
	ogg     *OggWriter

	channels int
	pending  []int32
	frames   uint64
	packets  int
	closed   bool
}

// NewStreamWriter creates a stream writer for format
func NewStreamWriter(w io.Writer, format audio.Format, serial uint32) (*StreamWriter, error) {
	encoder, err := New(format)
	if err != nil {
		return nil, err
	}

	s := &StreamWriter{
		w:        w,
		encoder:  encoder,
		channels: format.Channels,
	}
	if format.Codec == audio.CodecOpus {
		ogg, err := NewOggWriter(w, encoder.Format(), serial)
		if err != nil {
			encoder.Close()
			return nil, err
		}
		s.ogg = ogg
	}
	s.pending = make([]int32, 0, encoder.FrameSize()*s.channels)
	return s, nil
}

// Format returns the encoded stream format
func (s *StreamWriter) Format() audio.Format {
	return s.encoder.Format()
}

// Frames returns the frames accepted so far, padding excluded
func (s *StreamWriter) Frames() uint64 {
	return s.frames
}

// Packets returns the packets written so far
func (s *StreamWriter) Packets() int {
	return s.packets
}

// Write queues interleaved samples, writing every packet they complete
func (s *StreamWriter) Write(samples []int32) error {
	if s.closed {
		return fmt.Errorf("stream writer closed")
	}
	if len(samples)%s.channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrFrameSize, len(samples), s.channels)
	}
	s.frames += uint64(len(samples) / s.channels)

	packetLen := cap(s.pending)
	for len(samples) > 0 {
		n := min(packetLen-len(s.pending), len(samples))
		s.pending = append(s.pending, samples[:n]...)
		samples = samples[n:]
		if len(s.pending) == packetLen {
			if err := s.writePacket(s.pending); err != nil {
				return err
			}
			s.pending = s.pending[:0]
		}
	}
	return nil
}

func (s *StreamWriter) writePacket(samples []int32) error {
	data, err := s.encoder.Encode(samples)
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	s.packets++

	if s.ogg != nil {
		return s.ogg.WritePacket(data, len(samples)/s.channels)
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}

// Close flushes the partial packet, ends an Ogg stream and releases the
// encoder
func (s *StreamWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.flush()
	if cerr := s.encoder.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *StreamWriter) flush() error {
	partial := len(s.pending)
	if s.ogg == nil {
		if partial == 0 {
			return nil
		}
		return s.writePacket(s.pending)
	}

	padding := 0
	if partial > 0 {
		padding = (cap(s.pending) - partial) / s.channels
		s.pending = s.pending[:cap(s.pending)]
		clear(s.pending[partial:])
		if err := s.writePacket(s.pending); err != nil {
			return err
		}
	}
	return s.ogg.Finish(padding)
}
