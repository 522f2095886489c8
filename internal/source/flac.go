// ABOUTME: FLAC byte source
// ABOUTME: Decodes a FLAC stream with mewkiz/flac and re-emits it as raw little-endian PCM
package source

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/encode"
	"github.com/mewkiz/flac"
	log "github.com/sirupsen/logrus"
)

// FLAC reads a FLAC stream and produces PCM at 16 bits for sources of 16
// bits or less, 24 bits otherwise
type FLAC struct {
	src     io.ReadCloser
	stream  *flac.Stream
	format  audio.Format
	bits    int
	encoder encode.Encoder

	samples []int32
	pending []byte
	done    bool
}

// NewFLAC reads the stream header from src
func NewFLAC(src io.ReadCloser) (*FLAC, error) {
	stream, err := flac.New(src)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	bits := int(info.BitsPerSample)
	format := audio.Format{
		Codec:      audio.CodecPCM,
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
		BitDepth:   24,
	}
	if bits <= 16 {
		format.BitDepth = 16
	}

	encoder, err := encode.NewPCM(format)
	if err != nil {
		return nil, fmt.Errorf("unsupported FLAC stream: %w", err)
	}

	log.Debugf("FLAC stream: %d Hz, %d channels, %d bits, %d samples",
		info.SampleRate, info.NChannels, info.BitsPerSample, info.NSamples)

	return &FLAC{
		src:     src,
		stream:  stream,
		format:  format,
		bits:    bits,
		encoder: encoder,
	}, nil
}

// Format returns the PCM format Read produces
func (f *FLAC) Format() audio.Format {
	return f.format
}

func (f *FLAC) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		if f.done {
			return 0, io.EOF
		}
		if err := f.decodeFrame(); err != nil {
			return 0, err
		}
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// decodeFrame moves the next FLAC frame into pending
func (f *FLAC) decodeFrame() error {
	frame, err := f.stream.ParseNext()
	if errors.Is(err, io.EOF) {
		f.done = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("FLAC frame error: %w", err)
	}

	channels := f.format.Channels
	if len(frame.Subframes) != channels {
		return fmt.Errorf("FLAC frame has %d channels, stream has %d", len(frame.Subframes), channels)
	}

	blockSize := int(frame.BlockSize)
	f.samples = f.samples[:0]
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			f.samples = append(f.samples, to24Bit(frame.Subframes[ch].Samples[i], f.bits))
		}
	}

	data, err := f.encoder.Encode(f.samples)
	if err != nil {
		return err
	}
	f.pending = data
	return nil
}

// to24Bit scales a sample of the given bit depth into 24-bit range
func to24Bit(sample int32, bits int) int32 {
	shift := bits - 24
	if shift > 0 {
		return sample >> shift
	}
	return sample << -shift
}

// Close closes the underlying stream
func (f *FLAC) Close() error {
	f.done = true
	f.pending = nil
	f.encoder.Close()
	return f.src.Close()
}

// DecodeFLAC replaces a FLAC stream with its decoded PCM
func DecodeFLAC(s *Stream) (*Stream, error) {
	dec, err := NewFLAC(s.ReadCloser)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	format := dec.Format()
	return &Stream{
		ReadCloser: dec,
		Name:       s.Name,
		Codec:      audio.CodecPCM,
		Format:     &format,
	}, nil
}
