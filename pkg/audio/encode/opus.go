// ABOUTME: Opus audio encoder
// ABOUTME: Encodes fixed-size frames of int32 samples to Opus packets
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket bounds one encoded packet
const maxOpusPacket = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder   *opus.Encoder
	format    audio.Format
	frameSize int
	pcm       []int16
	out       []byte
}

// NewOpus creates a new Opus encoder. FramesPerPacket picks the packet
// duration (2.5 to 60ms); anything else falls back to 20ms.
func NewOpus(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecOpus {
		return nil, fmt.Errorf("invalid codec for Opus encoder: %s", format.Codec)
	}
	if !opusRate(format.SampleRate) {
		return nil, fmt.Errorf("unsupported opus sample rate: %d", format.SampleRate)
	}
	if format.Channels < 1 || format.Channels > 2 {
		return nil, fmt.Errorf("unsupported opus channel count: %d", format.Channels)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	frameSize := format.FramesPerPacket
	if !opusFrameSize(format.SampleRate, frameSize) {
		frameSize = defaultFrameSize(format.SampleRate)
	}
	format.FramesPerPacket = frameSize
	format.BitDepth = 0

	return &OpusEncoder{
		encoder:   encoder,
		format:    format,
		frameSize: frameSize,
		pcm:       make([]int16, frameSize*format.Channels),
		out:       make([]byte, maxOpusPacket),
	}, nil
}

func opusRate(rate int) bool {
	switch rate {
	case 8000, 12000, 16000, 24000, 48000:
		return true
	}
	return false
}

// opusFrameSize reports whether frames is a legal packet duration at rate:
// 2.5, 5, 10, 20, 40 or 60ms
func opusFrameSize(rate, frames int) bool {
	if frames <= 0 || frames*400%rate != 0 {
		return false
	}
	switch frames * 400 / rate {
	case 1, 2, 4, 8, 16, 24:
		return true
	}
	return false
}

// Encode converts exactly FrameSize frames to one Opus packet
func (e *OpusEncoder) Encode(samples []int32) ([]byte, error) {
	if len(samples) != len(e.pcm) {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(samples), len(e.pcm))
	}

	// Opus encodes from int16
	for i, s := range samples {
		e.pcm[i] = audio.SampleToInt16(s)
	}

	n, err := e.encoder.Encode(e.pcm, e.out)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}
	return append([]byte(nil), e.out[:n]...), nil
}

func (e *OpusEncoder) Format() audio.Format { return e.format }
func (e *OpusEncoder) FrameSize() int       { return e.frameSize }

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
