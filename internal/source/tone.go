// ABOUTME: Test tone generator source
// ABOUTME: Generates a sine wave as raw PCM or as an Ogg Opus stream
package source

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/encode"
)

// DefaultToneFrequency is the A4 note
const DefaultToneFrequency = 440.0

// toneSerial is the Ogg stream serial used by generated tones
const toneSerial = 0x746f6e65

// Tone generates a sine wave at 50% volume, duplicated to every channel
type Tone struct {
	format    audio.Format
	frequency float64
	frameSize int
	total     uint64 // frames to generate, 0 for endless
	index     uint64

	stream  *encode.StreamWriter
	pending bytes.Buffer
	done    bool
}

// NewTone creates a tone source. The format codec is "pcm" (16 or 24 bit)
// or "opus" (Ogg encapsulated). A zero duration never ends.
func NewTone(format audio.Format, frequency float64, duration time.Duration) (*Tone, error) {
	if frequency <= 0 {
		frequency = DefaultToneFrequency
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid tone format: %s", format)
	}
	if format.Codec != audio.CodecPCM && format.Codec != audio.CodecOpus {
		return nil, fmt.Errorf("unsupported tone codec: %s", format.Codec)
	}

	t := &Tone{
		format:    format,
		frequency: frequency,
		total:     uint64(int64(duration) * int64(format.SampleRate) / int64(time.Second)),
	}

	stream, err := encode.NewStreamWriter(&t.pending, format, toneSerial)
	if err != nil {
		return nil, err
	}
	t.stream = stream
	t.frameSize = stream.Format().FramesPerPacket

	return t, nil
}

// Format returns the generated stream format
func (t *Tone) Format() audio.Format {
	return t.format
}

func (t *Tone) Read(p []byte) (int, error) {
	for t.pending.Len() == 0 {
		if t.done {
			return 0, io.EOF
		}
		if err := t.generate(); err != nil {
			return 0, err
		}
	}
	return t.pending.Read(p)
}

// generate writes the next packet's worth of samples, ending the stream
// once the duration is reached
func (t *Tone) generate() error {
	frames := t.frameSize
	if t.total > 0 {
		frames = int(min(uint64(frames), t.total-t.index))
	}

	channels := t.format.Channels
	samples := make([]int32, frames*channels)
	for i := 0; i < frames; i++ {
		pos := float64(t.index+uint64(i)) / float64(t.format.SampleRate)
		value := int32(math.Sin(2*math.Pi*t.frequency*pos) * audio.Max24Bit * 0.5)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = value
		}
	}
	t.index += uint64(frames)

	if err := t.stream.Write(samples); err != nil {
		return fmt.Errorf("tone encode failed: %w", err)
	}
	if t.total > 0 && t.index >= t.total {
		t.done = true
		return t.stream.Close()
	}
	return nil
}

// Close releases the encoder
func (t *Tone) Close() error {
	t.done = true
	err := t.stream.Close()
	t.pending.Reset()
	return err
}
