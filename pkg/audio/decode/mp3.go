// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MPEG layer III frames to int32 samples through go-mp3
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder feeds whole frames to go-mp3 and reads back exactly the PCM
// they produce, so the decoder never waits on input that has not arrived.
// go-mp3 always outputs 16-bit stereo.
type MP3Decoder struct {
	format  audio.Format
	source  *frameSource
	decoder *mp3.Decoder
	pcm     []byte
}

// frameSource is the byte stream go-mp3 reads frames from
type frameSource struct {
	buf bytes.Buffer
}

func (s *frameSource) Read(p []byte) (int, error) {
	if s.buf.Len() == 0 {
		return 0, io.EOF
	}
	return s.buf.Read(p)
}

// NewMP3 creates a new MP3 decoder
func NewMP3(format audio.Format) (Decoder, error) {
	if format.Codec != audio.CodecMP3 {
		return nil, fmt.Errorf("invalid codec for MP3 decoder: %s", format.Codec)
	}
	return &MP3Decoder{format: format, source: &frameSource{}}, nil
}

// Decode converts MP3 frames to int32 samples
func (d *MP3Decoder) Decode(data []byte, packets []audio.PacketDescriptor) ([]int32, error) {
	frames := 0
	for _, p := range packets {
		frame := data[p.Offset:p.End()]
		if len(frame) < 4 || (frame[1]>>1)&0x03 != 1 {
			return nil, fmt.Errorf("%w: mpeg audio is not layer III", ErrUnsupportedCodec)
		}
		d.source.buf.Write(frame)
		frames += p.Frames
	}

	if d.decoder == nil {
		dec, err := mp3.NewDecoder(d.source)
		if err != nil {
			d.source.buf.Reset()
			return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
		}
		d.decoder = dec
	}

	// Read decoded PCM data (int16 stereo as bytes)
	want := frames * 4
	if cap(d.pcm) < want {
		d.pcm = make([]byte, want)
	}
	pcm := d.pcm[:want]

	n, err := io.ReadFull(d.decoder, pcm)
	if err != nil {
		// Lost sync; start over with the next buffer
		d.decoder = nil
		d.source.buf.Reset()
		if n == 0 {
			return nil, fmt.Errorf("mp3 decode error: %w", err)
		}
	}

	samples := make([]int32, n/2)
	for i := range samples {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples, nil
}

func (d *MP3Decoder) Channels() int   { return 2 }
func (d *MP3Decoder) SampleRate() int { return d.format.SampleRate }

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	return nil
}
