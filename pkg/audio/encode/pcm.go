// ABOUTME: PCM audio encoder
// ABOUTME: Packs int32 samples as little-endian 16-bit or 24-bit PCM
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// PCMEncoder packs samples into raw PCM packets
type PCMEncoder struct {
	format    audio.Format
	frameSize int
}

// NewPCM creates a new PCM encoder. FramesPerPacket sets the packet size
// used by StreamWriter, 20ms when zero.
func NewPCM(format audio.Format) (Encoder, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid PCM format: %s", format)
	}

	frameSize := format.FramesPerPacket
	if frameSize <= 0 {
		frameSize = defaultFrameSize(format.SampleRate)
	}
	format.FramesPerPacket = frameSize

	return &PCMEncoder{format: format, frameSize: frameSize}, nil
}

// Encode packs whole frames of samples
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	if len(samples)%e.format.Channels != 0 {
		return nil, fmt.Errorf("%w: %d samples for %d channels", ErrFrameSize, len(samples), e.format.Channels)
	}

	width := e.format.BitDepth / 8
	out := make([]byte, len(samples)*width)
	for i, s := range samples {
		switch width {
		case 3:
			b := audio.SampleTo24Bit(s)
			copy(out[i*3:], b[:])
		default:
			binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.SampleToInt16(s)))
		}
	}
	return out, nil
}

func (e *PCMEncoder) Format() audio.Format { return e.format }
func (e *PCMEncoder) FrameSize() int       { return e.frameSize }

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
