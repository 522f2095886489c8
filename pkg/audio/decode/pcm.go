// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit PCM audio to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != audio.CodecPCM {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{
		format: format,
	}, nil
}

// Decode converts the bytes of each packet to int32 samples
func (d *PCMDecoder) Decode(data []byte, packets []audio.PacketDescriptor) ([]int32, error) {
	var samples []int32
	for _, p := range packets {
		b := data[p.Offset:p.End()]
		if d.format.BitDepth == 24 {
			// 24-bit PCM: 3 bytes per sample
			for i := 0; i+3 <= len(b); i += 3 {
				samples = append(samples, audio.SampleFrom24Bit([3]byte{b[i], b[i+1], b[i+2]}))
			}
			continue
		}
		// 16-bit PCM: 2 bytes per sample
		for i := 0; i+2 <= len(b); i += 2 {
			samples = append(samples, audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(b[i:]))))
		}
	}
	return samples, nil
}

func (d *PCMDecoder) Channels() int   { return d.format.Channels }
func (d *PCMDecoder) SampleRate() int { return d.format.SampleRate }

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
