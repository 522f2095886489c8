// ABOUTME: Encoder interface and codec selection
// ABOUTME: Encoders turn frame-sized runs of int32 samples into packets
package encode

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// ErrFrameSize is returned when the samples handed to Encode do not make a
// packet the codec can encode
var ErrFrameSize = errors.New("samples do not fill a packet")

// Encoder encodes interleaved int32 samples in 24-bit range into packets
type Encoder interface {
	// Encode converts the samples of one packet to encoded bytes
	Encode(samples []int32) ([]byte, error)

	// Format describes the encoded packets, FramesPerPacket included
	Format() audio.Format

	// FrameSize is the number of frames per packet. Opus only encodes
	// packets of exactly this size; PCM takes any whole number of frames.
	FrameSize() int

	// Close releases encoder resources
	Close() error
}

// New picks an encoder for format
func New(format audio.Format) (Encoder, error) {
	switch format.Codec {
	case audio.CodecPCM:
		return NewPCM(format)
	case audio.CodecOpus:
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("unsupported encoder codec: %s", format.Codec)
	}
}

// defaultFrameSize is 20ms at rate
func defaultFrameSize(rate int) int {
	return rate / 50
}
