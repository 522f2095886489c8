// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for all audio decoders and codec selection
package decode

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// ErrUnsupportedCodec is returned for formats no decoder can play
var ErrUnsupportedCodec = errors.New("unsupported codec")

// Decoder decodes the packets of one buffer to interleaved PCM int32
// samples in 24-bit range
type Decoder interface {
	// Decode converts the described packets of data to PCM samples
	Decode(data []byte, packets []audio.PacketDescriptor) ([]int32, error)

	// Channels is the channel count of the decoded samples
	Channels() int

	// SampleRate is the rate of the decoded samples
	SampleRate() int

	// Close releases decoder resources
	Close() error
}

// New picks a decoder for format. sideData is the parser's magic cookie
// (the OpusHead for Ogg Opus).
func New(format audio.Format, sideData []byte) (Decoder, error) {
	switch format.Codec {
	case audio.CodecPCM:
		return NewPCM(format)
	case audio.CodecOpus:
		return NewOpus(format, sideData)
	case audio.CodecMP3:
		// Layer I and II announce 384 frames per packet
		if format.FramesPerPacket == 1152 || format.FramesPerPacket == 576 {
			return NewMP3(format)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, format.Codec)
}
