// ABOUTME: Silent stand-in decoder
// ABOUTME: Produces silence of the right length for codecs that cannot be decoded
package decode

import "github.com/Resonate-Protocol/streamplay/pkg/audio"

// SilentDecoder keeps playback timing from the packet frame counts
type SilentDecoder struct {
	format audio.Format
}

// NewSilent creates a decoder that outputs silence for format
func NewSilent(format audio.Format) Decoder {
	return &SilentDecoder{format: format}
}

// Decode returns zeroed samples covering every packet
func (d *SilentDecoder) Decode(data []byte, packets []audio.PacketDescriptor) ([]int32, error) {
	frames := 0
	for _, p := range packets {
		if p.Frames > 0 {
			frames += p.Frames
		} else {
			frames += d.format.FramesPerPacket
		}
	}
	return make([]int32, frames*d.format.Channels), nil
}

func (d *SilentDecoder) Channels() int   { return d.format.Channels }
func (d *SilentDecoder) SampleRate() int { return d.format.SampleRate }
func (d *SilentDecoder) Close() error    { return nil }
