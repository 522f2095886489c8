// ABOUTME: Opus audio decoder
// ABOUTME: Decodes Opus packets to int32 samples, honoring the OpusHead pre-skip
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrames is the longest Opus packet, 120 ms at 48 kHz
const maxOpusFrames = 5760

// OpusDecoder decodes Opus audio
type OpusDecoder struct {
	decoder  *opus.Decoder
	rate     int
	channels int
	preSkip  int // samples per channel still to drop
	pcm      []int16
}

// NewOpus creates a new Opus decoder. A valid OpusHead in sideData overrides
// the channel count and supplies the pre-skip.
func NewOpus(format audio.Format, sideData []byte) (Decoder, error) {
	if format.Codec != audio.CodecOpus {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	channels := format.Channels
	preSkip := 0
	if len(sideData) >= 19 && bytes.HasPrefix(sideData, []byte("OpusHead")) {
		channels = int(sideData[9])
		preSkip = int(binary.LittleEndian.Uint16(sideData[10:12]))
	}
	if channels > 2 {
		return nil, fmt.Errorf("%w: opus with %d channels", ErrUnsupportedCodec, channels)
	}

	dec, err := opus.NewDecoder(format.SampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:  dec,
		rate:     format.SampleRate,
		channels: channels,
		preSkip:  preSkip,
		pcm:      make([]int16, maxOpusFrames*channels),
	}, nil
}

// Decode converts each Opus packet to int32 samples
func (d *OpusDecoder) Decode(data []byte, packets []audio.PacketDescriptor) ([]int32, error) {
	var samples []int32
	for _, p := range packets {
		// Opus decoder outputs to int16 buffer
		n, err := d.decoder.Decode(data[p.Offset:p.End()], d.pcm)
		if err != nil {
			return samples, fmt.Errorf("opus decode failed: %w", err)
		}

		frames := d.pcm[:n*d.channels]
		if d.preSkip > 0 {
			skip := min(d.preSkip, n)
			frames = frames[skip*d.channels:]
			d.preSkip -= skip
		}
		for _, s := range frames {
			samples = append(samples, audio.SampleFromInt16(s))
		}
	}
	return samples, nil
}

func (d *OpusDecoder) Channels() int   { return d.channels }
func (d *OpusDecoder) SampleRate() int { return d.rate }

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
