// ABOUTME: Codec stage turning enqueued packets into device samples
// ABOUTME: Decodes through pkg/audio/decode, then remixes and resamples to the device format
package output

import (
	"errors"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/decode"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/resample"
)

// ErrUnsupportedCodec is returned by Bind for formats a backend cannot play
var ErrUnsupportedCodec = decode.ErrUnsupportedCodec

// newDecoder picks a decoder for format. With silentFallback, codecs that
// cannot be decoded produce silence of the right length instead of failing.
func newDecoder(format audio.Format, sideData []byte, silentFallback bool) (decode.Decoder, error) {
	dec, err := decode.New(format, sideData)
	if err != nil && silentFallback && errors.Is(err, decode.ErrUnsupportedCodec) {
		return decode.NewSilent(format), nil
	}
	return dec, err
}

// pipeline converts decoded samples to the device's rate and channel count
type pipeline struct {
	decoder   decode.Decoder
	channels  int
	resampler *resample.Resampler
}

func newPipeline(dec decode.Decoder, rate, channels int) *pipeline {
	p := &pipeline{decoder: dec, channels: channels}
	if dec.SampleRate() != rate {
		p.resampler = resample.New(dec.SampleRate(), rate, channels)
	}
	return p
}

func (p *pipeline) process(buf []byte, packets []audio.PacketDescriptor) ([]int32, error) {
	samples, err := p.decoder.Decode(buf, packets)
	if len(samples) == 0 {
		return nil, err
	}
	samples = remix(samples, p.decoder.Channels(), p.channels)
	if p.resampler != nil {
		samples = p.resampler.Process(samples)
	}
	return samples, err
}

func (p *pipeline) close() error {
	return p.decoder.Close()
}

// remix maps interleaved samples from one channel count to another. Mono is
// duplicated, stereo to mono is averaged, extra channels are dropped.
func remix(samples []int32, from, to int) []int32 {
	if from == to || from <= 0 {
		return samples
	}
	frames := len(samples) / from
	out := make([]int32, frames*to)
	for f := 0; f < frames; f++ {
		in := samples[f*from : (f+1)*from]
		for ch := 0; ch < to; ch++ {
			switch {
			case from == 1:
				out[f*to+ch] = in[0]
			case to == 1:
				out[f*to] = int32((int64(in[0]) + int64(in[1])) / 2)
			default:
				out[f*to+ch] = in[ch%from]
			}
		}
	}
	return out
}
