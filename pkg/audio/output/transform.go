// ABOUTME: Software volume and pan applied to interleaved samples
// ABOUTME: Works in 24-bit range with clipping protection
package output

import (
	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// applyGains scales samples in place. With two or more channels channel 0
// takes left and channel 1 takes right; mono takes the average gain.
func applyGains(samples []int32, channels int, left, right float64) {
	if left == 1 && right == 1 {
		return
	}
	if channels < 1 {
		channels = 1
	}

	for i, sample := range samples {
		var gain float64
		switch {
		case channels == 1:
			gain = (left + right) / 2
		case i%channels == 0:
			gain = left
		case i%channels == 1:
			gain = right
		default:
			gain = (left + right) / 2
		}
		samples[i] = scale(sample, gain)
	}
}

// scale multiplies a sample, clamping to the 24-bit range
func scale(sample int32, gain float64) int32 {
	scaled := int64(float64(sample) * gain)
	if scaled > audio.Max24Bit {
		scaled = audio.Max24Bit
	} else if scaled < audio.Min24Bit {
		scaled = audio.Min24Bit
	}
	return int32(scaled)
}
