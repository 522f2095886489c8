// ABOUTME: Linear resampler for converting audio sample rates
// ABOUTME: Carries the last frame of each chunk so chunk boundaries interpolate cleanly
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // read position in frames; frame 0 is lastFrame once primed
	lastFrame  []int32 // one sample per channel
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int32, channels),
	}
}

// Resample converts input samples to the output rate using linear
// interpolation. Both slices are interleaved. output must hold at least
// OutputSamplesNeeded(len(input)) samples plus one frame; returns the
// number of samples written.
func (r *Resampler) Resample(input []int32, output []int32) int {
	inputFrames := len(input) / r.channels
	if inputFrames == 0 {
		return 0
	}

	frames := inputFrames
	if r.primed {
		frames++
	}

	frame := func(i int) []int32 {
		if r.primed {
			if i == 0 {
				return r.lastFrame
			}
			i--
		}
		return input[i*r.channels : (i+1)*r.channels]
	}

	outputFrames := len(output) / r.channels
	outIdx := 0
	for outIdx < outputFrames {
		idx := int(r.position)
		if idx >= frames-1 {
			break
		}
		frac := r.position - float64(idx)

		a, b := frame(idx), frame(idx+1)
		for ch := 0; ch < r.channels; ch++ {
			interpolated := float64(a[ch])*(1.0-frac) + float64(b[ch])*frac
			output[outIdx*r.channels+ch] = int32(interpolated)
		}

		outIdx++
		r.position += r.ratio
	}

	// The last input frame becomes frame 0 of the next chunk
	r.position -= float64(frames - 1)
	if r.position < 0 {
		r.position = 0
	}
	copy(r.lastFrame, input[(inputFrames-1)*r.channels:])
	r.primed = true

	return outIdx * r.channels
}

// Process resamples input into a newly allocated slice
func (r *Resampler) Process(input []int32) []int32 {
	if r.inputRate == r.outputRate {
		return input
	}
	output := make([]int32, r.OutputSamplesNeeded(len(input))+2*r.channels)
	n := r.Resample(input, output)
	return output[:n]
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames) * r.ratio)
	return inputFrames * r.channels
}
