// ABOUTME: Sound transform value object (volume, pan, mute)
// ABOUTME: Applied to the device binding on bind and on every change while bound
package playback

// SoundTransform holds the output parameters applied to a binding
type SoundTransform struct {
	Volume float64 // 0.0 - 1.0
	Pan    float64 // -1.0 (left) - 1.0 (right)
	Muted  bool
}

// DefaultSoundTransform returns full volume, centered, unmuted
func DefaultSoundTransform() SoundTransform {
	return SoundTransform{Volume: 1.0}
}

// Normalize clamps the fields to their valid ranges
func (t SoundTransform) Normalize() SoundTransform {
	t.Volume = clamp(t.Volume, 0, 1)
	t.Pan = clamp(t.Pan, -1, 1)
	return t
}

// Gains returns the linear gain for the left and right channels.
// Panning attenuates the opposite channel, matching a balance control.
func (t SoundTransform) Gains() (left, right float64) {
	t = t.Normalize()
	if t.Muted {
		return 0, 0
	}
	left, right = t.Volume, t.Volume
	if t.Pan > 0 {
		left *= 1 - t.Pan
	} else if t.Pan < 0 {
		right *= 1 + t.Pan
	}
	return left, right
}

// Apply sets the transform on a binding. Applying the same transform twice
// has no further effect.
func (t SoundTransform) Apply(b Binding) error {
	if b == nil {
		return nil
	}
	return b.SetTransform(t.Normalize())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
