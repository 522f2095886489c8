//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output device (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output device
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Bind always fails without the portaudio build tag
func (p *PortAudio) Bind(format audio.Format, sideData []byte, onConsumed func(playback.BufferID)) (playback.Binding, error) {
	return nil, errPortAudioDisabled
}

// Close does nothing
func (p *PortAudio) Close() error {
	return nil
}
