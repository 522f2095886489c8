//go:build portaudio

// ABOUTME: PortAudio output device
// ABOUTME: Cross-platform callback stream pulling int16 samples from the binding queue
package output

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	"github.com/gordonklaus/portaudio"
	log "github.com/sirupsen/logrus"
)

// PortAudio output device
type PortAudio struct {
	mu          sync.Mutex
	initialized bool
}

// NewPortAudio creates a new PortAudio output device
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Bind opens a default output stream for format
func (p *PortAudio) Bind(format audio.Format, sideData []byte, onConsumed func(playback.BufferID)) (playback.Binding, error) {
	dec, err := newDecoder(format, sideData, false)
	if err != nil {
		return nil, err
	}
	if err := p.initialize(); err != nil {
		dec.Close()
		return nil, err
	}

	channels := outputChannels(dec.Channels())
	rate := dec.SampleRate()
	q := newQueue(newPipeline(dec, rate, channels), channels, onConsumed)

	s, err := portaudio.OpenDefaultStream(0, channels, float64(rate), 0, func(out []int16) {
		q.fillInt16(out)
	})
	if err != nil {
		q.close()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	log.Printf("Audio output bound: %dHz, %d channels (portaudio)", rate, channels)

	return newBinding(q, stream{
		start: s.Start,
		stop:  s.Stop,
		close: s.Close,
	}), nil
}

func (p *PortAudio) initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	p.initialized = true
	return nil
}

// Close terminates PortAudio. Bindings must be closed first.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}
