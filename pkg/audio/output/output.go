// ABOUTME: Output device selection and the binding shared by all backends
// ABOUTME: Every backend pairs a software queue with a platform stream
package output

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/streamplay/pkg/playback"
)

// Backend names accepted by Open
const (
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
	BackendNull      = "null"
)

// Open returns the named output device. An empty name selects malgo.
func Open(name string) (playback.Device, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendMalgo:
		return NewMalgo(), nil
	case BackendOto:
		return NewOto(), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	case BackendNull:
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", name)
	}
}

// stream is the platform side of a binding
type stream struct {
	start func() error
	stop  func() error // must not return while a pull callback is running
	close func() error
}

// binding implements playback.Binding over a queue and a stream
type binding struct {
	q         *queue
	stream    stream
	closeOnce sync.Once
	closeErr  error
}

func newBinding(q *queue, s stream) *binding {
	return &binding{q: q, stream: s}
}

func (b *binding) Enqueue(buf playback.Buffer) error {
	return b.q.enqueue(buf)
}

func (b *binding) Start() error {
	b.q.start()
	if b.stream.start == nil {
		return nil
	}
	if err := b.stream.start(); err != nil {
		b.q.stop()
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// Stop silences the queue first, then halts the platform stream. The
// stream's stop may wait for the callback, which needs the queue lock, so
// the two are never held together.
func (b *binding) Stop() error {
	b.q.stop()
	if b.stream.stop == nil {
		return nil
	}
	return b.stream.stop()
}

func (b *binding) Close() error {
	b.closeOnce.Do(func() {
		if b.stream.close != nil {
			b.closeErr = b.stream.close()
		}
		if err := b.q.close(); err != nil && b.closeErr == nil {
			b.closeErr = err
		}
	})
	return b.closeErr
}

func (b *binding) SetTransform(t playback.SoundTransform) error {
	b.q.setTransform(t)
	return nil
}

// outputChannels limits a stream to what the backends render
func outputChannels(channels int) int {
	if channels >= 2 {
		return 2
	}
	return 1
}
