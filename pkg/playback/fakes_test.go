// ABOUTME: Fake device, binding and parser used by the playback tests
// ABOUTME: Records every call so tests can assert on ordering and contents
package playback

import (
	"errors"
	"sync"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

type fakeDevice struct {
	mu       sync.Mutex
	bindErr  error
	bindings []*fakeBinding
	formats  []audio.Format
	sideData [][]byte
}

func (d *fakeDevice) Bind(format audio.Format, sideData []byte, onConsumed func(BufferID)) (Binding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.formats = append(d.formats, format)
	d.sideData = append(d.sideData, sideData)
	if d.bindErr != nil {
		return nil, d.bindErr
	}
	b := &fakeBinding{onConsumed: onConsumed}
	d.bindings = append(d.bindings, b)
	return b, nil
}

func (d *fakeDevice) bindCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.formats)
}

func (d *fakeDevice) last() *fakeBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.bindings) == 0 {
		return nil
	}
	return d.bindings[len(d.bindings)-1]
}

type fakeBinding struct {
	mu         sync.Mutex
	onConsumed func(BufferID)
	queue      []Buffer
	enqueued   []Buffer
	transforms []SoundTransform
	enqueueErr error
	startErr   error
	starts     int
	started    bool
	stopped    bool
	closed     bool
	events     []string
}

func (b *fakeBinding) Enqueue(buf Buffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.enqueueErr != nil {
		return b.enqueueErr
	}
	buf.Data = append([]byte(nil), buf.Data...)
	b.queue = append(b.queue, buf)
	b.enqueued = append(b.enqueued, buf)
	b.events = append(b.events, "enqueue")
	return nil
}

func (b *fakeBinding) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.starts++
	if b.startErr != nil {
		return b.startErr
	}
	b.started = true
	b.events = append(b.events, "start")
	return nil
}

func (b *fakeBinding) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.events = append(b.events, "stop")
	return nil
}

func (b *fakeBinding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.events = append(b.events, "close")
	return nil
}

func (b *fakeBinding) SetTransform(t SoundTransform) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transforms = append(b.transforms, t)
	return nil
}

// complete plays out the oldest queued buffer. It returns false when the
// queue is empty.
func (b *fakeBinding) complete() bool {
	b.mu.Lock()
	if len(b.queue) == 0 || b.stopped {
		b.mu.Unlock()
		return false
	}
	buf := b.queue[0]
	b.queue = b.queue[1:]
	b.mu.Unlock()

	b.onConsumed(buf.ID)
	return true
}

func (b *fakeBinding) completeAll() {
	for b.complete() {
	}
}

func (b *fakeBinding) snapshot() (enqueued []Buffer, started, stopped, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Buffer(nil), b.enqueued...), b.started, b.stopped, b.closed
}

func (b *fakeBinding) lastTransform() (SoundTransform, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.transforms) == 0 {
		return SoundTransform{}, false
	}
	return b.transforms[len(b.transforms)-1], true
}

// scriptParser turns each Parse call into a scripted set of callbacks
type scriptParser struct {
	listener audio.PacketListener
	script   func(l audio.PacketListener, data []byte) error
	closed   bool
}

func (p *scriptParser) Parse(data []byte) error {
	return p.script(p.listener, data)
}

func (p *scriptParser) Close() error {
	p.closed = true
	return nil
}

// fixedSizeParser announces format on the first call and splits every
// later chunk into packets of the given size
func fixedSizeParser(format audio.Format, sideData []byte, size int) ParserFactory {
	return func(l audio.PacketListener) (Parser, error) {
		announced := false
		return &scriptParser{listener: l, script: func(l audio.PacketListener, data []byte) error {
			if !announced {
				if sideData != nil {
					l.OnSideData(sideData)
				}
				l.OnFormat(format)
				announced = true
			}
			var packets []audio.PacketDescriptor
			for off := 0; off+size <= len(data); off += size {
				packets = append(packets, audio.PacketDescriptor{Offset: int64(off), Size: size})
			}
			if len(packets) > 0 {
				l.OnPackets(data, packets)
			}
			return nil
		}}, nil
	}
}

var errFake = errors.New("fake failure")
