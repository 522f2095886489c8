// ABOUTME: Software buffer queue shared by every output binding
// ABOUTME: Decodes on enqueue, serves the device pull callback and reports completions
package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	log "github.com/sirupsen/logrus"
)

var errBindingClosed = errors.New("output: binding closed")

type entry struct {
	id      playback.BufferID
	samples []int32
	pos     int
}

// queue holds decoded buffers until the device has pulled every sample of
// them, then reports the buffer consumed. Completions are only reported
// while running, and always under mu, so once stop returns no further
// callback can happen.
type queue struct {
	pipeline   *pipeline
	channels   int
	onConsumed func(playback.BufferID)

	mu        sync.Mutex
	entries   []entry
	running   bool
	closed    bool
	left      float64
	right     float64
	scratch   []int32
	underruns int64
}

func newQueue(p *pipeline, channels int, onConsumed func(playback.BufferID)) *queue {
	return &queue{
		pipeline:   p,
		channels:   channels,
		onConsumed: onConsumed,
		left:       1,
		right:      1,
	}
}

// enqueue decodes buf on the caller's goroutine and queues the samples
func (q *queue) enqueue(buf playback.Buffer) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return errBindingClosed
	}

	samples, err := q.pipeline.process(buf.Data, buf.Packets)
	if err != nil {
		if len(samples) == 0 {
			return err
		}
		log.Warnf("Partial decode of buffer %#x: %v", uint64(buf.ID), err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errBindingClosed
	}
	q.entries = append(q.entries, entry{id: buf.ID, samples: samples})
	return nil
}

func (q *queue) start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = true
}

func (q *queue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.running = false
}

// close discards queued buffers without reporting them
func (q *queue) close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.running = false
	q.entries = nil
	q.mu.Unlock()

	return q.pipeline.close()
}

func (q *queue) setTransform(t playback.SoundTransform) {
	left, right := t.Gains()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.left, q.right = left, right
}

// pending returns the number of queued buffers
func (q *queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// fill writes the next len(out) samples, zero-filling on underrun or when
// stopped. out must hold whole frames.
func (q *queue) fill(out []int32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fillLocked(out)
}

func (q *queue) fillLocked(out []int32) {
	n := 0
	if q.running {
		for n < len(out) && len(q.entries) > 0 {
			e := &q.entries[0]
			k := copy(out[n:], e.samples[e.pos:])
			applyGains(out[n:n+k], q.channels, q.left, q.right)
			e.pos += k
			n += k

			if e.pos >= len(e.samples) {
				id := e.id
				q.entries[0] = entry{}
				q.entries = q.entries[1:]
				q.onConsumed(id)
			}
		}
		if n < len(out) {
			q.underruns++
		}
	}
	clear(out[n:])
}

func (q *queue) scratchFor(samples int) []int32 {
	if cap(q.scratch) < samples {
		q.scratch = make([]int32, samples)
	}
	return q.scratch[:samples]
}

// fillInt16 serves callbacks that want native int16 samples
func (q *queue) fillInt16(out []int16) {
	q.mu.Lock()
	defer q.mu.Unlock()

	samples := q.scratchFor(len(out))
	q.fillLocked(samples)
	for i, s := range samples {
		out[i] = audio.SampleToInt16(s)
	}
}

// fillBytes serves callbacks that want packed little-endian samples
func (q *queue) fillBytes(out []byte, bitDepth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	width := bitDepth / 8
	samples := q.scratchFor(len(out) / width)
	q.fillLocked(samples)

	switch bitDepth {
	case 16:
		for i, s := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.SampleToInt16(s)))
		}
	case 24:
		for i, s := range samples {
			b := audio.SampleTo24Bit(s)
			copy(out[i*3:], b[:])
		}
	default:
		panic(fmt.Sprintf("output: unsupported bit depth %d", bitDepth))
	}
}

// Read makes the queue an io.Reader of s16le frames for pull-model players.
// It never blocks and never returns a short read while open.
func (q *queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	frame := 2 * q.channels
	n := len(p) / frame * frame
	if n == 0 {
		clear(p)
		return len(p), nil
	}
	q.fillBytes(p[:n], 16)
	clear(p[n:])
	return len(p), nil
}
