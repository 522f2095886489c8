// ABOUTME: Clock-paced virtual output device
// ABOUTME: Consumes and discards audio at the stream rate, for headless runs and tests
package output

import (
	"context"
	"sync"
	"time"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	log "github.com/sirupsen/logrus"
)

const defaultNullPeriod = 10 * time.Millisecond

// Null plays to nowhere in real time. Codecs it cannot decode are consumed
// as silence using the packet frame counts, so it accepts every format.
type Null struct {
	// Period is the pull interval (default: 10ms)
	Period time.Duration

	// Speed scales the clock (default: 1, real time)
	Speed float64
}

// NewNull creates a real-time null device
func NewNull() *Null {
	return &Null{}
}

// Bind starts a virtual stream for format
func (n *Null) Bind(format audio.Format, sideData []byte, onConsumed func(playback.BufferID)) (playback.Binding, error) {
	dec, err := newDecoder(format, sideData, true)
	if err != nil {
		return nil, err
	}

	period := n.Period
	if period <= 0 {
		period = defaultNullPeriod
	}
	speed := n.Speed
	if speed <= 0 {
		speed = 1
	}

	channels := outputChannels(dec.Channels())
	rate := dec.SampleRate()
	q := newQueue(newPipeline(dec, rate, channels), channels, onConsumed)

	frames := int(float64(rate) * period.Seconds() * speed)
	if frames < 1 {
		frames = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var once sync.Once

	run := func() {
		defer wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		out := make([]int32, frames*channels)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.fill(out)
			}
		}
	}

	log.Debugf("Null output bound: %s", format)

	return newBinding(q, stream{
		start: func() error {
			once.Do(func() {
				wg.Add(1)
				go run()
			})
			return nil
		},
		close: func() error {
			cancel()
			wg.Wait()
			return nil
		},
	}), nil
}
