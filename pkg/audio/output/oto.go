// ABOUTME: Oto-based output device
// ABOUTME: Oto players pull s16le frames from the binding queue through io.Reader
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	"github.com/ebitengine/oto/v3"
	log "github.com/sirupsen/logrus"
)

// otoPlayerBuffer bounds how far ahead of the speaker a player reads, which
// is also how early completions are reported
const otoPlayerBuffer = 100 * time.Millisecond

// oto allows one context per process; every Oto device shares it
var otoContext struct {
	mu       sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
}

// Oto output device using the oto library
type Oto struct{}

// NewOto creates a new Oto output device
func NewOto() *Oto {
	return &Oto{}
}

// Bind creates a player for format. The process-wide context is created by
// the first bind; later formats are resampled to its rate.
func (o *Oto) Bind(format audio.Format, sideData []byte, onConsumed func(playback.BufferID)) (playback.Binding, error) {
	dec, err := newDecoder(format, sideData, false)
	if err != nil {
		return nil, err
	}

	ctx, rate, channels, err := sharedOtoContext(dec.SampleRate(), outputChannels(dec.Channels()))
	if err != nil {
		dec.Close()
		return nil, err
	}
	if rate != dec.SampleRate() {
		log.Warnf("oto context runs at %dHz, resampling %dHz stream", rate, dec.SampleRate())
	}

	q := newQueue(newPipeline(dec, rate, channels), channels, onConsumed)
	player := ctx.NewPlayer(q)
	player.SetBufferSize(int(otoPlayerBuffer.Seconds()*float64(rate)) * channels * 2)

	log.Printf("Audio output bound: %dHz, %d channels (oto)", rate, channels)

	return newBinding(q, stream{
		start: func() error {
			player.Play()
			return nil
		},
		stop: func() error {
			player.Pause()
			return nil
		},
		close: player.Close,
	}), nil
}

func sharedOtoContext(rate, channels int) (*oto.Context, int, int, error) {
	otoContext.mu.Lock()
	defer otoContext.mu.Unlock()

	if otoContext.ctx != nil {
		return otoContext.ctx, otoContext.rate, otoContext.channels, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoContext.ctx = ctx
	otoContext.rate = rate
	otoContext.channels = channels
	log.Printf("Audio output initialized: %dHz, %d channels", rate, channels)
	return ctx, rate, channels, nil
}
