// ABOUTME: Malgo-based output device with 24-bit support
// ABOUTME: Uses miniaudio's data callback to pull samples from the binding queue
package output

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	"github.com/gen2brain/malgo"
	log "github.com/sirupsen/logrus"
)

// Malgo output device using malgo/miniaudio
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
}

// NewMalgo creates a new Malgo output device
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Bind opens a playback device for format. miniaudio converts to the
// hardware rate itself, so no resampling happens here.
func (m *Malgo) Bind(format audio.Format, sideData []byte, onConsumed func(playback.BufferID)) (playback.Binding, error) {
	dec, err := newDecoder(format, sideData, false)
	if err != nil {
		return nil, err
	}

	ctx, err := m.context()
	if err != nil {
		dec.Close()
		return nil, err
	}

	channels := outputChannels(dec.Channels())
	rate := dec.SampleRate()
	bitDepth := 16
	if format.Codec == audio.CodecPCM && format.BitDepth == 24 {
		bitDepth = 24
	}

	q := newQueue(newPipeline(dec, rate, channels), channels, onConsumed)

	var sampleFormat malgo.FormatType
	switch bitDepth {
	case 24:
		sampleFormat = malgo.FormatS24
	default:
		sampleFormat = malgo.FormatS16
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = sampleFormat
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(rate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		q.fillBytes(pOutputSample[:int(frameCount)*channels*bitDepth/8], bitDepth)
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		q.close()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	log.Printf("Audio output bound: %dHz, %d channels, %d-bit (malgo/%s)",
		rate, channels, bitDepth, formatName(sampleFormat))

	return newBinding(q, stream{
		start: device.Start,
		stop:  device.Stop,
		close: func() error {
			device.Uninit()
			return nil
		},
	}), nil
}

// context lazily creates the malgo context shared by all bindings
func (m *Malgo) context() (*malgo.AllocatedContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}
	return m.malgoCtx, nil
}

// Close releases the malgo context. Bindings must be closed first.
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Warnf("malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
