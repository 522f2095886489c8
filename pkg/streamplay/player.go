// ABOUTME: High-level Player API for stream playback
// ABOUTME: Wires a parser, the playback engine and an output device behind simple controls
package streamplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/Resonate-Protocol/streamplay/pkg/audio/output"
	"github.com/Resonate-Protocol/streamplay/pkg/playback"
	log "github.com/sirupsen/logrus"
)

// DefaultChunkSize is how many bytes Play reads per Feed
const DefaultChunkSize = 32 * 1024

// PlayerConfig holds player configuration
type PlayerConfig struct {
	// Name is the display name for this player
	Name string

	// Codec selects the stream parser: "pcm", "aac", "mp3" or "opus".
	// Empty detects the codec from the first bytes of the stream.
	Codec string

	// Format is required for raw PCM, which has no header to learn it from
	Format *audio.Format

	// Device is the output to play on. When nil, Output names a backend.
	Device playback.Device

	// Output is the backend passed to output.Open (default: malgo)
	Output string

	// Volume is the initial volume (0-100)
	Volume int

	// Pan is the initial balance (-1.0 left to 1.0 right)
	Pan float64

	// Engine sizing; zero values take the playback defaults
	Buffers               int
	BufferSize            int
	MaxPacketDescriptions int
	PrimeBuffers          int

	// FormatChange selects what a mid-stream format change does
	FormatChange playback.FormatChangePolicy

	// ChunkSize is the read size used by Play (default: 32 KiB)
	ChunkSize int

	// OnStateChange is called when playback state changes
	OnStateChange func(PlayerState)

	// OnError is called when errors occur
	OnError func(error)
}

// PlayerState describes the current state
type PlayerState struct {
	State      string // "stopped", "pending", "binding", "running"
	SessionID  string
	Volume     int
	Muted      bool
	Pan        float64
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PlayerStats contains playback statistics
type PlayerStats struct {
	playback.Stats
	SlotsBusy  int
	SlotsTotal int
}

// Player plays one stream at a time through the playback engine
type Player struct {
	config     PlayerConfig
	engine     *playback.Engine
	device     playback.Device
	ownsDevice bool

	mu     sync.Mutex
	volume int
	muted  bool
	pan    float64
	closed bool
}

// NewPlayer creates a new player with the given configuration
func NewPlayer(config PlayerConfig) (*Player, error) {
	// Set defaults
	if config.Name == "" {
		config.Name = "Streamplay Player"
	}
	if config.Volume == 0 {
		config.Volume = 100
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = DefaultChunkSize
	}
	config.Volume = clampVolume(config.Volume)
	config.Pan = max(-1, min(1, config.Pan))

	device := config.Device
	ownsDevice := false
	if device == nil {
		dev, err := output.Open(config.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to open output: %w", err)
		}
		device = dev
		ownsDevice = true
	}

	player := &Player{
		config:     config,
		device:     device,
		ownsDevice: ownsDevice,
		volume:     config.Volume,
		pan:        config.Pan,
	}

	transform := player.transform()
	engine, err := playback.New(device, playback.Config{
		Buffers:               config.Buffers,
		BufferSize:            config.BufferSize,
		MaxPacketDescriptions: config.MaxPacketDescriptions,
		PrimeBuffers:          config.PrimeBuffers,
		NewParser:             parserFactory(config.Codec, config.Format),
		FormatChange:          config.FormatChange,
		Transform:             &transform,
		OnError:               player.notifyError,
		OnStateChange: func(playback.State) {
			player.notifyStateChange()
		},
	})
	if err != nil {
		player.closeDevice()
		return nil, err
	}
	player.engine = engine

	return player, nil
}

// Start begins a playback session. Starting a running player does nothing.
func (p *Player) Start() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("player closed")
	}
	return p.engine.StartRunning()
}

// Stop ends the session, silencing the device before releasing buffers
func (p *Player) Stop() {
	p.engine.StopRunning()
}

// Feed passes raw stream bytes to the session. It blocks while every
// buffer is queued on the device.
func (p *Player) Feed(data []byte) error {
	return p.engine.Feed(data)
}

// Play starts a session if needed and streams r until EOF, then waits for
// the tail to play out. Cancelling ctx stops the session.
func (p *Player) Play(ctx context.Context, r io.Reader) error {
	if err := p.Start(); err != nil {
		return err
	}
	log.Printf("%s: playing stream", p.config.Name)

	// A feed blocked on a busy slot is released by StopRunning
	stop := context.AfterFunc(ctx, p.engine.StopRunning)
	defer stop()

	cancelled := func() error {
		p.engine.StopRunning()
		return ctx.Err()
	}

	buf := make([]byte, p.config.ChunkSize)
	for {
		if ctx.Err() != nil {
			return cancelled()
		}
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := p.engine.Feed(buf[:n]); ferr != nil {
				if ctx.Err() != nil {
					return cancelled()
				}
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return cancelled()
			}
			return fmt.Errorf("read failed: %w", err)
		}
	}

	if err := p.engine.Drain(ctx); err != nil || ctx.Err() != nil {
		if ctx.Err() != nil {
			return cancelled()
		}
		return err
	}
	log.Printf("%s: stream finished", p.config.Name)
	return nil
}

// SetVolume sets the volume (0-100)
func (p *Player) SetVolume(volume int) {
	p.mu.Lock()
	p.volume = clampVolume(volume)
	p.mu.Unlock()

	p.applyTransform()
}

// Mute sets the mute state
func (p *Player) Mute(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()

	p.applyTransform()
}

// SetPan sets the balance (-1.0 left to 1.0 right)
func (p *Player) SetPan(pan float64) {
	p.mu.Lock()
	p.pan = max(-1, min(1, pan))
	p.mu.Unlock()

	p.applyTransform()
}

func (p *Player) applyTransform() {
	p.engine.SetSoundTransform(p.transform())
	p.notifyStateChange()
}

func (p *Player) transform() playback.SoundTransform {
	p.mu.Lock()
	defer p.mu.Unlock()
	return playback.SoundTransform{
		Volume: float64(p.volume) / 100,
		Pan:    p.pan,
		Muted:  p.muted,
	}
}

// Status returns the current player state
func (p *Player) Status() PlayerState {
	p.mu.Lock()
	state := PlayerState{
		Volume: p.volume,
		Muted:  p.muted,
		Pan:    p.pan,
	}
	p.mu.Unlock()

	state.State = p.engine.State().String()
	state.SessionID = p.engine.SessionID()
	if format, ok := p.engine.Format(); ok {
		state.Codec = format.Codec
		state.SampleRate = format.SampleRate
		state.Channels = format.Channels
		state.BitDepth = format.BitDepth
	}
	return state
}

// Stats returns playback statistics
func (p *Player) Stats() PlayerStats {
	stats := PlayerStats{Stats: p.engine.Stats()}

	slots := p.engine.Slots()
	stats.SlotsTotal = len(slots)
	for _, busy := range slots {
		if busy {
			stats.SlotsBusy++
		}
	}
	return stats
}

// Slots returns the busy flag of every buffer slot
func (p *Player) Slots() []bool {
	return p.engine.Slots()
}

// Close stops playback and releases the output device
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.engine.StopRunning()
	return p.closeDevice()
}

func (p *Player) closeDevice() error {
	if !p.ownsDevice {
		return nil
	}
	if c, ok := p.device.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close output: %w", err)
		}
	}
	return nil
}

// notifyStateChange calls the OnStateChange callback if set. The engine
// state it reads is lock-free, so this is safe from engine callbacks.
func (p *Player) notifyStateChange() {
	if p.config.OnStateChange != nil {
		p.config.OnStateChange(p.Status())
	}
}

// notifyError calls the OnError callback if set
func (p *Player) notifyError(err error) {
	if p.config.OnError != nil {
		p.config.OnError(err)
	} else {
		log.Printf("Player error: %v", err)
	}
}

func clampVolume(volume int) int {
	return max(0, min(100, volume))
}
