// ABOUTME: Playback engine owning the buffer pool and the device binding
// ABOUTME: Runs the start/bind/stop lifecycle and the device completion callback
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultBuffers               = 128
	DefaultBufferSize            = 128 * 1024
	DefaultMaxPacketDescriptions = 1
	DefaultPrimeBuffers          = 1
)

// State is the engine lifecycle state
type State int32

const (
	StateStopped State = iota
	StatePending       // running, waiting for the stream format
	StateBinding       // creating the device binding
	StateRunning       // bound and accepting packets
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePending:
		return "pending"
	case StateBinding:
		return "binding"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// FormatChangePolicy decides what happens when the parser announces a
// different format while a binding exists
type FormatChangePolicy int

const (
	// FormatChangeReject keeps the current binding and reports ErrFormatChanged
	FormatChangeReject FormatChangePolicy = iota
	// FormatChangeRebind drains in-flight slots, then binds the new format
	FormatChangeRebind
)

func (p FormatChangePolicy) String() string {
	if p == FormatChangeRebind {
		return "rebind"
	}
	return "reject"
}

// ParseFormatChangePolicy parses "reject" or "rebind"
func ParseFormatChangePolicy(s string) (FormatChangePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return FormatChangeReject, nil
	case "rebind":
		return FormatChangeRebind, nil
	default:
		return FormatChangeReject, fmt.Errorf("unknown format change policy: %q", s)
	}
}

// Config holds engine configuration
type Config struct {
	// Buffers is the number of slots in the pool (default: 128)
	Buffers int

	// BufferSize is the capacity of each slot in bytes (default: 128 KiB).
	// It must be at least the largest packet the stream carries.
	BufferSize int

	// MaxPacketDescriptions caps packets per slot (default: 1)
	MaxPacketDescriptions int

	// PrimeBuffers is how many slots are enqueued before the device is
	// started (default: 1)
	PrimeBuffers int

	// NewParser creates the parser for each session. Leave nil when the
	// stream is pushed with PushFormat/PushSideData/PushPackets.
	NewParser ParserFactory

	// Format, when known out-of-band, makes StartRunning bind immediately
	Format *audio.Format

	// FormatChange selects the mid-session format change policy
	FormatChange FormatChangePolicy

	// Transform is the initial sound transform (default: full volume)
	Transform *SoundTransform

	// OnError receives non-fatal diagnostics
	OnError func(error)

	// OnStateChange is called on every lifecycle transition. It runs with
	// the engine locked and must not call back into the engine.
	OnStateChange func(State)
}

func (c Config) withDefaults() (Config, error) {
	if c.Buffers < 0 || c.BufferSize < 0 || c.MaxPacketDescriptions < 0 || c.PrimeBuffers < 0 {
		return c, fmt.Errorf("playback: negative size in config")
	}
	if c.Buffers == 0 {
		c.Buffers = DefaultBuffers
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxPacketDescriptions == 0 {
		c.MaxPacketDescriptions = DefaultMaxPacketDescriptions
	}
	if c.PrimeBuffers == 0 {
		c.PrimeBuffers = DefaultPrimeBuffers
	}
	if c.PrimeBuffers > c.Buffers {
		c.PrimeBuffers = c.Buffers
	}
	return c, nil
}

// Engine feeds parsed packets into a ring of slots consumed by a device
type Engine struct {
	config Config
	device Device
	pool   *Pool
	feed   feeder
	stats  counters

	// mu serializes feeding, binding and lifecycle transitions. The device
	// completion callback never takes it.
	mu       sync.Mutex
	parser   Parser
	listener *sessionListener
	binding  Binding
	format   audio.Format
	sideData []byte
	started  bool
	primed   int

	running   atomic.Bool
	state     atomic.Int32
	bound     atomic.Pointer[audio.Format]
	sessionID atomic.Value

	transformMu sync.Mutex
	transform   SoundTransform
	live        Binding // binding that transform changes go to
}

// New creates a stopped engine for device
func New(device Device, config Config) (*Engine, error) {
	if device == nil {
		return nil, errors.New("playback: nil device")
	}
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	transform := DefaultSoundTransform()
	if config.Transform != nil {
		transform = config.Transform.Normalize()
	}

	e := &Engine{
		config:    config,
		device:    device,
		pool:      NewPool(),
		transform: transform,
	}
	e.sessionID.Store("")
	e.feed = feeder{
		pool:       e.pool,
		maxPackets: config.MaxPacketDescriptions,
		enqueue:    e.enqueueSlot,
		waited:     func() { e.stats.backpressure.Add(1) },
	}
	return e, nil
}

// StartRunning begins a session. Nothing is allocated or bound until the
// stream format is known, unless Config.Format was given.
func (e *Engine) StartRunning() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() != StateStopped {
		return nil
	}

	e.pool.Resume()
	e.feed.reset()
	e.sessionID.Store(uuid.NewString())

	if e.config.NewParser != nil {
		l := &sessionListener{e: e}
		parser, err := e.config.NewParser(l)
		if err != nil {
			return fmt.Errorf("failed to create parser: %w", err)
		}
		e.parser = parser
		e.listener = l
	}

	e.running.Store(true)
	e.setState(StatePending)
	e.logger().Info("Playback session started")

	if e.config.Format != nil {
		return e.bindLocked(*e.config.Format)
	}
	return nil
}

// StopRunning ends the session: the device is stopped before any slot is
// released. Calling it on a stopped engine does nothing.
func (e *Engine) StopRunning() {
	if !e.running.Load() {
		return
	}

	// Wake a rotation blocked on a busy slot so the feed lets go of mu
	e.pool.Interrupt()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StateStopped {
		e.pool.Resume()
		return
	}
	e.teardownLocked()
	e.logger().Info("Playback session stopped")
}

// Feed parses raw stream bytes with the session parser
func (e *Engine) Feed(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StateStopped {
		return ErrNotRunning
	}
	if e.parser == nil {
		return errors.New("playback: no parser configured")
	}

	l := e.listener
	l.err = nil
	if err := e.parser.Parse(data); err != nil {
		if l.err != nil {
			return l.err
		}
		return fmt.Errorf("parse failed: %w", err)
	}
	return l.err
}

// PushSideData delivers codec configuration from an external parser
func (e *Engine) PushSideData(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StateStopped {
		return
	}
	e.setSideDataLocked(data)
}

// PushFormat delivers the stream format from an external parser
func (e *Engine) PushFormat(format audio.Format) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StateStopped {
		return ErrNotRunning
	}
	return e.onFormatLocked(format)
}

// PushPackets delivers packets from an external parser
func (e *Engine) PushPackets(data []byte, packets []audio.PacketDescriptor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StateStopped {
		return ErrNotRunning
	}
	e.onPacketsLocked(data, packets)
	return nil
}

// Flush hands any bytes the parser is holding to the feed, then enqueues the
// partially filled slot. Call it at end of stream.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.State() == StateStopped {
		return ErrNotRunning
	}
	if f, ok := e.parser.(flusher); ok {
		e.listener.err = nil
		if err := f.Flush(); err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		if e.listener.err != nil {
			return e.listener.err
		}
	}
	if e.binding == nil {
		return nil
	}
	if err := e.feed.flush(); err != nil && !errors.Is(err, ErrInterrupted) {
		return err
	}
	// A short stream may never reach the prime count
	e.startDeviceLocked()
	return nil
}

// Drain flushes and waits until the device has returned every slot
func (e *Engine) Drain(ctx context.Context) error {
	if err := e.Flush(); err != nil {
		return err
	}
	if err := e.pool.WaitIdle(ctx); err != nil && !errors.Is(err, ErrInterrupted) {
		return err
	}
	return nil
}

// SetSoundTransform stores t and applies it to the binding if there is one
func (e *Engine) SetSoundTransform(t SoundTransform) {
	t = t.Normalize()

	e.transformMu.Lock()
	defer e.transformMu.Unlock()

	e.transform = t
	if e.live == nil {
		return
	}
	if err := t.Apply(e.live); err != nil {
		e.logger().WithError(err).Warn("Failed to apply sound transform")
	}
}

// SoundTransform returns the current transform
func (e *Engine) SoundTransform() SoundTransform {
	e.transformMu.Lock()
	defer e.transformMu.Unlock()
	return e.transform
}

// State returns the lifecycle state
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Format returns the bound stream format
func (e *Engine) Format() (audio.Format, bool) {
	f := e.bound.Load()
	if f == nil {
		return audio.Format{}, false
	}
	return *f, true
}

// SessionID identifies the current (or last) running session
func (e *Engine) SessionID() string {
	return e.sessionID.Load().(string)
}

// Slots returns the busy flag of every slot
func (e *Engine) Slots() []bool {
	return e.pool.Snapshot()
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// onBufferConsumed runs on the device's goroutine. It only flips the slot's
// busy flag; anything it cannot resolve is logged and ignored.
func (e *Engine) onBufferConsumed(id BufferID) {
	i, ok := e.pool.Lookup(id)
	if !ok {
		e.stats.unknownBuffers.Add(1)
		log.WithField("buffer", fmt.Sprintf("%#x", uint64(id))).Warn(ErrUnknownBuffer)
		return
	}
	e.pool.MarkFree(i)
	e.stats.completed.Add(1)
}

func (e *Engine) setSideDataLocked(data []byte) {
	e.sideData = append([]byte(nil), data...)
	if e.binding != nil {
		e.logger().Warnf("Side data (%d bytes) arrived after binding; kept for next bind", len(data))
	}
}

func (e *Engine) onFormatLocked(format audio.Format) error {
	if e.State() == StateStopped {
		return nil
	}
	if e.binding == nil {
		return e.bindLocked(format)
	}
	if format == e.format {
		return nil
	}

	switch e.config.FormatChange {
	case FormatChangeRebind:
		return e.rebindLocked(format)
	default:
		e.report(fmt.Errorf("%w: %s -> %s", ErrFormatChanged, e.format, format))
		return nil
	}
}

func (e *Engine) bindLocked(format audio.Format) error {
	e.setState(StateBinding)

	fail := func(err error) error {
		berr := &BindingError{Format: format, Err: err}
		e.logger().WithError(err).Errorf("Failed to bind output for %s", format)
		e.teardownLocked()
		return berr
	}

	if err := format.Validate(); err != nil {
		return fail(err)
	}

	binding, err := e.device.Bind(format, e.sideData, e.onBufferConsumed)
	if err != nil {
		return fail(err)
	}

	e.binding = binding
	e.format = format
	e.bound.Store(&format)
	e.pool.Allocate(e.config.Buffers, e.config.BufferSize)
	e.feed.reset()
	e.started = false
	e.primed = 0

	e.transformMu.Lock()
	e.live = binding
	if err := e.transform.Apply(binding); err != nil {
		e.logger().WithError(err).Warn("Failed to apply sound transform")
	}
	e.transformMu.Unlock()

	e.setState(StateRunning)
	e.logger().WithFields(log.Fields{
		"buffers":     e.config.Buffers,
		"buffer_size": e.config.BufferSize,
		"side_data":   len(e.sideData),
	}).Infof("Output bound: %s", format)
	return nil
}

// rebindLocked plays out every queued slot before switching formats
func (e *Engine) rebindLocked(format audio.Format) error {
	e.logger().Infof("Format change %s -> %s, draining before rebind", e.format, format)

	if err := e.feed.flush(); err != nil {
		return nil // interrupted by StopRunning
	}
	e.startDeviceLocked()
	if err := e.pool.WaitIdle(context.Background()); err != nil {
		return nil
	}

	e.releaseBindingLocked()
	e.stats.rebinds.Add(1)
	return e.bindLocked(format)
}

func (e *Engine) onPacketsLocked(data []byte, packets []audio.PacketDescriptor) {
	if e.State() == StateStopped {
		return
	}
	if e.binding == nil {
		for _, p := range packets {
			e.drop(&PacketDroppedError{Size: p.Size, Reason: ErrNotBound})
		}
		return
	}

	for _, p := range packets {
		err := e.feed.onPacket(data, p)
		switch {
		case err == nil:
			e.stats.packets.Add(1)
		case errors.Is(err, ErrInterrupted):
			return
		default:
			e.drop(err)
		}
	}
}

// enqueueSlot is the feed coordinator's hand-off to the device
func (e *Engine) enqueueSlot(slot int, data []byte, packets []audio.PacketDescriptor) {
	e.pool.MarkBusy(slot)

	err := e.binding.Enqueue(Buffer{
		ID:      e.pool.ID(slot),
		Data:    data,
		Packets: packets,
	})
	if err != nil {
		e.pool.MarkFree(slot)
		e.stats.enqueueErrors.Add(1)
		e.report(&DeviceEnqueueError{Slot: slot, Err: err})
		return
	}

	e.stats.enqueued.Add(1)
	e.primed++
	if e.primed >= e.config.PrimeBuffers {
		e.startDeviceLocked()
	}
}

func (e *Engine) startDeviceLocked() {
	if e.started || e.binding == nil {
		return
	}
	if err := e.binding.Start(); err != nil {
		e.report(fmt.Errorf("failed to start output: %w", err))
		return
	}
	e.started = true
	e.logger().Debugf("Output started after %d buffers", e.primed)
}

// releaseBindingLocked stops the device, then releases the binding and
// the slots, in that order
func (e *Engine) releaseBindingLocked() {
	if e.binding != nil {
		if err := e.binding.Stop(); err != nil {
			e.logger().WithError(err).Warn("Output stop error")
		}

		e.transformMu.Lock()
		e.live = nil
		e.transformMu.Unlock()

		if err := e.binding.Close(); err != nil {
			e.logger().WithError(err).Warn("Output close error")
		}
		e.binding = nil
	}

	e.pool.Release()
	e.feed.reset()
	e.started = false
	e.primed = 0
	e.bound.Store(nil)
}

func (e *Engine) teardownLocked() {
	e.releaseBindingLocked()

	if e.parser != nil {
		if err := e.parser.Close(); err != nil {
			e.logger().WithError(err).Warn("Parser close error")
		}
		e.parser = nil
	}
	e.format = audio.Format{}
	e.sideData = nil
	e.running.Store(false)
	e.pool.Resume()
	e.setState(StateStopped)
}

func (e *Engine) setState(s State) {
	if State(e.state.Swap(int32(s))) == s {
		return
	}
	if e.config.OnStateChange != nil {
		e.config.OnStateChange(s)
	}
}

func (e *Engine) drop(err error) {
	e.stats.dropped.Add(1)
	e.report(err)
}

func (e *Engine) report(err error) {
	if e.config.OnError != nil {
		e.config.OnError(err)
		return
	}
	e.logger().WithError(err).Warn("Playback diagnostic")
}

func (e *Engine) logger() *log.Entry {
	return log.WithField("session", e.SessionID())
}

// sessionListener adapts parser callbacks for one session. The parser
// calls it synchronously from Feed, so e.mu is already held.
type sessionListener struct {
	e   *Engine
	err error
}

func (l *sessionListener) OnSideData(data []byte) {
	l.e.setSideDataLocked(data)
}

func (l *sessionListener) OnFormat(format audio.Format) {
	if err := l.e.onFormatLocked(format); err != nil && l.err == nil {
		l.err = err
	}
}

func (l *sessionListener) OnPackets(data []byte, packets []audio.PacketDescriptor) {
	l.e.onPacketsLocked(data, packets)
}
