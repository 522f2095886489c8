// ABOUTME: Error taxonomy for the playback engine
// ABOUTME: Binding failures are fatal to a session, packet and enqueue failures are diagnostics
package playback

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

var (
	// ErrNotRunning is returned when bytes are fed to a stopped engine
	ErrNotRunning = errors.New("playback: engine not running")

	// ErrInterrupted is returned by pool waits cut short by StopRunning
	ErrInterrupted = errors.New("playback: wait interrupted")

	// ErrFormatChanged reports a rejected mid-session format change
	ErrFormatChanged = errors.New("playback: format changed while bound")

	// ErrUnknownBuffer reports a completion for a buffer the pool does not own
	ErrUnknownBuffer = errors.New("playback: unknown buffer handle")

	// ErrNotBound reports packets that arrived before the stream format
	ErrNotBound = errors.New("playback: no device binding")
)

// BindingError means the device rejected the format or side data, or
// buffer allocation failed. The session is over and the engine is stopped.
type BindingError struct {
	Format audio.Format
	Err    error
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("playback: bind %s: %v", e.Format, e.Err)
}

func (e *BindingError) Unwrap() error { return e.Err }

// PacketDroppedError describes a single packet that could not be copied into
// a slot. Playback continues.
type PacketDroppedError struct {
	Size   int
	Reason error
}

func (e *PacketDroppedError) Error() string {
	return fmt.Sprintf("playback: dropped %d-byte packet: %v", e.Size, e.Reason)
}

func (e *PacketDroppedError) Unwrap() error { return e.Reason }

// DeviceEnqueueError means the device refused a slot. The slot has been
// marked free again.
type DeviceEnqueueError struct {
	Slot int
	Err  error
}

func (e *DeviceEnqueueError) Error() string {
	return fmt.Sprintf("playback: enqueue slot %d: %v", e.Slot, e.Err)
}

func (e *DeviceEnqueueError) Unwrap() error { return e.Err }
