// ABOUTME: Contracts between the engine and its external collaborators
// ABOUTME: Device/Binding on the output side, Parser on the input side
package playback

import (
	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

// BufferID is the opaque handle a device hands back when it has finished
// with a buffer
type BufferID uint64

// Buffer is one filled slot handed to a device
type Buffer struct {
	ID      BufferID
	Data    []byte                   // valid until the device reports completion
	Packets []audio.PacketDescriptor // offsets are relative to Data
}

// Device creates bindings for a stream format
type Device interface {
	// Bind prepares the device for format. sideData is the codec
	// configuration announced by the parser (may be nil). onConsumed is
	// invoked from the device's own goroutine for every buffer it finishes.
	Bind(format audio.Format, sideData []byte, onConsumed func(BufferID)) (Binding, error)
}

// Binding is a device bound to one format for one session
type Binding interface {
	// Enqueue hands a buffer to the device. The device owns buf.Data until
	// it reports completion.
	Enqueue(buf Buffer) error

	// Start begins consumption
	Start() error

	// Stop halts consumption. Once Stop returns the device invokes no
	// further completion callbacks.
	Stop() error

	// Close releases the binding. Buffers still queued are discarded
	// without completion callbacks.
	Close() error

	// SetTransform updates volume/pan parameters
	SetTransform(t SoundTransform) error
}

// Parser turns raw stream bytes into listener callbacks
type Parser interface {
	Parse(data []byte) error
	Close() error
}

// flusher is implemented by parsers that hold back a partial packet
type flusher interface {
	Flush() error
}

// ParserFactory creates a fresh parser for each running session
type ParserFactory func(listener audio.PacketListener) (Parser, error)
