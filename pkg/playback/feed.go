// ABOUTME: Stream feed coordinator copying parsed packets into pool slots
// ABOUTME: Decides when to enqueue the current slot and rotate to the next
package playback

import (
	"errors"

	"github.com/Resonate-Protocol/streamplay/pkg/audio"
)

var (
	errPacketBounds   = errors.New("packet range outside source buffer")
	errPacketTooLarge = errors.New("packet larger than slot capacity")
)

// feeder accumulates packets into the slot at current. Slot capacity must be
// at least the largest packet the stream can carry; larger packets are
// dropped, never truncated.
type feeder struct {
	pool       *Pool
	maxPackets int

	current int
	filled  int
	packets []audio.PacketDescriptor

	// stalled is set when a rotation wait was interrupted. current may
	// then name a slot the device still owns, so nothing is written until
	// reset.
	stalled bool

	// enqueue hands a filled slot to the device
	enqueue func(slot int, data []byte, packets []audio.PacketDescriptor)
	// waited is called when rotation has to block on a busy slot
	waited func()
}

// onPacket copies the packet described by desc out of data into the
// current slot, enqueuing and rotating first if it does not fit
func (f *feeder) onPacket(data []byte, desc audio.PacketDescriptor) error {
	if f.stalled {
		return ErrInterrupted
	}
	if desc.Offset < 0 || desc.Size < 0 || desc.End() > int64(len(data)) {
		return &PacketDroppedError{Size: desc.Size, Reason: errPacketBounds}
	}

	capacity := f.pool.Capacity()
	if desc.Size > capacity {
		return &PacketDroppedError{Size: desc.Size, Reason: errPacketTooLarge}
	}

	if len(f.packets) > 0 && (capacity-f.filled < desc.Size || len(f.packets) >= f.maxPackets) {
		f.enqueueCurrent()
		if err := f.rotate(); err != nil {
			return err
		}
	}

	slot := f.pool.Bytes(f.current)
	copy(slot[f.filled:], data[desc.Offset:desc.End()])

	desc.Offset = int64(f.filled)
	f.packets = append(f.packets, desc)
	f.filled += desc.Size
	return nil
}

// flush enqueues a partially filled slot and rotates
func (f *feeder) flush() error {
	if f.stalled {
		return ErrInterrupted
	}
	if len(f.packets) == 0 {
		return nil
	}
	f.enqueueCurrent()
	return f.rotate()
}

func (f *feeder) enqueueCurrent() {
	packets := make([]audio.PacketDescriptor, len(f.packets))
	copy(packets, f.packets)
	f.enqueue(f.current, f.pool.Bytes(f.current)[:f.filled], packets)
}

// rotate moves to the next slot and blocks until the device has released it
func (f *feeder) rotate() error {
	f.current = (f.current + 1) % f.pool.Len()
	f.filled = 0
	f.packets = f.packets[:0]

	if f.pool.IsBusy(f.current) && f.waited != nil {
		f.waited()
	}
	if err := f.pool.WaitFree(f.current); err != nil {
		f.stalled = true
		return err
	}
	return nil
}

func (f *feeder) reset() {
	f.stalled = false
	f.current = 0
	f.filled = 0
	f.packets = nil
}
