// ABOUTME: Fixed pool of fixed-capacity playback buffers with busy/free tracking
// ABOUTME: Busy flags are the only state shared with the device callback
package playback

import (
	"context"
	"fmt"
	"sync"
)

// Pool owns N slots of equal capacity. A busy slot belongs to the device
// until MarkFree is called for it.
//
// All slot state is guarded by one mutex; waiters block on a single
// condition variable and re-check the slot table when woken.
type Pool struct {
	mu          sync.Mutex
	cond        *sync.Cond
	slots       []slot
	capacity    int
	generation  uint32
	interrupted bool
}

type slot struct {
	data []byte
	busy bool
}

// NewPool creates an empty pool. Call Allocate before use.
func NewPool() *Pool {
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Allocate replaces any previous slots with n zeroed, free slots of the
// given capacity. Handles from earlier allocations stop resolving.
func (p *Pool) Allocate(n, capacity int) {
	if n <= 0 || capacity <= 0 {
		panic(fmt.Sprintf("playback: invalid pool size %d x %d", n, capacity))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.slots = make([]slot, n)
	for i := range p.slots {
		p.slots[i].data = make([]byte, capacity)
	}
	p.capacity = capacity
	p.cond.Broadcast()
}

// Release drops all slots. The device must already be stopped.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.slots = nil
	p.capacity = 0
	p.cond.Broadcast()
}

// Interrupt wakes every waiter with ErrInterrupted. Waits keep failing
// until Resume is called.
func (p *Pool) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interrupted = true
	p.cond.Broadcast()
}

// Resume lets waits block again after an Interrupt
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interrupted = false
}

// Len returns the number of slots
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Capacity returns the per-slot capacity in bytes
func (p *Pool) Capacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity
}

// Bytes returns the storage of slot i. Callers write to it only while the
// slot is free.
func (p *Pool) Bytes(i int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.check(i)
	return p.slots[i].data
}

// MarkBusy hands slot i to the device
func (p *Pool) MarkBusy(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.check(i)
	p.slots[i].busy = true
}

// MarkFree returns slot i to the producer and wakes waiters
func (p *Pool) MarkFree(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.check(i)
	p.slots[i].busy = false
	p.cond.Broadcast()
}

// IsBusy reports whether slot i is owned by the device
func (p *Pool) IsBusy(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.check(i)
	return p.slots[i].busy
}

// BusyCount returns how many slots the device currently owns
func (p *Pool) BusyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busyCountLocked()
}

// Snapshot returns the busy flag of every slot
func (p *Pool) Snapshot() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	busy := make([]bool, len(p.slots))
	for i, s := range p.slots {
		busy[i] = s.busy
	}
	return busy
}

// ID returns the handle the device reports back for slot i
func (p *Pool) ID(i int) BufferID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.check(i)
	return BufferID(uint64(p.generation)<<32 | uint64(i))
}

// Lookup resolves a handle to a slot index of the current allocation
func (p *Pool) Lookup(id BufferID) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if uint32(uint64(id)>>32) != p.generation {
		return 0, false
	}
	i := int(uint32(id))
	if i >= len(p.slots) {
		return 0, false
	}
	return i, true
}

// WaitFree blocks until slot i is free. It returns ErrInterrupted if the
// pool is interrupted, reallocated or released while waiting.
func (p *Pool) WaitFree(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.check(i)

	gen := p.generation
	for {
		if p.interrupted || p.generation != gen {
			return ErrInterrupted
		}
		if !p.slots[i].busy {
			return nil
		}
		p.cond.Wait()
	}
}

// WaitIdle blocks until no slot is busy, the context is done, or the pool
// is interrupted
func (p *Pool) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if p.interrupted {
			return ErrInterrupted
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.busyCountLocked() == 0 {
			return nil
		}
		p.cond.Wait()
	}
}

func (p *Pool) busyCountLocked() int {
	n := 0
	for _, s := range p.slots {
		if s.busy {
			n++
		}
	}
	return n
}

// check panics on an out-of-range index (must hold p.mu)
func (p *Pool) check(i int) {
	if i < 0 || i >= len(p.slots) {
		panic(fmt.Sprintf("playback: slot index %d out of range [0,%d)", i, len(p.slots)))
	}
}
