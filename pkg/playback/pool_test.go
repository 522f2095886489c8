// ABOUTME: Tests for the buffer pool
// ABOUTME: Tests allocation, busy tracking, handles and blocking waits
package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocate(t *testing.T) {
	p := NewPool()
	p.Allocate(4, 1024)

	assert.Equal(t, 4, p.Len())
	assert.Equal(t, 1024, p.Capacity())
	assert.Equal(t, 0, p.BusyCount())
	for i := 0; i < p.Len(); i++ {
		assert.Len(t, p.Bytes(i), 1024)
		assert.False(t, p.IsBusy(i))
	}
}

func TestPoolAllocateInvalid(t *testing.T) {
	p := NewPool()
	assert.Panics(t, func() { p.Allocate(0, 1024) })
	assert.Panics(t, func() { p.Allocate(4, 0) })
}

func TestPoolIndexOutOfRange(t *testing.T) {
	p := NewPool()
	p.Allocate(2, 16)
	assert.Panics(t, func() { p.MarkBusy(2) })
	assert.Panics(t, func() { p.IsBusy(-1) })
}

func TestPoolBusyFree(t *testing.T) {
	p := NewPool()
	p.Allocate(3, 16)

	p.MarkBusy(0)
	p.MarkBusy(2)
	assert.Equal(t, []bool{true, false, true}, p.Snapshot())
	assert.Equal(t, 2, p.BusyCount())

	p.MarkFree(0)
	assert.Equal(t, []bool{false, false, true}, p.Snapshot())
}

func TestPoolHandles(t *testing.T) {
	p := NewPool()
	p.Allocate(4, 16)

	id := p.ID(3)
	i, ok := p.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, 3, i)

	// A handle from a previous allocation never resolves
	p.Allocate(4, 16)
	_, ok = p.Lookup(id)
	assert.False(t, ok)

	_, ok = p.Lookup(BufferID(12345))
	assert.False(t, ok)

	p.Release()
	_, ok = p.Lookup(p.generationID(0))
	assert.False(t, ok)
}

// generationID builds a handle for the current generation without a range
// check, for probing Lookup
func (p *Pool) generationID(i int) BufferID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return BufferID(uint64(p.generation)<<32 | uint64(i))
}

func TestPoolWaitFreeReturnsImmediately(t *testing.T) {
	p := NewPool()
	p.Allocate(2, 16)
	assert.NoError(t, p.WaitFree(1))
}

func TestPoolWaitFreeBlocksUntilFree(t *testing.T) {
	p := NewPool()
	p.Allocate(2, 16)
	p.MarkBusy(1)

	done := make(chan error, 1)
	go func() { done <- p.WaitFree(1) }()

	select {
	case <-done:
		t.Fatal("WaitFree returned while slot busy")
	case <-time.After(50 * time.Millisecond):
	}

	p.MarkFree(1)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitFree did not return after MarkFree")
	}
}

func TestPoolInterrupt(t *testing.T) {
	p := NewPool()
	p.Allocate(2, 16)
	p.MarkBusy(0)

	done := make(chan error, 1)
	go func() { done <- p.WaitFree(0) }()

	time.Sleep(20 * time.Millisecond)
	p.Interrupt()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("WaitFree not interrupted")
	}

	// Interrupt is sticky until Resume, even across reallocation
	p.Allocate(2, 16)
	assert.ErrorIs(t, p.WaitFree(0), ErrInterrupted)

	p.Resume()
	assert.NoError(t, p.WaitFree(0))
}

func TestPoolReleaseWakesWaiter(t *testing.T) {
	p := NewPool()
	p.Allocate(2, 16)
	p.MarkBusy(1)

	done := make(chan error, 1)
	go func() { done <- p.WaitFree(1) }()

	time.Sleep(20 * time.Millisecond)
	p.Release()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("WaitFree not woken by Release")
	}
}

func TestPoolWaitIdle(t *testing.T) {
	p := NewPool()
	p.Allocate(3, 16)
	p.MarkBusy(0)
	p.MarkBusy(2)

	go func() {
		time.Sleep(10 * time.Millisecond)
		p.MarkFree(0)
		time.Sleep(10 * time.Millisecond)
		p.MarkFree(2)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.WaitIdle(ctx))
	assert.Equal(t, 0, p.BusyCount())
}

func TestPoolWaitIdleContext(t *testing.T) {
	p := NewPool()
	p.Allocate(1, 16)
	p.MarkBusy(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.WaitIdle(ctx), context.DeadlineExceeded)
}
