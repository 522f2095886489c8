// ABOUTME: Playback counters shared by the feed and device goroutines
// ABOUTME: Lock-free so the completion callback can update them cheaply
package playback

import "sync/atomic"

// Stats is a snapshot of engine counters
type Stats struct {
	Packets        int64 // packets copied into slots
	Dropped        int64 // packets rejected by the feed coordinator
	Enqueued       int64 // slots handed to the device
	Completed      int64 // slots returned by the device
	EnqueueErrors  int64 // slots the device refused
	Backpressure   int64 // rotations that had to wait for a busy slot
	UnknownBuffers int64 // completions that did not resolve to a slot
	Rebinds        int64 // format changes handled by rebinding
}

type counters struct {
	packets        atomic.Int64
	dropped        atomic.Int64
	enqueued       atomic.Int64
	completed      atomic.Int64
	enqueueErrors  atomic.Int64
	backpressure   atomic.Int64
	unknownBuffers atomic.Int64
	rebinds        atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Packets:        c.packets.Load(),
		Dropped:        c.dropped.Load(),
		Enqueued:       c.enqueued.Load(),
		Completed:      c.completed.Load(),
		EnqueueErrors:  c.enqueueErrors.Load(),
		Backpressure:   c.backpressure.Load(),
		UnknownBuffers: c.unknownBuffers.Load(),
		Rebinds:        c.rebinds.Load(),
	}
}
