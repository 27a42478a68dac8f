package runtimehost

import (
	"sync"
	"sync/atomic"
)

// BusyTracker counts latency-sensitive units of work in flight.
// Safe for concurrent use.
type BusyTracker struct {
	inflight atomic.Int64
}

// Begin marks one unit of work as started and returns the function that
// marks it finished. Calling the returned function more than once is a no-op.
func (b *BusyTracker) Begin() func() {
	b.inflight.Add(1)

	var once sync.Once

	return func() {
		once.Do(func() { b.inflight.Add(-1) })
	}
}

// InFlight returns the number of unfinished units.
func (b *BusyTracker) InFlight() int64 {
	return b.inflight.Load()
}

// Busy reports whether any unit is in flight.
func (b *BusyTracker) Busy() bool {
	return b.inflight.Load() > 0
}
