package pacer

import "time"

// HostSignals is the read-only telemetry the controller consults.
// Readings may race with allocation on other goroutines; approximate values
// are acceptable.
type HostSignals interface {
	// BlockBytesAllocated returns the bytes currently allocated in heap blocks.
	BlockBytesAllocated() uint64
	// RAMSize returns total physical memory, or zero when unknown.
	RAMSize() uint64
	// ResidentSetSize returns the process RSS; ok is false when the
	// platform cannot report it.
	ResidentSetSize() (rss uint64, ok bool)
	// HasMoreEventLoopWork reports whether the host's loop has queued work.
	HasMoreEventLoopWork() bool
	// IsBusyDoingImportantWork reports whether latency-sensitive work is in flight.
	IsBusyDoingImportantWork() bool
}

// EvictionEffort tells a collaborator how hard to try when evicting caches.
type EvictionEffort uint8

// Eviction efforts.
const (
	EffortBestEffort EvictionEffort = iota
	EffortAggressive
)

// String returns the effort name.
func (e EvictionEffort) String() string {
	if e == EffortAggressive {
		return "aggressive"
	}

	return "best_effort"
}

// CollectorHooks are the entry points of the collector being paced.
// Implementations swallow or log their own failures.
type CollectorHooks interface {
	RunMinorCollection()
	RunMajorCollection()
	EvictCaches(effort EvictionEffort)
	ReleaseFreeMemory()
}

// EpochReporter is implemented by collectors that expose generation markers.
// Each marker advances exactly when a real collection of that generation
// completes and must never be zero.
type EpochReporter interface {
	EdenEpoch() uint64
	FullEpoch() uint64
}

// SweepReporter is implemented by collectors that time their sweep phase.
type SweepReporter interface {
	// LastSweep returns the duration of the sweep that followed the most
	// recent collection; ok is false when no timing is available.
	LastSweep() (d time.Duration, ok bool)
}

// SafetyTimerHook is implemented by collectors that run a stop-the-world
// safety timer the embedding may disable.
type SafetyTimerHook interface {
	SetStopTheWorldTimer(enabled bool)
}

// Timers is the embedding runtime's timer primitive. Schedule replaces any
// pending timer of the same kind. When a timer fires, the embedding calls
// [Controller.OnTimer] on the goroutine that owns the controller.
type Timers interface {
	Schedule(kind Kind, delay time.Duration)
	Cancel(kind Kind)
}
