package pacer

import "time"

// Action names a controller decision.
type Action string

// Controller actions.
const (
	ActionScheduled      Action = "scheduled"
	ActionDeferred       Action = "deferred"
	ActionCollected      Action = "collected"
	ActionCancelled      Action = "cancelled"
	ActionCachesEvicted  Action = "caches_evicted"
	ActionMemoryReleased Action = "memory_released"
)

// Event describes one decision taken by the controller.
type Event struct {
	Kind       Kind
	Action     Action
	Delay      time.Duration
	DeferCount uint32
	Aggressive bool
	Pressure   bool
	// Sweep is set on collections whose sweep phase was timed.
	Sweep    time.Duration
	HasSweep bool
	// Forced marks collections requested through CollectNow.
	Forced bool
}

// Observer receives controller events synchronously on the controller's goroutine.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(ev Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }
