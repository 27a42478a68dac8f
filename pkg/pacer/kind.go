// Package pacer decides when an external garbage collector should run its
// minor (eden) and major (full) phases. It owns no collection mechanics: the
// host supplies telemetry through [HostSignals], collector entry points
// through [CollectorHooks], and timers through [Timers].
package pacer

// Kind identifies a collection schedule.
type Kind uint8

// Schedule kinds.
const (
	// KindEden schedules minor collections over recently allocated objects.
	KindEden Kind = iota
	// KindFull schedules major collections over the entire heap.
	KindFull
	// KindIdleReclaim schedules a major collection followed by returning
	// free memory to the OS once the host has been idle for a while.
	KindIdleReclaim

	kindCount
)

// Kinds lists every schedule kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindEden, KindFull, KindIdleReclaim}
}

// String returns the lower-case name used in logs and metric attributes.
func (k Kind) String() string {
	switch k {
	case KindEden:
		return "eden"
	case KindFull:
		return "full"
	case KindIdleReclaim:
		return "idle_reclaim"
	default:
		return "unknown"
	}
}

// Major reports whether the kind runs the major collection phase.
func (k Kind) Major() bool {
	return k == KindFull || k == KindIdleReclaim
}
