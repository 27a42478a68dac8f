package pacer

import "time"

// ScheduleState is the defer/backoff state machine behind one collection
// schedule. It remembers the heap epoch seen when it was last armed; while
// that epoch stays unchanged, each further arm counts as a deferral until
// the kind's threshold forces the collection.
type ScheduleState struct {
	kind Kind

	epochVersion uint64
	deferCount   uint32
	delay        time.Duration
	interval     time.Duration
	enabled      bool
	aggressive   bool
	pending      bool

	threshold           uint32
	aggressiveThreshold uint32
}

// NewScheduleState returns an enabled, fresh state for kind.
func NewScheduleState(kind Kind, tuning Tuning) ScheduleState {
	return ScheduleState{
		kind:                kind,
		delay:               tuning.baseDelay(kind),
		interval:            tuning.baseDelay(kind),
		enabled:             true,
		threshold:           tuning.deferThreshold(kind, false),
		aggressiveThreshold: tuning.deferThreshold(kind, true),
	}
}

// Arm records an arm request made at the given heap epoch.
//
// A changed epoch means the previously armed work already happened: the
// state adopts the epoch, clears the defer counter and asks for a timer at
// delay. Otherwise the defer counter grows, and once it reaches the
// threshold Arm reports fireNow; the caller collects and then calls Reset.
func (s *ScheduleState) Arm(epoch uint64, delay time.Duration, aggressive bool) (fireNow bool, next time.Duration) {
	s.aggressive = aggressive
	s.delay = delay

	if epoch != s.epochVersion {
		s.epochVersion = epoch
		s.deferCount = 0

		return false, delay
	}

	s.deferCount++

	if s.deferCount < s.Threshold(aggressive) {
		return false, delay
	}

	return true, delay
}

// Threshold returns the defer threshold for the given cadence.
func (s ScheduleState) Threshold(aggressive bool) uint32 {
	if aggressive {
		return s.aggressiveThreshold
	}

	return s.threshold
}

// Reset starts a fresh cycle after a collection.
func (s *ScheduleState) Reset() {
	s.epochVersion = 0
	s.deferCount = 0
}

// Cancel disables the schedule. The owner cancels the pending timer.
func (s *ScheduleState) Cancel() {
	s.enabled = false
	s.pending = false
	s.Reset()
}

// Enable re-enables the schedule with a new interval from a clean epoch.
func (s *ScheduleState) Enable(interval time.Duration) {
	s.enabled = true
	s.pending = false
	s.interval = interval
	s.delay = interval
	s.Reset()
}

// Kind returns the schedule kind.
func (s ScheduleState) Kind() Kind { return s.kind }

// Epoch returns the last adopted heap epoch.
func (s ScheduleState) Epoch() uint64 { return s.epochVersion }

// DeferCount returns the consecutive re-arms since the epoch was adopted.
func (s ScheduleState) DeferCount() uint32 { return s.deferCount }

// Delay returns the last computed fire delay.
func (s ScheduleState) Delay() time.Duration { return s.delay }

// Interval returns the configured base interval.
func (s ScheduleState) Interval() time.Duration { return s.interval }

// Enabled reports whether the schedule accepts arm requests.
func (s ScheduleState) Enabled() bool { return s.enabled }

// Aggressive reports whether the last arm requested the short cadence.
func (s ScheduleState) Aggressive() bool { return s.aggressive }

// Pending reports whether a timer is outstanding for this schedule.
func (s ScheduleState) Pending() bool { return s.pending }
