package pacer

// PressureMonitor decides whether the heap is under memory pressure.
// It is a pure function of its inputs and safe to call from any goroutine;
// stale allocation readings only make the answer approximate.
type PressureMonitor struct {
	Tuning Tuning
}

// UnderPressure reports memory pressure when any of the following holds:
// allocated/ram exceeds PressureRatio; allocation grew by more than
// GrowthRatio since lastAllocated while plateauTicks is below GrowthPlateau;
// or allocated exceeds AbsoluteCap regardless of RAM size.
// A zero ram disables the ratio check.
func (t Tuning) UnderPressure(allocated, ram, lastAllocated uint64, plateauTicks uint32) bool {
	if ram > 0 && float64(allocated)/float64(ram) > t.PressureRatio {
		return true
	}

	if lastAllocated > 0 && plateauTicks < t.GrowthPlateau &&
		float64(allocated) > float64(lastAllocated)*t.GrowthRatio {
		return true
	}

	return allocated > t.AbsoluteCap
}

// UnderPressure evaluates the monitor's tuning against the given sample.
func (m PressureMonitor) UnderPressure(allocated, ram, lastAllocated uint64, plateauTicks uint32) bool {
	return m.Tuning.UnderPressure(allocated, ram, lastAllocated, plateauTicks)
}

// IsUnderPressure evaluates the default tuning against the given sample.
func IsUnderPressure(allocated, ram, lastAllocated uint64, plateauTicks uint32) bool {
	return DefaultTuning().UnderPressure(allocated, ram, lastAllocated, plateauTicks)
}
