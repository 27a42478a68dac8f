package pacer

import "time"

// Metrics holds monotonically increasing collection counters.
type Metrics struct {
	MinorCount       uint64  `json:"minor_count"`
	MajorCount       uint64  `json:"major_count"`
	SweepCount       uint64  `json:"sweep_count"`
	TotalSweepTimeMs float64 `json:"total_sweep_time_ms"`
	MaxSweepTimeMs   float64 `json:"max_sweep_time_ms"`
}

// recordSweep folds one sweep duration into the totals.
func (m *Metrics) recordSweep(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}

	m.SweepCount++
	m.TotalSweepTimeMs += ms

	if ms > m.MaxSweepTimeMs {
		m.MaxSweepTimeMs = ms
	}
}

// AverageSweepTimeMs returns the mean sweep time, or zero without sweeps.
func (m Metrics) AverageSweepTimeMs() float64 {
	if m.SweepCount == 0 {
		return 0
	}

	return m.TotalSweepTimeMs / float64(m.SweepCount)
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	*m = Metrics{}
}
