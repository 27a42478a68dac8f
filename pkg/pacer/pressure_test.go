package pacer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

func TestUnderPressure_RatioAlwaysWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		allocated     uint64
		ram           uint64
		lastAllocated uint64
		plateauTicks  uint32
	}{
		{"no history", 800, 1000, 0, 0},
		{"shrinking", 710, 1000, 900, 0},
		{"long plateau", 701 * units.MiB, 1000 * units.MiB, 701 * units.MiB, 50},
		{"tiny heap", 8, 10, 8, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.True(t, IsUnderPressure(tt.allocated, tt.ram, tt.lastAllocated, tt.plateauTicks))
		})
	}
}

func TestUnderPressure_GrowthBoundaryIsStrict(t *testing.T) {
	t.Parallel()

	const ram = 100 * units.GiB

	assert.False(t, IsUnderPressure(1500, ram, 1000, 0))
	assert.True(t, IsUnderPressure(1501, ram, 1000, 0))
	assert.True(t, IsUnderPressure(1501, ram, 1000, DefaultGrowthPlateau-1))
}

func TestUnderPressure_GrowthIgnoredOnPlateauOrWithoutHistory(t *testing.T) {
	t.Parallel()

	const ram = 100 * units.GiB

	assert.False(t, IsUnderPressure(5000, ram, 1000, DefaultGrowthPlateau))
	assert.False(t, IsUnderPressure(5000, ram, 0, 0))
}

func TestUnderPressure_AbsoluteCap(t *testing.T) {
	t.Parallel()

	const hugeRAM = 1 << 50

	assert.True(t, IsUnderPressure(units.GiB+1, hugeRAM, units.GiB+1, 100))
	assert.False(t, IsUnderPressure(units.GiB, hugeRAM, units.GiB, 100))
}

func TestUnderPressure_UnknownRAM(t *testing.T) {
	t.Parallel()

	assert.False(t, IsUnderPressure(100*units.MiB, 0, 100*units.MiB, 0))
}

func TestPressureMonitor_UsesTuning(t *testing.T) {
	t.Parallel()

	tuning := DefaultTuning()
	tuning.PressureRatio = 0.5

	monitor := PressureMonitor{Tuning: tuning}

	assert.True(t, monitor.UnderPressure(600, 1000, 600, 20))
	assert.False(t, PressureMonitor{Tuning: DefaultTuning()}.UnderPressure(600, 1000, 600, 20))
}
