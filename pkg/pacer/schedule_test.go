package pacer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleState_FirstArmAdoptsEpoch(t *testing.T) {
	t.Parallel()

	st := NewScheduleState(KindEden, DefaultTuning())
	require.Equal(t, uint64(0), st.Epoch())

	fireNow, next := st.Arm(5, 30*time.Millisecond, false)

	assert.False(t, fireNow)
	assert.Equal(t, 30*time.Millisecond, next)
	assert.Equal(t, uint64(5), st.Epoch())
	assert.Equal(t, uint32(0), st.DeferCount())
}

func TestScheduleState_ThresholdsPerKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		kind       Kind
		aggressive bool
		fireOnCall int
	}{
		{"eden normal", KindEden, false, 4},
		{"eden aggressive", KindEden, true, 2},
		{"full", KindFull, false, 3},
		{"idle reclaim", KindIdleReclaim, false, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			st := NewScheduleState(tt.kind, DefaultTuning())
			st.Arm(7, time.Millisecond, tt.aggressive)

			for call := 1; call < tt.fireOnCall; call++ {
				fireNow, _ := st.Arm(7, time.Millisecond, tt.aggressive)
				require.False(t, fireNow, "call %d", call)
				require.Equal(t, uint32(call), st.DeferCount())
			}

			fireNow, _ := st.Arm(7, time.Millisecond, tt.aggressive)
			assert.True(t, fireNow)
			assert.Equal(t, uint32(tt.fireOnCall), st.DeferCount())
		})
	}
}

func TestScheduleState_ResetStartsFreshCycle(t *testing.T) {
	t.Parallel()

	st := NewScheduleState(KindEden, DefaultTuning())
	st.Arm(3, time.Millisecond, true)
	st.Arm(3, time.Millisecond, true)

	fireNow, _ := st.Arm(3, time.Millisecond, true)
	require.True(t, fireNow)

	st.Reset()
	assert.Equal(t, uint64(0), st.Epoch())
	assert.Equal(t, uint32(0), st.DeferCount())

	fireNow, _ = st.Arm(3, time.Millisecond, true)
	assert.False(t, fireNow)
	assert.Equal(t, uint32(0), st.DeferCount())
}

func TestScheduleState_EpochChangeClearsDefers(t *testing.T) {
	t.Parallel()

	st := NewScheduleState(KindFull, DefaultTuning())
	st.Arm(1, time.Millisecond, false)
	st.Arm(1, time.Millisecond, false)
	require.Equal(t, uint32(1), st.DeferCount())

	fireNow, _ := st.Arm(2, 2*time.Millisecond, false)
	assert.False(t, fireNow)
	assert.Equal(t, uint32(0), st.DeferCount())
	assert.Equal(t, 2*time.Millisecond, st.Delay())
}

func TestScheduleState_CancelAndEnable(t *testing.T) {
	t.Parallel()

	st := NewScheduleState(KindEden, DefaultTuning())
	require.True(t, st.Enabled())
	assert.Equal(t, DefaultEdenDelay, st.Interval())

	st.Arm(9, time.Millisecond, false)
	st.Arm(9, time.Millisecond, false)
	st.Cancel()

	assert.False(t, st.Enabled())
	assert.Equal(t, uint64(0), st.Epoch())

	st.Enable(10 * time.Millisecond)
	assert.True(t, st.Enabled())
	assert.Equal(t, 10*time.Millisecond, st.Interval())
	assert.Equal(t, uint32(0), st.DeferCount())
}
