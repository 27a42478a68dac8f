package runtimehost_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
	"github.com/Sumatoshi-tech/gcpacer/pkg/runtimehost"
)

func newTestCollector(gcCalls, releases *int) *runtimehost.Collector {
	return runtimehost.NewCollector(runtimehost.CollectorConfig{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		GC:           func() { *gcCalls++ },
		FreeOSMemory: func() { *releases++ },
	})
}

func TestCollector_Phases(t *testing.T) {
	t.Parallel()

	var gcCalls, releases int

	col := newTestCollector(&gcCalls, &releases)

	_, ok := col.LastSweep()
	assert.False(t, ok)

	col.RunMinorCollection()
	_, ok = col.LastSweep()
	assert.False(t, ok, "minor collections do not report a sweep")

	col.RunMajorCollection()
	col.ReleaseFreeMemory()

	_, ok = col.LastSweep()
	assert.True(t, ok)
	assert.Equal(t, 2, gcCalls)
	assert.Equal(t, 1, releases)
}

func TestCollector_EvictersRunInNameOrder(t *testing.T) {
	t.Parallel()

	var gcCalls, releases int

	col := newTestCollector(&gcCalls, &releases)

	var order []string

	col.RegisterCache("b", func(pacer.EvictionEffort) { order = append(order, "b") })
	col.RegisterCache("a", func(effort pacer.EvictionEffort) {
		assert.Equal(t, pacer.EffortBestEffort, effort)
		order = append(order, "a")
	})
	col.RegisterCache("gone", func(pacer.EvictionEffort) { order = append(order, "gone") })
	col.UnregisterCache("gone")

	col.EvictCaches(pacer.EffortBestEffort)

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestCollector_EvicterPanicIsContained(t *testing.T) {
	t.Parallel()

	var gcCalls, releases int

	col := newTestCollector(&gcCalls, &releases)

	called := false

	col.RegisterCache("a", func(pacer.EvictionEffort) { panic("boom") })
	col.RegisterCache("b", func(pacer.EvictionEffort) { called = true })

	assert.NotPanics(t, func() { col.EvictCaches(pacer.EffortAggressive) })
	assert.True(t, called)
}

func TestCollector_Epochs(t *testing.T) {
	t.Parallel()

	var gcCalls, releases int

	col := newTestCollector(&gcCalls, &releases)

	assert.GreaterOrEqual(t, col.EdenEpoch(), uint64(1))
	assert.GreaterOrEqual(t, col.FullEpoch(), uint64(1))
}

func TestCollector_SafetyTimer(t *testing.T) {
	t.Parallel()

	var gcCalls, releases int

	col := newTestCollector(&gcCalls, &releases)

	assert.True(t, col.StopTheWorldTimerEnabled())

	col.SetStopTheWorldTimer(false)
	assert.False(t, col.StopTheWorldTimerEnabled())
}

func TestCollector_DrivesController(t *testing.T) {
	t.Parallel()

	var gcCalls, releases int

	col := newTestCollector(&gcCalls, &releases)
	sig := runtimehost.NewSignals(runtimehost.SignalsConfig{RAMOverride: 64 << 30})
	timers := &recordingTimers{}

	ctrl, err := pacer.New(pacer.ControllerConfig{
		Signals:   sig,
		Hooks:     col,
		Timers:    timers,
		LookupEnv: func(string) (string, bool) { return "1", true },
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	assert.False(t, col.StopTheWorldTimerEnabled())

	ctrl.CollectNow(pacer.KindFull)

	assert.Equal(t, 1, gcCalls)
	assert.Equal(t, uint64(1), ctrl.Metrics().SweepCount)
}

type recordingTimers struct{}

func (recordingTimers) Schedule(pacer.Kind, time.Duration) {}
func (recordingTimers) Cancel(pacer.Kind)                  {}
