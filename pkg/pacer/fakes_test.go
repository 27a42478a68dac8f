package pacer_test

import (
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

type fakeSignals struct {
	allocated uint64
	ram       uint64
	rss       uint64
	rssOK     bool
	moreWork  bool
	busy      bool
	rssCalls  int
}

func (f *fakeSignals) BlockBytesAllocated() uint64 { return f.allocated }
func (f *fakeSignals) RAMSize() uint64             { return f.ram }

func (f *fakeSignals) ResidentSetSize() (uint64, bool) {
	f.rssCalls++

	return f.rss, f.rssOK
}

func (f *fakeSignals) HasMoreEventLoopWork() bool     { return f.moreWork }
func (f *fakeSignals) IsBusyDoingImportantWork() bool { return f.busy }

type fakeHooks struct {
	minors    int
	majors    int
	releases  int
	evictions []pacer.EvictionEffort
	calls     []string

	panicOnMinor bool
}

func (f *fakeHooks) RunMinorCollection() {
	f.calls = append(f.calls, "minor")
	f.minors++

	if f.panicOnMinor {
		panic("minor collection exploded")
	}
}

func (f *fakeHooks) RunMajorCollection() {
	f.calls = append(f.calls, "major")
	f.majors++
}

func (f *fakeHooks) EvictCaches(effort pacer.EvictionEffort) {
	f.calls = append(f.calls, "evict")
	f.evictions = append(f.evictions, effort)
}

func (f *fakeHooks) ReleaseFreeMemory() {
	f.calls = append(f.calls, "release")
	f.releases++
}

// reportingHooks adds the optional collector capabilities.
type reportingHooks struct {
	*fakeHooks

	edenEpoch uint64
	fullEpoch uint64
	sweeps    []time.Duration
	timerOn   []bool
}

func (r *reportingHooks) EdenEpoch() uint64 { return r.edenEpoch }
func (r *reportingHooks) FullEpoch() uint64 { return r.fullEpoch }

func (r *reportingHooks) LastSweep() (time.Duration, bool) {
	if len(r.sweeps) == 0 {
		return 0, false
	}

	d := r.sweeps[0]
	r.sweeps = r.sweeps[1:]

	return d, true
}

func (r *reportingHooks) SetStopTheWorldTimer(enabled bool) {
	r.timerOn = append(r.timerOn, enabled)
}

type scheduleCall struct {
	kind  pacer.Kind
	delay time.Duration
}

type fakeTimers struct {
	pending   map[pacer.Kind]time.Duration
	scheduled []scheduleCall
	cancelled []pacer.Kind
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{pending: make(map[pacer.Kind]time.Duration)}
}

func (f *fakeTimers) Schedule(kind pacer.Kind, delay time.Duration) {
	f.pending[kind] = delay
	f.scheduled = append(f.scheduled, scheduleCall{kind: kind, delay: delay})
}

func (f *fakeTimers) Cancel(kind pacer.Kind) {
	delete(f.pending, kind)
	f.cancelled = append(f.cancelled, kind)
}

func (f *fakeTimers) lastScheduled() scheduleCall {
	if len(f.scheduled) == 0 {
		return scheduleCall{}
	}

	return f.scheduled[len(f.scheduled)-1]
}

// fire delivers the pending timer of kind, if any.
func (f *fakeTimers) fire(ctrl *pacer.Controller, kind pacer.Kind) bool {
	if _, ok := f.pending[kind]; !ok {
		return false
	}

	delete(f.pending, kind)
	ctrl.OnTimer(kind)

	return true
}

// fireAll delivers every pending timer in deadline order.
func (f *fakeTimers) fireAll(ctrl *pacer.Controller) {
	kinds := make([]pacer.Kind, 0, len(f.pending))
	for kind := range f.pending {
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return f.pending[kinds[i]] < f.pending[kinds[j]] })

	for _, kind := range kinds {
		f.fire(ctrl, kind)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noEnv(string) (string, bool) { return "", false }

func newController(t *testing.T, sig pacer.HostSignals, hooks pacer.CollectorHooks, timers pacer.Timers,
	observers ...pacer.Observer,
) *pacer.Controller {
	t.Helper()

	ctrl, err := pacer.New(pacer.ControllerConfig{
		Signals:   sig,
		Hooks:     hooks,
		Timers:    timers,
		LookupEnv: noEnv,
		Logger:    quietLogger(),
		Observers: observers,
	})
	require.NoError(t, err)

	return ctrl
}
