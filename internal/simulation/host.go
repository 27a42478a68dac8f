package simulation

import (
	"time"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// Host is a scripted heap that implements the controller's collaborators.
// Allocation grows by a fixed amount per unit of work; a minor collection
// frees a fraction of the garbage above the live set, a major collection
// frees all of it.
type Host struct {
	ram          uint64
	minorReclaim float64
	sweepRate    uint64

	allocated uint64
	live      uint64
	cache     uint64
	highWater uint64
	overhead  float64

	busy    bool
	backlog bool

	edenEpoch uint64
	fullEpoch uint64
	lastSweep time.Duration
	swept     bool

	evictions int
	releases  int
	safetyOn  bool
}

var (
	_ pacer.HostSignals     = (*Host)(nil)
	_ pacer.CollectorHooks  = (*Host)(nil)
	_ pacer.EpochReporter   = (*Host)(nil)
	_ pacer.SweepReporter   = (*Host)(nil)
	_ pacer.SafetyTimerHook = (*Host)(nil)
)

func newHost(pl plan, minorReclaim float64) *Host {
	return &Host{
		ram:          pl.ram,
		minorReclaim: minorReclaim,
		sweepRate:    pl.sweepRate,
		edenEpoch:    1,
		fullEpoch:    1,
		safetyOn:     true,
	}
}

// enter applies a phase's heap shape and host state.
func (h *Host) enter(ph phasePlan) {
	if !ph.keep {
		h.live = ph.live
		h.cache = ph.cache
	}

	h.overhead = ph.RSSOverhead
	h.busy = ph.Busy
	h.backlog = ph.Backlog

	h.allocated = max(h.allocated, h.live)
	h.touch()
}

// allocate records one unit of work.
func (h *Host) allocate(n uint64) {
	h.allocated += n
	h.touch()
}

func (h *Host) touch() {
	h.highWater = max(h.highWater, h.allocated)
}

// idle clears busyness for the drain period.
func (h *Host) idle() {
	h.busy = false
	h.backlog = false
}

// BlockBytesAllocated implements [pacer.HostSignals].
func (h *Host) BlockBytesAllocated() uint64 { return h.allocated }

// RAMSize implements [pacer.HostSignals].
func (h *Host) RAMSize() uint64 { return h.ram }

// ResidentSetSize reports the heap high-water mark plus overhead.
func (h *Host) ResidentSetSize() (uint64, bool) {
	return h.rss(), true
}

func (h *Host) rss() uint64 {
	return uint64(float64(h.highWater) * (1 + h.overhead))
}

// HasMoreEventLoopWork implements [pacer.HostSignals].
func (h *Host) HasMoreEventLoopWork() bool { return h.backlog }

// IsBusyDoingImportantWork implements [pacer.HostSignals].
func (h *Host) IsBusyDoingImportantWork() bool { return h.busy }

// RunMinorCollection frees MinorReclaim of the garbage.
func (h *Host) RunMinorCollection() {
	garbage := h.allocated - min(h.live, h.allocated)
	freed := uint64(float64(garbage) * h.minorReclaim)
	h.allocated -= freed
	h.edenEpoch++
}

// RunMajorCollection frees all garbage and times the sweep by heap size.
func (h *Host) RunMajorCollection() {
	swept := h.allocated
	h.allocated = min(h.live, h.allocated)
	h.lastSweep = time.Duration(float64(swept) / float64(h.sweepRate) * float64(time.Second))
	h.swept = true
	h.edenEpoch++
	h.fullEpoch++
}

// EvictCaches drops the evictable part of the live set.
func (h *Host) EvictCaches(pacer.EvictionEffort) {
	h.live -= h.cache
	h.allocated -= min(h.cache, h.allocated)
	h.cache = 0
	h.evictions++
}

// ReleaseFreeMemory shrinks RSS to the current heap.
func (h *Host) ReleaseFreeMemory() {
	h.highWater = h.allocated
	h.releases++
}

// EdenEpoch implements [pacer.EpochReporter].
func (h *Host) EdenEpoch() uint64 { return h.edenEpoch }

// FullEpoch implements [pacer.EpochReporter].
func (h *Host) FullEpoch() uint64 { return h.fullEpoch }

// LastSweep implements [pacer.SweepReporter].
func (h *Host) LastSweep() (time.Duration, bool) { return h.lastSweep, h.swept }

// SetStopTheWorldTimer implements [pacer.SafetyTimerHook].
func (h *Host) SetStopTheWorldTimer(enabled bool) { h.safetyOn = enabled }
