package runtimehost

import (
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// Evicter drops cached data when the pacer asks for memory back.
type Evicter func(effort pacer.EvictionEffort)

// CollectorConfig holds parameters for [NewCollector].
type CollectorConfig struct {
	Logger *slog.Logger
	// GC and FreeOSMemory replace runtime.GC and debug.FreeOSMemory.
	GC           func()
	FreeOSMemory func()
}

// Collector implements [pacer.CollectorHooks] on top of the Go runtime.
// The Go collector has no separate minor phase, so both phases run a full
// blocking cycle; the major phase additionally times it as the sweep.
type Collector struct {
	logger       *slog.Logger
	gc           func()
	freeOSMemory func()

	mu        sync.Mutex
	evicters  map[string]Evicter
	lastSweep time.Duration
	swept     bool

	stwTimer atomic.Bool
}

var (
	_ pacer.CollectorHooks  = (*Collector)(nil)
	_ pacer.EpochReporter   = (*Collector)(nil)
	_ pacer.SweepReporter   = (*Collector)(nil)
	_ pacer.SafetyTimerHook = (*Collector)(nil)
)

// NewCollector creates a runtime-backed collector.
func NewCollector(cfg CollectorConfig) *Collector {
	col := &Collector{
		logger:       cfg.Logger,
		gc:           cfg.GC,
		freeOSMemory: cfg.FreeOSMemory,
		evicters:     make(map[string]Evicter),
	}

	if col.logger == nil {
		col.logger = slog.Default()
	}

	if col.gc == nil {
		col.gc = runtime.GC
	}

	if col.freeOSMemory == nil {
		col.freeOSMemory = debug.FreeOSMemory
	}

	col.stwTimer.Store(true)

	return col
}

// RegisterCache adds or replaces the evicter stored under name.
func (c *Collector) RegisterCache(name string, evict Evicter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evicters[name] = evict
}

// UnregisterCache removes the evicter stored under name.
func (c *Collector) UnregisterCache(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.evicters, name)
}

// RunMinorCollection runs a blocking collection cycle.
func (c *Collector) RunMinorCollection() {
	c.gc()
}

// RunMajorCollection runs a blocking collection cycle and records its duration.
func (c *Collector) RunMajorCollection() {
	start := time.Now()

	c.gc()

	elapsed := time.Since(start)

	c.mu.Lock()
	c.lastSweep = elapsed
	c.swept = true
	c.mu.Unlock()
}

// EvictCaches calls every registered evicter in name order. A panicking
// evicter is logged and skipped.
func (c *Collector) EvictCaches(effort pacer.EvictionEffort) {
	c.mu.Lock()

	names := make([]string, 0, len(c.evicters))
	for name := range c.evicters {
		names = append(names, name)
	}

	sort.Strings(names)

	evicters := make([]Evicter, len(names))
	for i, name := range names {
		evicters[i] = c.evicters[name]
	}

	c.mu.Unlock()

	for i, evict := range evicters {
		c.evict(names[i], evict, effort)
	}
}

func (c *Collector) evict(name string, evict Evicter, effort pacer.EvictionEffort) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cache evicter panicked",
				slog.String("cache", name),
				slog.Any("panic", r),
			)
		}
	}()

	evict(effort)

	c.logger.Debug("cache evicted",
		slog.String("cache", name),
		slog.String("effort", effort.String()),
	)
}

// ReleaseFreeMemory returns as much free memory to the OS as possible.
func (c *Collector) ReleaseFreeMemory() {
	c.freeOSMemory()
}

// EdenEpoch returns the completed GC cycle count plus one.
func (c *Collector) EdenEpoch() uint64 {
	return readUint64Metric(metricGCCycles) + 1
}

// FullEpoch returns the completed GC cycle count plus one; every Go cycle
// covers the whole heap.
func (c *Collector) FullEpoch() uint64 {
	return readUint64Metric(metricGCCycles) + 1
}

// LastSweep returns the duration of the most recent major collection.
func (c *Collector) LastSweep() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastSweep, c.swept
}

// SetStopTheWorldTimer records the pacer's safety timer decision.
func (c *Collector) SetStopTheWorldTimer(enabled bool) {
	c.stwTimer.Store(enabled)

	c.logger.Info("stop-the-world safety timer configured", slog.Bool("enabled", enabled))
}

// StopTheWorldTimerEnabled reports the last safety timer decision.
func (c *Collector) StopTheWorldTimerEnabled() bool {
	return c.stwTimer.Load()
}
