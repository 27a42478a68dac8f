package pacer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/gcpacer/pkg/safeconv"
)

// Sentinel construction errors.
var (
	ErrNilSignals = errors.New("pacer: host signals are required")
	ErrNilHooks   = errors.New("pacer: collector hooks are required")
	ErrNilTimers  = errors.New("pacer: timers are required")
)

const spanCollect = "gcpacer.collect"

// ControllerConfig holds the collaborators and options for [New].
type ControllerConfig struct {
	Signals HostSignals
	Hooks   CollectorHooks
	Timers  Timers

	// Tuning overrides the pacing constants; the zero value selects DefaultTuning.
	Tuning *Tuning

	// MiniMode requests the low-memory embedding profile.
	MiniMode bool

	// EdenInterval and FullInterval are the initial schedule intervals;
	// zero selects Tuning.EdenDelay and Tuning.FullDelay.
	EdenInterval time.Duration
	FullInterval time.Duration

	// DisableEden and DisableFull skip the initial enable of a schedule.
	DisableEden bool
	DisableFull bool

	// LookupEnv reads the safety timer variable; nil selects os.LookupEnv.
	LookupEnv func(key string) (string, bool)

	Logger    *slog.Logger
	Tracer    trace.Tracer
	Observers []Observer

	// Context carries trace context into logs and spans; nil selects
	// context.Background.
	Context context.Context //nolint:containedctx // the controller has no blocking calls to pass one to.
}

// Controller is the pacing controller. It owns one [ScheduleState] per
// [Kind] and must be used from the single goroutine that services its
// timers; it takes no locks.
type Controller struct {
	signals HostSignals
	hooks   CollectorHooks
	timers  Timers
	tuning  Tuning

	states [kindCount]ScheduleState

	// epochs are fallback generation markers for collectors without an
	// EpochReporter; index KindFull is shared with KindIdleReclaim.
	epochs [kindCount]uint64

	lastAllocatedBytes uint64
	plateauTicks       uint32
	metrics            Metrics

	safetyTimerDisabled bool

	ctx       context.Context //nolint:containedctx // see ControllerConfig.Context.
	logger    *slog.Logger
	tracer    trace.Tracer
	observers []Observer
}

// New wires the collaborators, resolves the stop-the-world safety timer
// policy and enables the eden and full schedules.
func New(cfg ControllerConfig) (*Controller, error) {
	if cfg.Signals == nil {
		return nil, ErrNilSignals
	}

	if cfg.Hooks == nil {
		return nil, ErrNilHooks
	}

	if cfg.Timers == nil {
		return nil, ErrNilTimers
	}

	tuning := DefaultTuning()
	if cfg.Tuning != nil {
		tuning = *cfg.Tuning
	}

	err := tuning.Validate()
	if err != nil {
		return nil, fmt.Errorf("pacer tuning: %w", err)
	}

	ctrl := &Controller{
		signals:   cfg.Signals,
		hooks:     cfg.Hooks,
		timers:    cfg.Timers,
		tuning:    tuning,
		ctx:       cfg.Context,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		observers: cfg.Observers,
	}

	if ctrl.ctx == nil {
		ctrl.ctx = context.Background()
	}

	if ctrl.logger == nil {
		ctrl.logger = slog.Default()
	}

	if ctrl.tracer == nil {
		ctrl.tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	for _, kind := range Kinds() {
		ctrl.states[kind] = NewScheduleState(kind, tuning)
		ctrl.epochs[kind] = 1
	}

	ctrl.lastAllocatedBytes = cfg.Signals.BlockBytesAllocated()

	ctrl.initSafetyTimer(cfg)

	edenInterval := cmp.Or(cfg.EdenInterval, tuning.EdenDelay)
	fullInterval := cmp.Or(cfg.FullInterval, tuning.FullDelay)

	ctrl.ConfigureEden(!cfg.DisableEden, edenInterval)
	ctrl.ConfigureFull(!cfg.DisableFull, fullInterval)

	return ctrl, nil
}

func (c *Controller) initSafetyTimer(cfg ControllerConfig) {
	lookup := cfg.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	envValue, _ := lookup(SafetyTimerEnv)
	c.safetyTimerDisabled = ResolveSafetyTimer(envValue, cfg.MiniMode, c.signals.RAMSize())

	if hook, ok := c.hooks.(SafetyTimerHook); ok {
		c.invoke("set_stop_the_world_timer", func() { hook.SetStopTheWorldTimer(!c.safetyTimerDisabled) })
	}

	c.logger.InfoContext(c.ctx, "gc pacer initialized",
		slog.Bool("mini_mode", cfg.MiniMode),
		slog.Bool("safety_timer_disabled", c.safetyTimerDisabled),
		slog.String("safety_timer_env", envValue),
	)
}

// ConfigureEden enables or disables the eden schedule. Disabling cancels
// the pending timer. Enabling sets the base interval and starts from a clean
// epoch; a timer that was pending is re-armed at the new interval. A zero
// interval selects DefaultEdenInterval.
func (c *Controller) ConfigureEden(enabled bool, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultEdenInterval
	}

	c.configure(KindEden, enabled, interval)
}

// ConfigureFull enables or disables the full schedule together with the
// idle reclaim schedule. A zero interval selects DefaultFullInterval.
func (c *Controller) ConfigureFull(enabled bool, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFullInterval
	}

	c.configure(KindFull, enabled, interval)
	c.configure(KindIdleReclaim, enabled, c.tuning.IdleReclaimDelay)
}

func (c *Controller) configure(kind Kind, enabled bool, interval time.Duration) {
	if !enabled {
		c.cancel(kind)

		return
	}

	st := &c.states[kind]
	wasPending := st.Pending()
	aggressive := st.Aggressive()

	if wasPending {
		c.timers.Cancel(kind)
	}

	st.Enable(interval)

	if wasPending {
		c.armOpportunistic(kind, c.delayFor(kind, aggressive), aggressive, false)
	}
}

func (c *Controller) cancel(kind Kind) {
	st := &c.states[kind]
	wasEnabled := st.Enabled()

	st.Cancel()
	c.timers.Cancel(kind)

	if wasEnabled {
		c.emit(Event{Kind: kind, Action: ActionCancelled})
	}
}

// PerformOpportunisticGC is called by the host after each unit of work. It
// only arms schedules; collections happen when their timers fire.
func (c *Controller) PerformOpportunisticGC() {
	current := c.signals.BlockBytesAllocated()
	ram := c.signals.RAMSize()
	underPressure := c.tuning.UnderPressure(current, ram, c.lastAllocatedBytes, c.plateauTicks)

	previous := c.lastAllocatedBytes
	c.lastAllocatedBytes = current

	busy := c.signals.IsBusyDoingImportantWork()

	switch {
	case current > previous || underPressure:
		c.plateauTicks = 0

		if !busy {
			c.armOpportunistic(KindEden, c.edenDelay(true), true, underPressure)
		}

		if underPressure && !c.states[KindFull].Pending() {
			c.armOpportunistic(KindFull, c.fullDelay(), false, underPressure)
		}
	case c.plateauTicks < c.tuning.ReclaimPlateau:
		if c.idle(busy) && c.armOpportunistic(KindEden, c.edenDelay(false), false, false) {
			c.plateauTicks++
		}
	default:
		if c.idle(busy) {
			c.armOpportunistic(KindIdleReclaim, c.tuning.IdleReclaimDelay, false, false)
		}
	}
}

func (c *Controller) idle(busy bool) bool {
	return !busy && !c.signals.HasMoreEventLoopWork()
}

// armOpportunistic arms kind and reports whether a timer was (re)scheduled
// rather than forced to fire immediately.
func (c *Controller) armOpportunistic(kind Kind, delay time.Duration, aggressive, pressure bool) bool {
	st := &c.states[kind]
	if !st.Enabled() {
		return false
	}

	fireNow, next := st.Arm(c.epoch(kind), delay, aggressive)
	if fireNow {
		c.schedule(kind, 0, st.DeferCount(), pressure)

		return false
	}

	c.schedule(kind, next, st.DeferCount(), pressure)

	return true
}

// OnTimer services a fired timer. When the host is busy the schedule is
// deferred until its threshold is reached, except that pressure forces a
// full collection through. Otherwise the matching collection runs now.
func (c *Controller) OnTimer(kind Kind) {
	if kind >= kindCount {
		return
	}

	st := &c.states[kind]
	st.pending = false

	if !st.Enabled() {
		return
	}

	pressure := false

	if c.signals.HasMoreEventLoopWork() || c.signals.IsBusyDoingImportantWork() {
		if kind == KindFull {
			pressure = c.tuning.UnderPressure(c.signals.BlockBytesAllocated(), c.signals.RAMSize(),
				c.lastAllocatedBytes, c.plateauTicks)
		}

		if !pressure {
			fireNow, next := st.Arm(c.epoch(kind), c.delayFor(kind, st.Aggressive()), st.Aggressive())
			if !fireNow {
				c.timers.Schedule(kind, next)
				st.pending = true

				c.logger.DebugContext(c.ctx, "gc deferred: host busy",
					slog.String("kind", kind.String()),
					slog.Uint64("defer_count", uint64(st.DeferCount())),
					slog.Duration("delay", next),
				)
				c.emit(Event{
					Kind: kind, Action: ActionDeferred, Delay: next,
					DeferCount: st.DeferCount(), Aggressive: st.Aggressive(),
				})

				return
			}
		}
	}

	c.collect(kind, pressure, false)
}

// CollectNow runs a collection of the given kind immediately, as if its
// timer had fired on an idle host.
func (c *Controller) CollectNow(kind Kind) {
	if kind >= kindCount {
		return
	}

	c.collect(kind, false, true)
}

func (c *Controller) collect(kind Kind, pressure, forced bool) {
	_, span := c.tracer.Start(c.ctx, spanCollect, trace.WithAttributes(
		attribute.String("gc.kind", kind.String()),
		attribute.Bool("gc.pressure", pressure),
		attribute.Bool("gc.forced", forced),
	))
	defer span.End()

	switch kind {
	case KindEden:
		c.invoke("run_minor_collection", c.hooks.RunMinorCollection)
		c.metrics.MinorCount++
	case KindFull:
		c.invoke("run_major_collection", c.hooks.RunMajorCollection)
		c.metrics.MajorCount++
	case KindIdleReclaim:
		c.reclaim()
	}

	c.advanceEpoch(kind)

	st := &c.states[kind]
	st.Reset()

	ev := Event{Kind: kind, Action: ActionCollected, Pressure: pressure, Forced: forced}

	if reporter, ok := c.hooks.(SweepReporter); ok && kind.Major() {
		if d, timed := reporter.LastSweep(); timed {
			c.metrics.recordSweep(d)
			ev.Sweep, ev.HasSweep = d, true
		}
	}

	c.logger.DebugContext(c.ctx, "gc collected",
		slog.String("kind", kind.String()),
		slog.Bool("pressure", pressure),
		slog.Bool("forced", forced),
		slog.Uint64("minor_count", c.metrics.MinorCount),
		slog.Uint64("major_count", c.metrics.MajorCount),
	)
	c.emit(ev)
}

// reclaim runs the idle reclaim sequence: optional cache eviction when RSS
// is high, a major collection, then returning free memory to the OS.
func (c *Controller) reclaim() {
	allocated := c.signals.BlockBytesAllocated()

	if allocated > c.tuning.RSSProbeFloor {
		ram := c.signals.RAMSize()

		rss, ok := c.signals.ResidentSetSize()
		if ok && safeconv.Ratio(rss, ram) > c.tuning.RSSRatio {
			c.logger.InfoContext(c.ctx, "gc idle reclaim: evicting caches",
				slog.Uint64("allocated_bytes", allocated),
				slog.Uint64("rss_bytes", rss),
				slog.Uint64("ram_bytes", ram),
			)
			c.invoke("evict_caches", func() { c.hooks.EvictCaches(EffortBestEffort) })
			c.emit(Event{Kind: KindIdleReclaim, Action: ActionCachesEvicted})
		}
	}

	c.invoke("run_major_collection", c.hooks.RunMajorCollection)
	c.metrics.MajorCount++

	c.invoke("release_free_memory", c.hooks.ReleaseFreeMemory)
	c.emit(Event{Kind: KindIdleReclaim, Action: ActionMemoryReleased})

	c.logger.InfoContext(c.ctx, "gc idle reclaim completed",
		slog.Uint64("allocated_bytes", allocated),
		slog.Uint64("plateau_ticks", uint64(c.plateauTicks)),
	)
}

// schedule arms the embedding timer for kind.
func (c *Controller) schedule(kind Kind, delay time.Duration, deferCount uint32, pressure bool) {
	st := &c.states[kind]

	c.timers.Schedule(kind, delay)
	st.pending = true

	c.logger.DebugContext(c.ctx, "gc scheduled",
		slog.String("kind", kind.String()),
		slog.Duration("delay", delay),
		slog.Uint64("defer_count", uint64(deferCount)),
		slog.Bool("aggressive", st.Aggressive()),
		slog.Bool("pressure", pressure),
	)
	c.emit(Event{
		Kind: kind, Action: ActionScheduled, Delay: delay,
		DeferCount: deferCount, Aggressive: st.Aggressive(), Pressure: pressure,
	})
}

func (c *Controller) delayFor(kind Kind, aggressive bool) time.Duration {
	switch kind {
	case KindEden:
		return c.edenDelay(aggressive)
	case KindFull:
		return c.fullDelay()
	default:
		return c.tuning.IdleReclaimDelay
	}
}

// edenDelay is the configured interval, shortened to EdenAggressiveDelay
// for the aggressive cadence.
func (c *Controller) edenDelay(aggressive bool) time.Duration {
	interval := c.states[KindEden].Interval()
	if aggressive && c.tuning.EdenAggressiveDelay < interval {
		return c.tuning.EdenAggressiveDelay
	}

	return interval
}

// fullDelay is the configured interval, halved while the event loop is empty.
func (c *Controller) fullDelay() time.Duration {
	interval := c.states[KindFull].Interval()
	if !c.signals.HasMoreEventLoopWork() {
		return interval / 2
	}

	return interval
}

func (c *Controller) epoch(kind Kind) uint64 {
	if reporter, ok := c.hooks.(EpochReporter); ok {
		if kind == KindEden {
			return reporter.EdenEpoch()
		}

		return reporter.FullEpoch()
	}

	if kind == KindIdleReclaim {
		return c.epochs[KindFull]
	}

	return c.epochs[kind]
}

func (c *Controller) advanceEpoch(kind Kind) {
	if kind == KindIdleReclaim {
		kind = KindFull
	}

	c.epochs[kind]++
}

// invoke calls a collaborator, recovering and logging any panic.
func (c *Controller) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(c.ctx, "gc collaborator panicked",
				slog.String("call", name),
				slog.Any("panic", r),
			)
		}
	}()

	fn()
}

func (c *Controller) emit(ev Event) {
	for _, obs := range c.observers {
		c.invoke("observer", func() { obs.Observe(ev) })
	}
}

// Metrics returns a snapshot of the collection counters.
func (c *Controller) Metrics() Metrics {
	return c.metrics
}

// ResetMetrics zeroes the collection counters.
func (c *Controller) ResetMetrics() {
	c.metrics.Reset()
}

// State returns a copy of the schedule state for kind.
func (c *Controller) State(kind Kind) ScheduleState {
	if kind >= kindCount {
		return ScheduleState{}
	}

	return c.states[kind]
}

// PlateauTicks returns the consecutive opportunistic calls without growth.
func (c *Controller) PlateauTicks() uint32 {
	return c.plateauTicks
}

// LastAllocatedBytes returns the allocation sample seen by the last
// opportunistic call.
func (c *Controller) LastAllocatedBytes() uint64 {
	return c.lastAllocatedBytes
}

// SafetyTimerDisabled reports the resolved stop-the-world safety timer policy.
func (c *Controller) SafetyTimerDisabled() bool {
	return c.safetyTimerDisabled
}

// Tuning returns the controller's pacing constants.
func (c *Controller) Tuning() Tuning {
	return c.tuning
}
