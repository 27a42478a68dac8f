package simulation

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// Options configure a simulation run.
type Options struct {
	Logger *slog.Logger
	// Tuning overrides the pacing constants.
	Tuning *pacer.Tuning
	// Observers receive every controller event in addition to the trace.
	// RunAll calls them from several goroutines.
	Observers []pacer.Observer
	// Parallelism bounds concurrent scenarios in RunAll; zero means unbounded.
	Parallelism int
}

// safetyTimerAuto makes the safety timer policy depend only on the scenario.
func safetyTimerAuto(string) (string, bool) { return "", false }

// runner holds the state of one scenario run.
type runner struct {
	sc    Scenario
	host  *Host
	clock *Clock
	ctrl  *pacer.Controller
	trace *Trace
	phase string
}

// Run replays sc against a fresh controller.
func Run(ctx context.Context, sc Scenario, opts Options) (*Trace, error) {
	pl, err := sc.compile()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &runner{
		sc:    sc,
		host:  newHost(pl, sc.MinorReclaim),
		clock: NewClock(),
		trace: &Trace{Scenario: sc.Name},
	}

	ctrl, err := pacer.New(pacer.ControllerConfig{
		Signals:      r.host,
		Hooks:        r.host,
		Timers:       r.clock,
		Tuning:       opts.Tuning,
		MiniMode:     sc.MiniMode,
		EdenInterval: cmp.Or(sc.EdenInterval, pacer.DefaultEdenInterval),
		FullInterval: cmp.Or(sc.FullInterval, pacer.DefaultFullInterval),
		LookupEnv:    safetyTimerAuto,
		Logger:       logger.With(slog.String("scenario", sc.Name)),
		Observers:    append([]pacer.Observer{pacer.ObserverFunc(r.record)}, opts.Observers...),
		Context:      ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	r.ctrl = ctrl
	r.clock.SetHandler(ctrl.OnTimer)

	for _, ph := range pl.phases {
		if err := r.runPhase(ctx, ph); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
	}

	r.phase = "drain"
	r.host.idle()

	if err := r.clock.Advance(pl.drain); err != nil {
		return nil, fmt.Errorf("scenario %s: drain: %w", sc.Name, err)
	}

	r.sample()
	r.finish()

	return r.trace, nil
}

func (r *runner) runPhase(ctx context.Context, ph phasePlan) error {
	r.phase = ph.Name
	r.host.enter(ph)

	for range ph.Units {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if err := r.clock.Advance(ph.Interval); err != nil {
			return err
		}

		r.host.allocate(ph.alloc)
		r.ctrl.PerformOpportunisticGC()
		r.sample()
	}

	return nil
}

func (r *runner) sample() {
	rss := r.host.rss()

	r.trace.Records = append(r.trace.Records, Record{
		Scenario:  r.sc.Name,
		Type:      RecordSample,
		AtMs:      toMs(r.clock.Now()),
		Phase:     r.phase,
		Allocated: r.host.allocated,
		RSS:       rss,
		Plateau:   r.ctrl.PlateauTicks(),
		Busy:      r.host.busy,
	})

	r.trace.PeakAllocated = max(r.trace.PeakAllocated, r.host.allocated)
	r.trace.PeakRSS = max(r.trace.PeakRSS, rss)
}

func (r *runner) record(ev pacer.Event) {
	rec := Record{
		Scenario:   r.sc.Name,
		Type:       RecordEvent,
		AtMs:       toMs(r.clock.Now()),
		Phase:      r.phase,
		Kind:       ev.Kind.String(),
		Action:     string(ev.Action),
		DelayMs:    toMs(ev.Delay),
		DeferCount: ev.DeferCount,
		Aggressive: ev.Aggressive,
		Pressure:   ev.Pressure,
		Forced:     ev.Forced,
	}

	if ev.HasSweep {
		rec.SweepMs = toMs(ev.Sweep)
	}

	r.trace.Records = append(r.trace.Records, rec)
}

func (r *runner) finish() {
	r.trace.Metrics = r.ctrl.Metrics()
	r.trace.Elapsed = r.clock.Now()
	r.trace.FinalAllocated = r.host.allocated
	r.trace.FinalPlateau = r.ctrl.PlateauTicks()
	r.trace.Evictions = r.host.evictions
	r.trace.Releases = r.host.releases
	r.trace.SafetyTimerOn = r.host.safetyOn
}

// RunAll runs scenarios concurrently and returns traces in input order.
// The first failure cancels the remaining runs.
func RunAll(ctx context.Context, scenarios []Scenario, opts Options) ([]*Trace, error) {
	traces := make([]*Trace, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}

	for i, sc := range scenarios {
		g.Go(func() error {
			tr, err := Run(gctx, sc, opts)
			if err != nil {
				return err
			}

			traces[i] = tr

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run scenarios: %w", err)
	}

	return traces, nil
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
