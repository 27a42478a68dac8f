package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/gcpacer/pkg/config"
	"github.com/Sumatoshi-tech/gcpacer/pkg/eventloop"
	"github.com/Sumatoshi-tech/gcpacer/pkg/observability"
	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
	"github.com/Sumatoshi-tech/gcpacer/pkg/runtimehost"
)

const (
	workloadCacheName = "workload"
	readyTimeout      = time.Second
)

// RunCommand holds the flag overrides for the run command.
type RunCommand struct {
	duration    time.Duration
	workers     int
	interval    time.Duration
	requestSize string
	cacheSize   string
	metricsAddr string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return newRunCommand(&RunCommand{})
}

func newRunCommand(rc *RunCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Pace the Go runtime under a synthetic workload",
		Long: `Run a synthetic allocating workload on this process and let the pacer drive
runtime.GC and debug.FreeOSMemory from live heap telemetry. /healthz, /readyz
and, when telemetry.prometheus_enabled is set, /metrics are served on
--metrics-addr. Stop with Ctrl-C or --duration.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().DurationVar(&rc.duration, "duration", 0, "Stop after this long (0 = until interrupted)")
	cmd.Flags().IntVar(&rc.workers, "workers", config.DefaultRunWorkers, "Concurrent workload goroutines")
	cmd.Flags().DurationVar(&rc.interval, "interval", config.DefaultRunInterval, "Delay between requests per worker")
	cmd.Flags().StringVar(&rc.requestSize, "request-size", config.DefaultRequestSize, "Bytes allocated per request")
	cmd.Flags().StringVar(&rc.cacheSize, "cache-size", config.DefaultCacheSize, "Bytes of requests retained in the evictable cache")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Diagnostics listen address (empty = disabled)")

	return cmd
}

// applyOverrides copies explicitly set flags over the loaded configuration.
func (rc *RunCommand) applyOverrides(cmd *cobra.Command, run *config.RunConfig) {
	flags := cmd.Flags()

	if flags.Changed("duration") {
		run.Duration = rc.duration
	}

	if flags.Changed("workers") {
		run.Workers = rc.workers
	}

	if flags.Changed("interval") {
		run.Interval = rc.interval
	}

	if flags.Changed("request-size") {
		run.RequestSize = rc.requestSize
	}

	if flags.Changed("cache-size") {
		run.CacheSize = rc.cacheSize
	}

	if flags.Changed("metrics-addr") {
		run.MetricsAddr = rc.metricsAddr
	}
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, providers, err := loadSettings(cmd, observability.ModeRun)
	if err != nil {
		return err
	}

	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	rc.applyOverrides(cmd, &cfg.Run)

	if err := cfg.Run.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Run.Duration > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, cfg.Run.Duration)
		defer cancel()
	}

	metrics, err := runLive(ctx, cfg, providers)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Pacer metrics:")
	renderMetrics(cmd.OutOrStdout(), metrics)

	return nil
}

// runLive wires the controller to the Go runtime and drives the workload
// until ctx is done.
func runLive(ctx context.Context, cfg *config.Config, providers observability.Providers) (pacer.Metrics, error) {
	requestSize, cacheSize, ramOverride, err := cfg.Run.Sizes()
	if err != nil {
		return pacer.Metrics{}, err
	}

	tuning, err := cfg.Pacer.Tuning()
	if err != nil {
		return pacer.Metrics{}, err
	}

	logger := providers.Logger
	loop := eventloop.New(cfg.Run.QueueSize, logger)
	busy := &runtimehost.BusyTracker{}

	signals := runtimehost.NewSignals(runtimehost.SignalsConfig{
		Busy:        busy,
		Queue:       loop,
		RAMOverride: ramOverride,
	})

	collector := runtimehost.NewCollector(runtimehost.CollectorConfig{Logger: logger})

	cache := newWorkloadCache(cacheSize)
	collector.RegisterCache(workloadCacheName, cache.evict)

	pacerMetrics, err := observability.NewPacerMetrics(providers.Meter, signals.Allocated)
	if err != nil {
		return pacer.Metrics{}, err
	}

	ctrl, err := pacer.New(pacer.ControllerConfig{
		Signals:      signals,
		Hooks:        collector,
		Timers:       loop,
		Tuning:       &tuning,
		MiniMode:     cfg.Pacer.MiniMode,
		EdenInterval: cfg.Pacer.EdenInterval,
		FullInterval: cfg.Pacer.FullInterval,
		DisableEden:  !cfg.Pacer.EdenEnabled,
		DisableFull:  !cfg.Pacer.FullEnabled,
		Logger:       logger,
		Tracer:       providers.Tracer,
		Observers:    []pacer.Observer{pacerMetrics},
		Context:      ctx,
	})
	if err != nil {
		return pacer.Metrics{}, err
	}

	loop.SetTimerHandler(ctrl.OnTimer)

	logger.InfoContext(ctx, "workload started",
		slog.Int("workers", cfg.Run.Workers),
		slog.Duration("interval", cfg.Run.Interval),
		slog.String("request_size", humanize.IBytes(requestSize)),
		slog.String("cache_size", humanize.IBytes(cacheSize)),
		slog.String("ram", humanize.IBytes(signals.RAMSize())),
	)

	var diag *observability.DiagnosticsServer

	if cfg.Run.MetricsAddr != "" {
		diag, err = observability.NewDiagnosticsServer(ctx, cfg.Run.MetricsAddr, providers.MetricsHandler, logger,
			observability.ReadyCheck{Name: "event_loop", Check: loopReady(loop)})
		if err != nil {
			return pacer.Metrics{}, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return loop.Run(gctx) })

	for worker := range cfg.Run.Workers {
		g.Go(func() error {
			return runWorker(gctx, worker, cfg.Run.Interval, requestSize, busy, cache, loop, ctrl)
		})
	}

	if diag != nil {
		g.Go(func() error { return diag.Serve(gctx) })
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return pacer.Metrics{}, err
	}

	entries, retained := cache.stats()
	logger.InfoContext(context.WithoutCancel(ctx), "workload stopped",
		slog.Int("cache_entries", entries),
		slog.String("cache_retained", humanize.IBytes(retained)),
	)

	return ctrl.Metrics(), nil
}

// runWorker issues one request per tick: it marks the host busy, allocates,
// retains the buffer in the cache, and hands the controller an opportunity
// to collect on the loop.
func runWorker(
	ctx context.Context,
	worker int,
	interval time.Duration,
	requestSize uint64,
	busy *runtimehost.BusyTracker,
	cache *workloadCache,
	loop *eventloop.Loop,
	ctrl *pacer.Controller,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		done := busy.Begin()
		buf := make([]byte, requestSize)
		fill(buf, byte(worker))
		cache.add(buf)
		done()

		if err := loop.Post(ctrl.PerformOpportunisticGC); err != nil {
			if errors.Is(err, eventloop.ErrStopped) {
				return ctx.Err()
			}

			return err
		}
	}
}

// loopReady reports the loop ready when it runs a no-op task within
// readyTimeout.
func loopReady(loop *eventloop.Loop) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		checkCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		defer cancel()

		return loop.Do(checkCtx, func() {})
	}
}
