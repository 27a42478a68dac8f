package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
	"github.com/Sumatoshi-tech/gcpacer/pkg/safeconv"
)

const (
	metricCollections     = "gcpacer.collections.total"
	metricScheduleActions = "gcpacer.schedule.actions.total"
	metricSweepDuration   = "gcpacer.sweep.duration.seconds"
	metricCacheEvictions  = "gcpacer.cache.evictions.total"
	metricMemoryReleases  = "gcpacer.memory.releases.total"
	metricAllocatedBytes  = "gcpacer.heap.allocated.bytes"

	attrKind     = "kind"
	attrAction   = "action"
	attrPressure = "pressure"
	attrForced   = "forced"
)

// sweepBucketBoundaries covers 100µs to 5s.
var sweepBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}

// PacerMetrics records controller events as OTel instruments.
// It implements [pacer.Observer].
type PacerMetrics struct {
	collections    metric.Int64Counter
	scheduleAction metric.Int64Counter
	sweepDuration  metric.Float64Histogram
	cacheEvictions metric.Int64Counter
	memoryReleases metric.Int64Counter
}

var _ pacer.Observer = (*PacerMetrics)(nil)

// NewPacerMetrics creates the pacer instruments. When allocated is non-nil
// it backs an observable gauge of heap bytes; it is called from the metric
// reader's goroutine and must be safe for concurrent use.
func NewPacerMetrics(mt metric.Meter, allocated func() uint64) (*PacerMetrics, error) {
	var errs []error

	count := func(name, desc, unit string) metric.Int64Counter {
		c, err := mt.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", name, err))
		}

		return c
	}

	sweep, err := mt.Float64Histogram(metricSweepDuration,
		metric.WithDescription("Major collection sweep duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sweepBucketBoundaries...),
	)
	if err != nil {
		errs = append(errs, fmt.Errorf("create %s: %w", metricSweepDuration, err))
	}

	pm := &PacerMetrics{
		collections:    count(metricCollections, "Completed collections by kind", "{collection}"),
		scheduleAction: count(metricScheduleActions, "Schedule decisions by kind and action", "{decision}"),
		sweepDuration:  sweep,
		cacheEvictions: count(metricCacheEvictions, "Idle reclaim cache evictions", "{eviction}"),
		memoryReleases: count(metricMemoryReleases, "Free memory releases to the OS", "{release}"),
	}

	if allocated != nil {
		_, err := mt.Int64ObservableGauge(metricAllocatedBytes,
			metric.WithDescription("Last sampled allocated heap bytes"),
			metric.WithUnit("By"),
			metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
				obs.Observe(safeconv.SafeInt64(allocated()))

				return nil
			}),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", metricAllocatedBytes, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return pm, nil
}

// Observe implements [pacer.Observer].
func (pm *PacerMetrics) Observe(ev pacer.Event) {
	ctx := context.Background()
	kind := attribute.String(attrKind, ev.Kind.String())

	switch ev.Action {
	case pacer.ActionCollected:
		pm.collections.Add(ctx, 1, metric.WithAttributes(
			kind,
			attribute.Bool(attrPressure, ev.Pressure),
			attribute.Bool(attrForced, ev.Forced),
		))

		if ev.HasSweep {
			pm.sweepDuration.Record(ctx, ev.Sweep.Seconds(), metric.WithAttributes(kind))
		}
	case pacer.ActionCachesEvicted:
		pm.cacheEvictions.Add(ctx, 1)
	case pacer.ActionMemoryReleased:
		pm.memoryReleases.Add(ctx, 1)
	default:
		pm.scheduleAction.Add(ctx, 1, metric.WithAttributes(
			kind,
			attribute.String(attrAction, string(ev.Action)),
		))
	}
}
