package pacer

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

// Sentinel tuning errors.
var (
	ErrInvalidDelay     = errors.New("schedule delay must be positive")
	ErrInvalidThreshold = errors.New("defer threshold must be positive")
	ErrInvalidRatio     = errors.New("ratio must be positive")
)

// Default tuning values.
const (
	DefaultEdenDelay                    = 60 * time.Millisecond
	DefaultEdenAggressiveDelay          = 16 * time.Millisecond
	DefaultEdenDeferThreshold           = 4
	DefaultEdenAggressiveDeferThreshold = 2

	DefaultFullDelay          = 300 * time.Millisecond
	DefaultFullDeferThreshold = 3

	DefaultIdleReclaimDelay          = 3000 * time.Millisecond
	DefaultIdleReclaimDeferThreshold = 10

	DefaultPressureRatio  = 0.7
	DefaultGrowthRatio    = 1.5
	DefaultRSSRatio       = 0.7
	DefaultAbsoluteCap    = 1 * units.GiB
	DefaultRSSProbeFloor  = 512 * units.MiB
	DefaultGrowthPlateau  = 5
	DefaultReclaimPlateau = 10

	// DefaultEdenInterval and DefaultFullInterval are the intervals a
	// configure call with a zero interval applies.
	DefaultEdenInterval = 30 * time.Millisecond
	DefaultFullInterval = 300 * time.Millisecond
)

// Tuning holds the process-wide pacing constants.
type Tuning struct {
	// EdenDelay and FullDelay are the startup intervals New applies when
	// ControllerConfig leaves EdenInterval or FullInterval zero.
	EdenDelay                    time.Duration
	EdenAggressiveDelay          time.Duration
	EdenDeferThreshold           uint32
	EdenAggressiveDeferThreshold uint32

	FullDelay          time.Duration
	FullDeferThreshold uint32

	IdleReclaimDelay          time.Duration
	IdleReclaimDeferThreshold uint32

	// PressureRatio is the allocated/RAM ratio above which the heap is under pressure.
	PressureRatio float64
	// GrowthRatio is the sample-over-sample growth factor that counts as pressure
	// while the plateau counter is below GrowthPlateau.
	GrowthRatio float64
	// RSSRatio is the RSS/RAM ratio above which idle reclaim evicts caches first.
	RSSRatio float64
	// AbsoluteCap is the allocated byte count that always counts as pressure.
	AbsoluteCap uint64
	// RSSProbeFloor is the allocated byte count below which RSS is never sampled.
	RSSProbeFloor uint64

	GrowthPlateau  uint32
	ReclaimPlateau uint32
}

// DefaultTuning returns the stock pacing constants.
func DefaultTuning() Tuning {
	return Tuning{
		EdenDelay:                    DefaultEdenDelay,
		EdenAggressiveDelay:          DefaultEdenAggressiveDelay,
		EdenDeferThreshold:           DefaultEdenDeferThreshold,
		EdenAggressiveDeferThreshold: DefaultEdenAggressiveDeferThreshold,
		FullDelay:                    DefaultFullDelay,
		FullDeferThreshold:           DefaultFullDeferThreshold,
		IdleReclaimDelay:             DefaultIdleReclaimDelay,
		IdleReclaimDeferThreshold:    DefaultIdleReclaimDeferThreshold,
		PressureRatio:                DefaultPressureRatio,
		GrowthRatio:                  DefaultGrowthRatio,
		RSSRatio:                     DefaultRSSRatio,
		AbsoluteCap:                  DefaultAbsoluteCap,
		RSSProbeFloor:                DefaultRSSProbeFloor,
		GrowthPlateau:                DefaultGrowthPlateau,
		ReclaimPlateau:               DefaultReclaimPlateau,
	}
}

// Validate checks that every constant is usable.
func (t Tuning) Validate() error {
	delays := map[string]time.Duration{
		"eden":            t.EdenDelay,
		"eden_aggressive": t.EdenAggressiveDelay,
		"full":            t.FullDelay,
		"idle_reclaim":    t.IdleReclaimDelay,
	}

	for name, d := range delays {
		if d <= 0 {
			return fmt.Errorf("%w: %s=%s", ErrInvalidDelay, name, d)
		}
	}

	thresholds := map[string]uint32{
		"eden":            t.EdenDeferThreshold,
		"eden_aggressive": t.EdenAggressiveDeferThreshold,
		"full":            t.FullDeferThreshold,
		"idle_reclaim":    t.IdleReclaimDeferThreshold,
	}

	for name, n := range thresholds {
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrInvalidThreshold, name)
		}
	}

	if t.PressureRatio <= 0 || t.GrowthRatio <= 0 || t.RSSRatio <= 0 {
		return fmt.Errorf("%w: pressure=%g growth=%g rss=%g", ErrInvalidRatio, t.PressureRatio, t.GrowthRatio, t.RSSRatio)
	}

	return nil
}

// deferThreshold returns how many consecutive re-arms a schedule of the given
// kind tolerates before it must fire.
func (t Tuning) deferThreshold(kind Kind, aggressive bool) uint32 {
	switch kind {
	case KindEden:
		if aggressive {
			return t.EdenAggressiveDeferThreshold
		}

		return t.EdenDeferThreshold
	case KindFull:
		return t.FullDeferThreshold
	case KindIdleReclaim:
		return t.IdleReclaimDeferThreshold
	default:
		return 1
	}
}

// baseDelay returns the startup interval of kind.
func (t Tuning) baseDelay(kind Kind) time.Duration {
	switch kind {
	case KindEden:
		return t.EdenDelay
	case KindFull:
		return t.FullDelay
	default:
		return t.IdleReclaimDelay
	}
}
