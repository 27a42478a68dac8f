// Package simulation replays scripted allocation workloads against the
// pacing controller on a virtual clock and records every decision.
package simulation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/gcpacer/pkg/units"
)

// Sentinel scenario errors.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownScenario = errors.New("unknown scenario")
)

const (
	defaultSweepRate = "2GiB"
	defaultDrain     = 5 * time.Second
)

// Scenario is a scripted workload: a sequence of phases, each issuing units
// of work at a fixed virtual interval.
type Scenario struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description,omitempty"`
	RAM          string        `yaml:"ram"`
	MiniMode     bool          `yaml:"mini_mode,omitempty"`
	// EdenInterval and FullInterval default to pacer.DefaultEdenInterval and
	// pacer.DefaultFullInterval whatever Options.Tuning says.
	EdenInterval time.Duration `yaml:"eden_interval,omitempty"`
	FullInterval time.Duration `yaml:"full_interval,omitempty"`
	// MinorReclaim is the fraction of garbage a minor collection frees.
	MinorReclaim float64 `yaml:"minor_reclaim"`
	// SweepRate is the bytes per second a major collection sweeps.
	SweepRate string `yaml:"sweep_rate,omitempty"`
	// Drain is the idle time simulated after the last phase.
	Drain  time.Duration `yaml:"drain,omitempty"`
	Phases []Phase       `yaml:"phases"`
}

// Phase is a run of identical work units.
type Phase struct {
	Name         string        `yaml:"name"`
	Units        int           `yaml:"units"`
	Interval     time.Duration `yaml:"interval"`
	AllocPerUnit string        `yaml:"alloc_per_unit"`
	// Live sets the reachable heap at phase start; empty keeps the previous value.
	Live string `yaml:"live,omitempty"`
	// Cache is the evictable part of Live.
	Cache string `yaml:"cache,omitempty"`
	// RSSOverhead inflates RSS over the heap high-water mark.
	RSSOverhead float64 `yaml:"rss_overhead,omitempty"`
	Busy        bool    `yaml:"busy,omitempty"`
	Backlog     bool    `yaml:"backlog,omitempty"`
}

// plan is a Scenario with sizes resolved to bytes.
type plan struct {
	ram       uint64
	sweepRate uint64
	drain     time.Duration
	phases    []phasePlan
}

type phasePlan struct {
	Phase

	alloc uint64
	live  uint64
	cache uint64
	keep  bool
}

// LoadFile reads and validates a YAML scenario file.
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	return Parse(data)
}

// Load reads and validates a YAML scenario.
func Load(r io.Reader) (Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}

	return Parse(data)
}

// Parse validates data against the scenario schema and decodes it.
func Parse(data []byte) (Scenario, error) {
	var doc any

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Scenario{}, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if err := validateSchema(doc); err != nil {
		return Scenario{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario

	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}

	if _, err := sc.compile(); err != nil {
		return Scenario{}, err
	}

	return sc, nil
}

// Marshal renders the scenario as YAML.
func (sc Scenario) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(sc); err != nil {
		return nil, fmt.Errorf("encode scenario: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode scenario: %w", err)
	}

	return buf.Bytes(), nil
}

// TotalUnits returns the number of work units across all phases.
func (sc Scenario) TotalUnits() int {
	total := 0
	for _, ph := range sc.Phases {
		total += ph.Units
	}

	return total
}

func (sc Scenario) compile() (plan, error) {
	if sc.Name == "" {
		return plan{}, fmt.Errorf("%w: missing name", ErrInvalidScenario)
	}

	if len(sc.Phases) == 0 {
		return plan{}, fmt.Errorf("%w: %s: no phases", ErrInvalidScenario, sc.Name)
	}

	if sc.MinorReclaim < 0 || sc.MinorReclaim > 1 {
		return plan{}, fmt.Errorf("%w: %s: minor_reclaim %g outside [0,1]", ErrInvalidScenario, sc.Name, sc.MinorReclaim)
	}

	ram, err := sizeField(sc.Name, "ram", sc.RAM)
	if err != nil {
		return plan{}, err
	}

	sweepRate := sc.SweepRate
	if sweepRate == "" {
		sweepRate = defaultSweepRate
	}

	rate, err := sizeField(sc.Name, "sweep_rate", sweepRate)
	if err != nil {
		return plan{}, err
	}

	if rate == 0 {
		return plan{}, fmt.Errorf("%w: %s: sweep_rate must be positive", ErrInvalidScenario, sc.Name)
	}

	pl := plan{ram: ram, sweepRate: rate, drain: sc.Drain}
	if pl.drain <= 0 {
		pl.drain = defaultDrain
	}

	for i, ph := range sc.Phases {
		pp, phErr := compilePhase(sc.Name, i, ph)
		if phErr != nil {
			return plan{}, phErr
		}

		pl.phases = append(pl.phases, pp)
	}

	return pl, nil
}

func compilePhase(scenario string, idx int, ph Phase) (phasePlan, error) {
	label := fmt.Sprintf("%s: phase %d", scenario, idx)
	if ph.Name != "" {
		label = fmt.Sprintf("%s: phase %q", scenario, ph.Name)
	}

	if ph.Units <= 0 {
		return phasePlan{}, fmt.Errorf("%w: %s: units must be positive", ErrInvalidScenario, label)
	}

	if ph.Interval <= 0 {
		return phasePlan{}, fmt.Errorf("%w: %s: interval must be positive", ErrInvalidScenario, label)
	}

	pp := phasePlan{Phase: ph, keep: ph.Live == ""}

	var err error

	if pp.alloc, err = sizeField(label, "alloc_per_unit", ph.AllocPerUnit); err != nil {
		return phasePlan{}, err
	}

	if pp.live, err = sizeField(label, "live", ph.Live); err != nil {
		return phasePlan{}, err
	}

	if pp.cache, err = sizeField(label, "cache", ph.Cache); err != nil {
		return phasePlan{}, err
	}

	if !pp.keep && pp.cache > pp.live {
		return phasePlan{}, fmt.Errorf("%w: %s: cache exceeds live", ErrInvalidScenario, label)
	}

	return pp, nil
}

func sizeField(label, field, value string) (uint64, error) {
	size, err := units.ParseSize(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %s: %w", ErrInvalidScenario, label, field, err)
	}

	return size, nil
}
