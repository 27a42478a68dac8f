package simulation

import (
	"fmt"
	"sort"
	"time"
)

var builtins = map[string]func() Scenario{
	"steady": func() Scenario {
		return Scenario{
			Name:         "steady",
			Description:  "Constant request rate with a small live set; eden collections keep up.",
			RAM:          "8GiB",
			MinorReclaim: 0.9,
			Phases: []Phase{{
				Name: "serve", Units: 500, Interval: 10 * time.Millisecond,
				AllocPerUnit: "1MiB", Live: "200MiB", RSSOverhead: 0.1,
			}},
		}
	},
	"growth": func() Scenario {
		return Scenario{
			Name:         "growth",
			Description:  "Live set grows past the absolute cap; full collections kick in.",
			RAM:          "16GiB",
			MinorReclaim: 0.5,
			Phases: []Phase{
				{Name: "small", Units: 100, Interval: 10 * time.Millisecond, AllocPerUnit: "4MiB", Live: "128MiB"},
				{Name: "medium", Units: 100, Interval: 10 * time.Millisecond, AllocPerUnit: "4MiB", Live: "512MiB"},
				{Name: "large", Units: 100, Interval: 10 * time.Millisecond, AllocPerUnit: "4MiB", Live: "1280MiB"},
			},
		}
	},
	"pressure-spike": func() Scenario {
		return Scenario{
			Name:         "pressure-spike",
			Description:  "A busy burst pushes the heap over 70% of RAM; pressure overrides busyness.",
			RAM:          "2GiB",
			MinorReclaim: 0.8,
			Phases: []Phase{
				{Name: "calm", Units: 50, Interval: 10 * time.Millisecond, AllocPerUnit: "1MiB", Live: "512MiB"},
				{
					Name: "spike", Units: 100, Interval: 10 * time.Millisecond, AllocPerUnit: "2MiB",
					Live: "1536MiB", Busy: true, Backlog: true,
				},
			},
		}
	},
	"idle-plateau": func() Scenario {
		return Scenario{
			Name:         "idle-plateau",
			Description:  "Traffic stops with a large resident heap; idle reclaim evicts caches and returns memory.",
			RAM:          "1GiB",
			MinorReclaim: 0.9,
			Phases: []Phase{
				{
					Name: "load", Units: 30, Interval: 10 * time.Millisecond, AllocPerUnit: "2MiB",
					Live: "600MiB", Cache: "200MiB", RSSOverhead: 0.3,
				},
				{Name: "idle", Units: 40, Interval: 50 * time.Millisecond, AllocPerUnit: "0", RSSOverhead: 0.3},
			},
		}
	},
	"busy-host": func() Scenario {
		return Scenario{
			Name:         "busy-host",
			Description:  "Latency-sensitive work in flight defers eden collections until their threshold.",
			RAM:          "8GiB",
			MinorReclaim: 0.9,
			Phases: []Phase{
				{Name: "warmup", Units: 19, Interval: 5 * time.Millisecond, AllocPerUnit: "1MiB", Live: "300MiB"},
				{
					Name: "busy", Units: 200, Interval: 5 * time.Millisecond, AllocPerUnit: "1MiB",
					Busy: true, Backlog: true,
				},
				{Name: "cooldown", Units: 50, Interval: 5 * time.Millisecond, AllocPerUnit: "1MiB"},
			},
		}
	},
}

// Builtins returns the names of the built-in scenarios.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Builtin returns the named built-in scenario.
func Builtin(name string) (Scenario, error) {
	gen, ok := builtins[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}

	return gen(), nil
}
