package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gcpacer/internal/simulation"
	"github.com/Sumatoshi-tech/gcpacer/pkg/observability"
	"github.com/Sumatoshi-tech/gcpacer/pkg/pacer"
)

// ErrNoScenariosSelected is returned when neither builtins nor files are named.
var ErrNoScenariosSelected = errors.New("no scenarios selected: use --scenario, --all, or pass scenario files")

// SimulateCommand holds the configuration for the simulate command.
type SimulateCommand struct {
	scenarios []string
	all       bool
	tracePath string
	plotPath  string
	timeline  bool
	noColor   bool
	parallel  int
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	sc := &SimulateCommand{}

	cmd := &cobra.Command{
		Use:   "simulate [scenario.yaml...]",
		Short: "Replay workload scenarios against the pacer",
		Long: `Replay scripted workloads against a pacer driven by a virtual clock and a
modelled heap. Runs are deterministic, so the same scenario always yields the
same decisions.`,
		RunE: sc.run,
	}

	cmd.Flags().StringSliceVarP(&sc.scenarios, "scenario", "s", nil, "Built-in scenario names (see 'gcpacer scenarios')")
	cmd.Flags().BoolVar(&sc.all, "all", false, "Run every built-in scenario")
	cmd.Flags().StringVar(&sc.tracePath, "trace", "", "Write the decision trace as JSON lines (.lz4 suffix compresses)")
	cmd.Flags().StringVar(&sc.plotPath, "plot", "", "Write an HTML chart of heap size and collections")
	cmd.Flags().BoolVar(&sc.timeline, "timeline", false, "Print every controller event")
	cmd.Flags().BoolVar(&sc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().IntVar(&sc.parallel, "parallel", 0, "Scenarios simulated concurrently (0 = unbounded)")

	return cmd
}

func (sc *SimulateCommand) run(cmd *cobra.Command, args []string) error {
	if sc.noColor {
		color.NoColor = true
	}

	scenarios, err := sc.selectScenarios(args)
	if err != nil {
		return err
	}

	cfg, providers, err := loadSettings(cmd, observability.ModeSimulate)
	if err != nil {
		return err
	}

	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	tuning, err := cfg.Pacer.Tuning()
	if err != nil {
		return err
	}

	pacerMetrics, err := observability.NewPacerMetrics(providers.Meter, nil)
	if err != nil {
		return err
	}

	traces, err := simulation.RunAll(cmd.Context(), scenarios, simulation.Options{
		Logger:      providers.Logger,
		Tuning:      &tuning,
		Observers:   []pacer.Observer{pacerMetrics},
		Parallelism: sc.parallel,
	})
	if err != nil {
		return err
	}

	return sc.report(cmd.OutOrStdout(), traces)
}

// selectScenarios resolves builtin names and scenario files, builtins first.
func (sc *SimulateCommand) selectScenarios(files []string) ([]simulation.Scenario, error) {
	names := sc.scenarios
	if sc.all {
		names = simulation.Builtins()
	}

	if len(names) == 0 && len(files) == 0 {
		return nil, ErrNoScenariosSelected
	}

	scenarios := make([]simulation.Scenario, 0, len(names)+len(files))

	for _, name := range names {
		scenario, err := simulation.Builtin(name)
		if err != nil {
			return nil, err
		}

		scenarios = append(scenarios, scenario)
	}

	for _, path := range files {
		scenario, err := simulation.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		scenarios = append(scenarios, scenario)
	}

	return scenarios, nil
}

func (sc *SimulateCommand) report(w io.Writer, traces []*simulation.Trace) error {
	renderSummary(w, traces)

	if sc.timeline {
		for _, tr := range traces {
			renderTimeline(w, tr)
		}
	}

	if sc.tracePath != "" {
		if err := simulation.WriteTraceFile(sc.tracePath, traces...); err != nil {
			return err
		}

		fmt.Fprintf(w, "Trace written to %s\n", sc.tracePath)
	}

	if sc.plotPath != "" {
		if err := writePlot(sc.plotPath, traces); err != nil {
			return err
		}

		fmt.Fprintf(w, "Plot written to %s\n", sc.plotPath)
	}

	return nil
}

func writePlot(path string, traces []*simulation.Trace) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close plot file: %w", closeErr)
		}
	}()

	return simulation.RenderHTML(f, traces...)
}
