package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gcpacer/internal/simulation"
)

func init() {
	color.NoColor = true
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestSimulate_BuiltinWithOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.jsonl.lz4")
	plotPath := filepath.Join(dir, "plot.html")

	out, err := execute(t, NewSimulateCommand(),
		"--scenario", "steady,growth", "--timeline",
		"--trace", tracePath, "--plot", plotPath)
	require.NoError(t, err)

	assert.Contains(t, out, "steady")
	assert.Contains(t, out, "growth")
	assert.Contains(t, out, "Total: 2 scenarios")
	assert.Contains(t, out, "timeline:")
	assert.Contains(t, out, "Trace written to "+tracePath)
	assert.Contains(t, out, "Plot written to "+plotPath)

	records, err := simulation.ReadTraceFile(tracePath)
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	html, err := os.ReadFile(plotPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "echarts")
}

func TestSimulate_ScenarioFile(t *testing.T) {
	t.Parallel()

	scenario, err := simulation.Builtin("growth")
	require.NoError(t, err)

	scenario.Name = "custom-growth"

	data, err := scenario.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := execute(t, NewSimulateCommand(), path)
	require.NoError(t, err)
	assert.Contains(t, out, "custom-growth")
	assert.Contains(t, out, "Total: 1 scenarios")
}

func TestSimulate_All(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewSimulateCommand(), "--all", "--parallel", "2")
	require.NoError(t, err)

	for _, name := range simulation.Builtins() {
		assert.Contains(t, out, name)
	}
}

func TestSimulate_Errors(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewSimulateCommand())
	require.ErrorIs(t, err, ErrNoScenariosSelected)

	_, err = execute(t, NewSimulateCommand(), "--scenario", "no-such-scenario")
	require.ErrorIs(t, err, simulation.ErrUnknownScenario)

	_, err = execute(t, NewSimulateCommand(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestScenarios_List(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewScenariosCommand())
	require.NoError(t, err)

	for _, name := range simulation.Builtins() {
		assert.Contains(t, out, name)
	}
}

func TestScenarios_Dump(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewScenariosCommand(), "--dump", "idle-plateau")
	require.NoError(t, err)

	scenario, err := simulation.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "idle-plateau", scenario.Name)

	_, err = execute(t, NewScenariosCommand(), "--dump", "nope")
	require.ErrorIs(t, err, simulation.ErrUnknownScenario)
}
