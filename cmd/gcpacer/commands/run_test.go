package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gcpacer/pkg/config"
)

func TestRun_ApplyOverrides(t *testing.T) {
	t.Parallel()

	rc := &RunCommand{}
	cmd := newRunCommand(rc)
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "2", "--cache-size", "1MiB"}))

	run := config.RunConfig{Workers: 8, CacheSize: "64MiB", Interval: time.Second}
	rc.applyOverrides(cmd, &run)

	assert.Equal(t, 2, run.Workers)
	assert.Equal(t, "1MiB", run.CacheSize)
	assert.Equal(t, time.Second, run.Interval)
}

func TestRun_InvalidOverride(t *testing.T) {
	t.Parallel()

	_, err := execute(t, NewRunCommand(), "--workers", "0", "--metrics-addr", "127.0.0.1:0")
	require.ErrorIs(t, err, config.ErrInvalidWorkload)
}

func TestRun_LiveWorkload(t *testing.T) {
	t.Parallel()

	out, err := execute(t, NewRunCommand(),
		"--duration", "300ms",
		"--workers", "2",
		"--interval", "2ms",
		"--request-size", "64KiB",
		"--cache-size", "1MiB",
		"--metrics-addr", "127.0.0.1:0",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Pacer metrics:")
	assert.Contains(t, out, "Minor collections")
}
