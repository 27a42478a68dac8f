// Package commands implements the gcpacer CLI command handlers.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gcpacer/pkg/config"
	"github.com/Sumatoshi-tech/gcpacer/pkg/observability"
	"github.com/Sumatoshi-tech/gcpacer/pkg/version"
)

const flagConfig = "config"

// loadSettings reads configuration named by the persistent --config flag
// and initializes observability for mode.
func loadSettings(cmd *cobra.Command, mode observability.AppMode) (*config.Config, observability.Providers, error) {
	configPath, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		configPath = ""
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, observability.Providers{}, fmt.Errorf("load config: %w", err)
	}

	obsCfg, err := cfg.Observability(mode, version.Version)
	if err != nil {
		return nil, observability.Providers{}, err
	}

	if mode != observability.ModeRun {
		obsCfg.PrometheusEnabled = false
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return cfg, providers, nil
}
