// Package main provides the entry point for the gcpacer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gcpacer/cmd/gcpacer/commands"
	"github.com/Sumatoshi-tech/gcpacer/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gcpacer",
		Short: "Adaptive garbage collection pacing",
		Long: `gcpacer decides when to run minor and major collections from allocation
telemetry, host busyness, and elapsed time.

Commands:
  simulate   Replay workload scenarios against the pacer on a virtual clock
  scenarios  List or dump the built-in scenarios
  run        Pace the Go runtime under a synthetic workload`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default: gcpacer.yaml in ., ./config, /etc/gcpacer)")

	rootCmd.AddCommand(commands.NewSimulateCommand())
	rootCmd.AddCommand(commands.NewScenariosCommand())
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gcpacer %s\n", version.String())
		},
	}
}
