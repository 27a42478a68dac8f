package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gcpacer/internal/simulation"
)

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand() *cobra.Command {
	var dump string

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List or dump the built-in scenarios",
		Long:  "List the built-in scenarios, or print one as YAML to use as a starting point for a custom scenario file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dump != "" {
				return dumpScenario(cmd, dump)
			}

			return listScenarios(cmd)
		},
	}

	cmd.Flags().StringVar(&dump, "dump", "", "Print the named scenario as YAML")

	return cmd
}

func listScenarios(cmd *cobra.Command) error {
	tbl := newTable(cmd.OutOrStdout())
	tbl.AppendHeader(table.Row{"Name", "RAM", "Phases", "Units", "Description"})

	for _, name := range simulation.Builtins() {
		scenario, err := simulation.Builtin(name)
		if err != nil {
			return err
		}

		tbl.AppendRow(table.Row{name, scenario.RAM, len(scenario.Phases), scenario.TotalUnits(), scenario.Description})
	}

	tbl.Render()

	return nil
}

func dumpScenario(cmd *cobra.Command, name string) error {
	scenario, err := simulation.Builtin(name)
	if err != nil {
		return err
	}

	data, err := scenario.Marshal()
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))

	return err
}
