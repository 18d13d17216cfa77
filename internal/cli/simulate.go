package cli

import (
	"github.com/spf13/cobra"

	"github.com/kyungseok-lee/go-gcquake/pkg/gcquake"
)

func runSimulateCmd(cmd *cobra.Command, args []string) error {
	trace, err := gcquake.LoadTrace(tracePath)
	if err != nil {
		return err
	}

	sim, err := gcquake.Simulate(optionsArg(args), trace)
	if err != nil {
		return err
	}

	if formatJSON {
		return gcquake.GenerateSimulationJSON(sim, cmd.OutOrStdout(), true)
	}
	return gcquake.GenerateSimulationReport(sim, cmd.OutOrStdout())
}
