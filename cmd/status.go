package cmd

import (
	"api-test-engine/internal/types"

	"github.com/spf13/cobra"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status [endpoint-id]",
		Short: "Show the recorded verdict of each endpoint",
		Args:  cobra.MaximumNArgs(1),
		Run:   runStatus,
	}

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	a := mustSetup(cmd, false)
	defer a.Close()

	if a.store == nil {
		a.log.Warn("no store configured; verdicts are not kept between runs")
	}

	if len(args) == 0 {
		a.reporter.PrintVerdicts(a.engine.Verdicts())
		return
	}
	v, err := a.engine.GetVerdict(args[0])
	if err != nil {
		a.fail("%s: %v", args[0], err)
	}
	a.reporter.PrintVerdicts([]types.EndpointVerdict{v})
}
