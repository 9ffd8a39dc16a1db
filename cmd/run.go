package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"api-test-engine/internal/aggregator"
	"api-test-engine/internal/banner"
	"api-test-engine/internal/catalog"
	"api-test-engine/internal/executor"
	"api-test-engine/internal/reporter"
	"api-test-engine/internal/types"

	"github.com/spf13/cobra"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run [endpoint-id...]",
		Short: "Run generated scenarios against the target",
		Long: `Run generates and executes the scenarios of each named endpoint, or of
every endpoint in the catalog when none is named. With --suite, a suite
written by 'generate --export' is executed as is.

Interrupting a run stops dispatching new cases; calls already in flight
finish and the partial batch is reported but not recorded.`,
		Run: runRun,
	}

	runCmd.Flags().StringSliceP("kinds", "k", []string{"all"}, "Scenario kinds to run")
	runCmd.Flags().IntP("max-concurrency", "n", 0, "Maximum in-flight requests (default from config)")
	runCmd.Flags().Duration("timeout", 0, "Per-case timeout (default from config)")
	runCmd.Flags().String("suite", "", "Run a suite file instead of generating cases")
	runCmd.Flags().Bool("no-banner", false, "Do not print the banner")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	a := mustSetup(cmd, false)
	defer a.Close()

	if quiet, _ := cmd.Flags().GetBool("no-banner"); !quiet {
		banner.PrintBanner(a.cfg.Target.BaseURL)
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var budget executor.Budget
	budget.MaxConcurrency, _ = cmd.Flags().GetInt("max-concurrency")
	budget.PerCaseTimeout, _ = cmd.Flags().GetDuration("timeout")

	var reports []*aggregator.Report
	if suitePath, _ := cmd.Flags().GetString("suite"); suitePath != "" {
		f, err := os.Open(suitePath)
		if err != nil {
			a.fail("Failed to open suite: %v", err)
		}
		suite, err := reporter.ImportSuite(f)
		f.Close()
		if err != nil {
			a.fail("%v", err)
		}
		run := a.engine.Run(ctx, suite.Cases, budget)
		reports = append(reports, a.engine.Aggregate(ctx, suite.EndpointID, run))
	} else {
		endpoints, err := selectEndpoints(cmd, args)
		if err != nil {
			a.fail("%v", err)
		}
		kinds, err := kindsFlag(cmd)
		if err != nil {
			a.fail("%v", err)
		}
		for _, ep := range endpoints {
			if ctx.Err() != nil {
				break
			}
			report, err := a.engine.TestEndpoint(ctx, ep, kinds, budget)
			if err != nil {
				a.fail("Failed to test %s: %v", ep.ID, err)
			}
			reports = append(reports, report)
		}
	}

	failed := false
	for _, report := range reports {
		a.reporter.PrintReport(report)
		if _, err := a.reporter.Write(report); err != nil {
			a.reporter.PrintError(err.Error())
			failed = true
		}
		if report.Verdict.Status != types.VerdictSuccess || report.Cancelled {
			failed = true
		}
	}
	if failed {
		a.Close()
		os.Exit(1)
	}
}

// selectEndpoints returns the named endpoints, or the whole catalog
func selectEndpoints(cmd *cobra.Command, ids []string) ([]types.Endpoint, error) {
	if len(ids) == 0 {
		path, _ := cmd.Flags().GetString("catalog")
		c, err := catalog.Load(path)
		if err != nil {
			return nil, err
		}
		return c.Endpoints, nil
	}
	endpoints := make([]types.Endpoint, 0, len(ids))
	for _, id := range ids {
		ep, err := loadEndpoint(cmd, id)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}
