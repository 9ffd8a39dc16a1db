package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"api-test-engine/internal/config"
	"api-test-engine/internal/engine"
	"api-test-engine/internal/llm"
	"api-test-engine/internal/logger"
	"api-test-engine/internal/reporter"
	"api-test-engine/internal/store"

	"github.com/spf13/cobra"
)

const defaultCatalog = "endpoints.yaml"

var rootCmd = &cobra.Command{
	Use:   "apitest",
	Short: "Generate and run API test scenarios",
	Long: `apitest derives test scenarios from endpoint definitions and runs them
against a live target, recording a pass/fail verdict per endpoint.

Examples:
  apitest import https://api.example.com
  apitest generate list-users --kinds normal,boundary
  apitest run list-users --max-concurrency 4
  apitest status`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().String("catalog", defaultCatalog, "Path to the endpoint catalog (YAML or JSON)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
}

// app holds what every command builds from the configuration
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	engine   *engine.Engine
	reporter *reporter.Reporter
}

// setup loads the configuration, opens the verdict store and restores
// persisted verdicts. withLLM adds the suggester and requires its API key.
func setup(cmd *cobra.Command, withLLM bool) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	level := logger.ParseLevel(cfg.Logging.Level)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	log := logger.New(os.Stderr, level)
	if cfg.Logging.Dir != "" {
		if log, err = logger.NewLogger(cfg.Logging.Dir, level); err != nil {
			return nil, err
		}
	}

	a := &app{
		cfg: cfg,
		log: log,
		reporter: reporter.NewReporter(reporter.ReportingConfig{
			Format:    cfg.Reporting.Format,
			OutputDir: cfg.Reporting.OutputDir,
			Detailed:  cfg.Reporting.Detailed,
		}),
	}

	deps := engine.Deps{Log: log}
	if cfg.Store.Driver != "" {
		s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = s
		deps.Persister = s
	}
	if withLLM {
		if err := cfg.LLM.ValidateLLM(); err != nil {
			a.Close()
			return nil, fmt.Errorf("enrichment needs an LLM: %w", err)
		}
		suggester, err := llm.NewClient(llm.FromAppConfig(cfg.LLM), log)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Suggester = suggester
	}

	a.engine = engine.New(cfg, deps)
	if _, err := a.engine.Restore(contextOf(cmd)); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the store and the log file
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close store", "error", err)
		}
	}
	a.log.Close()
}

// mustSetup is setup for Run functions: it prints the error and exits
func mustSetup(cmd *cobra.Command, withLLM bool) *app {
	a, err := setup(cmd, withLLM)
	if err != nil {
		reporter.NewReporter(reporter.ReportingConfig{}).PrintError(err.Error())
		os.Exit(1)
	}
	return a
}

// fail prints err, releases resources and exits
func (a *app) fail(format string, args ...any) {
	a.reporter.PrintError(fmt.Sprintf(format, args...))
	a.Close()
	os.Exit(1)
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
