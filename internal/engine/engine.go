package engine

import (
	"context"
	"fmt"
	"net/http"

	"api-test-engine/internal/aggregator"
	"api-test-engine/internal/config"
	"api-test-engine/internal/executor"
	"api-test-engine/internal/llm"
	"api-test-engine/internal/logger"
	"api-test-engine/internal/scenario"
	"api-test-engine/internal/status"
	"api-test-engine/internal/types"
)

// Deps are the collaborators the engine is built from. Every field is optional.
type Deps struct {
	Log       *logger.Logger
	Client    *http.Client
	Persister status.Persister
	Suggester llm.Suggester
}

// verdictLoader is implemented by persisters that can reload stored verdicts
type verdictLoader interface {
	Load(ctx context.Context) ([]types.EndpointVerdict, error)
}

// Engine wires generation, execution, aggregation and status tracking
// behind the operations a presentation collaborator calls.
type Engine struct {
	generator  *scenario.Generator
	scheduler  *executor.Scheduler
	tracker    *status.Tracker
	aggregator *aggregator.Aggregator
	budget     executor.Budget
	persister  status.Persister
	suggester  llm.Suggester
	log        *logger.Logger
}

// New creates an engine from the configuration
func New(cfg *config.Config, deps Deps) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	client := deps.Client
	if client == nil {
		client = executor.NewHTTPClient(cfg.Target.Insecure)
	}

	tracker := status.NewTracker(deps.Persister, deps.Log)
	return &Engine{
		generator: scenario.NewGenerator(scenario.OptionsFromConfig(cfg), deps.Log),
		scheduler: executor.NewScheduler(executor.Target{
			BaseURL: cfg.Target.BaseURL,
			Client:  client,
		}, deps.Log),
		tracker:    tracker,
		aggregator: aggregator.New(tracker, deps.Log),
		budget: executor.Budget{
			MaxConcurrency: cfg.Run.MaxConcurrency,
			PerCaseTimeout: cfg.Run.PerCaseTimeout,
		},
		persister: deps.Persister,
		suggester: deps.Suggester,
		log:       deps.Log.Subsystem("engine"),
	}
}

// Generate derives the test cases for ep and starts tracking the endpoint
func (e *Engine) Generate(ep types.Endpoint, kinds []types.ScenarioKind) (*scenario.Suite, error) {
	suite, err := e.generator.Generate(ep, kinds)
	if err != nil {
		return nil, err
	}
	e.tracker.Register(ep.ID)
	return suite, nil
}

// Run executes cases. Zero fields of override fall back to the configured budget.
func (e *Engine) Run(ctx context.Context, cases []types.TestCase, override executor.Budget) *executor.RunResult {
	budget := e.budget
	if override.MaxConcurrency > 0 {
		budget.MaxConcurrency = override.MaxConcurrency
	}
	if override.PerCaseTimeout > 0 {
		budget.PerCaseTimeout = override.PerCaseTimeout
	}
	return e.scheduler.Run(ctx, cases, budget)
}

// Aggregate turns a run into the endpoint report and records its verdict
func (e *Engine) Aggregate(ctx context.Context, endpointID string, run *executor.RunResult) *aggregator.Report {
	return e.aggregator.Aggregate(ctx, endpointID, run)
}

// GetVerdict returns the current verdict of a tracked endpoint
func (e *Engine) GetVerdict(endpointID string) (types.EndpointVerdict, error) {
	return e.tracker.Get(endpointID)
}

// Verdicts returns every tracked verdict ordered by endpoint id
func (e *Engine) Verdicts() []types.EndpointVerdict {
	return e.tracker.All()
}

// Evict stops tracking an endpoint removed from the catalog
func (e *Engine) Evict(ctx context.Context, endpointID string) error {
	return e.tracker.Evict(ctx, endpointID)
}

// Restore loads persisted verdicts into the tracker. It returns how many
// verdicts were read; persisters that cannot load are a no-op.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	loader, ok := e.persister.(verdictLoader)
	if !ok {
		return 0, nil
	}
	verdicts, err := loader.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to restore verdicts: %w", err)
	}
	e.tracker.Restore(verdicts)
	e.log.Debug("restored verdicts", "count", len(verdicts))
	return len(verdicts), nil
}

// Enrich fills missing parameter examples through the configured suggester.
// Without one, ep is returned unchanged.
func (e *Engine) Enrich(ctx context.Context, ep types.Endpoint) (types.Endpoint, error) {
	if e.suggester == nil {
		return ep, nil
	}
	enriched, filled, err := llm.Enrich(ctx, e.suggester, ep)
	if err != nil {
		return ep, fmt.Errorf("failed to enrich %s: %w", ep.ID, err)
	}
	e.log.Info("enriched endpoint", "endpoint", ep.ID, "filled", filled)
	return enriched, nil
}

// TestEndpoint generates, runs and aggregates in one call
func (e *Engine) TestEndpoint(ctx context.Context, ep types.Endpoint, kinds []types.ScenarioKind, budget executor.Budget) (*aggregator.Report, error) {
	suite, err := e.Generate(ep, kinds)
	if err != nil {
		return nil, err
	}
	run := e.Run(ctx, suite.Cases, budget)
	return e.Aggregate(ctx, ep.ID, run), nil
}
