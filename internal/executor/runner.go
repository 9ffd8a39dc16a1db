package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"api-test-engine/internal/logger"
	"api-test-engine/internal/types"

	"github.com/google/uuid"
)

// Target is the system under test
type Target struct {
	BaseURL string
	// Client defaults to NewHTTPClient(false).
	Client *http.Client
}

// Budget bounds a single batch
type Budget struct {
	MaxConcurrency int
	PerCaseTimeout time.Duration
}

// DefaultBudget returns the budget used when none is configured
func DefaultBudget() Budget {
	return Budget{MaxConcurrency: 10, PerCaseTimeout: 5 * time.Second}
}

func (b Budget) withDefaults() Budget {
	d := DefaultBudget()
	if b.MaxConcurrency < 1 {
		b.MaxConcurrency = d.MaxConcurrency
	}
	if b.PerCaseTimeout <= 0 {
		b.PerCaseTimeout = d.PerCaseTimeout
	}
	return b
}

// RunResult holds the outcomes of one batch, in the input order of its
// cases. A concurrent case contributes one outcome per sub-execution.
type RunResult struct {
	BatchID     string          `json:"batchId" yaml:"batch_id"`
	SubmittedAt time.Time       `json:"submittedAt" yaml:"submitted_at"`
	FinishedAt  time.Time       `json:"finishedAt" yaml:"finished_at"`
	Outcomes    []types.Outcome `json:"outcomes" yaml:"outcomes"`
	// Cancelled is set when the batch was cancelled before every
	// sub-execution was dispatched; those have a skipped outcome.
	Cancelled bool `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// Scheduler executes test cases against a target under a concurrency budget
type Scheduler struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewScheduler creates a new scheduler for the given target
func NewScheduler(target Target, log *logger.Logger) *Scheduler {
	client := target.Client
	if client == nil {
		client = NewHTTPClient(false)
	}
	return &Scheduler{
		baseURL: target.BaseURL,
		client:  client,
		log:     log.Subsystem("executor"),
	}
}

type job struct {
	caseIdx   int
	iteration int
}

// Run executes every case and returns once all dispatched work has finished.
// At most budget.MaxConcurrency requests are in flight at any time. A
// concurrent case is expanded into ConcurrencyHint sub-executions that are
// dispatched back to back. Cancelling ctx stops dispatch; calls already in
// flight run to completion under their own per-case timeout and the rest
// are reported as skipped.
func (s *Scheduler) Run(ctx context.Context, cases []types.TestCase, budget Budget) *RunResult {
	budget = budget.withDefaults()
	result := &RunResult{
		BatchID:     uuid.NewString(),
		SubmittedAt: time.Now(),
	}

	slots := make([][]types.Outcome, len(cases))
	done := make([][]bool, len(cases))
	total := 0
	for i, tc := range cases {
		n := tc.Executions()
		slots[i] = make([]types.Outcome, n)
		done[i] = make([]bool, n)
		total += n
	}

	s.log.Info("batch started", "batch", result.BatchID, "cases", len(cases), "executions", total,
		"max_concurrency", budget.MaxConcurrency, "per_case_timeout", budget.PerCaseTimeout)

	workers := budget.MaxConcurrency
	if total < workers {
		workers = total
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					continue
				}
				// Each slot is written by exactly one worker.
				slots[j.caseIdx][j.iteration] = s.execute(ctx, cases[j.caseIdx], j.iteration, budget.PerCaseTimeout)
				done[j.caseIdx][j.iteration] = true
			}
		}()
	}

dispatch:
	for i, tc := range cases {
		for it := 0; it < tc.Executions(); it++ {
			select {
			case <-ctx.Done():
				break dispatch
			case jobs <- job{caseIdx: i, iteration: it}:
			}
		}
	}
	close(jobs)
	wg.Wait()

	result.Outcomes = make([]types.Outcome, 0, total)
	skipped := 0
	for i := range slots {
		for it, o := range slots[i] {
			if !done[i][it] {
				o = skippedOutcome(cases[i], it)
				skipped++
			}
			result.Outcomes = append(result.Outcomes, o)
		}
	}
	result.Cancelled = skipped > 0
	result.FinishedAt = time.Now()

	if result.Cancelled {
		s.log.Warn("batch cancelled", "batch", result.BatchID, "completed", total-skipped, "executions", total)
	} else {
		s.log.Info("batch finished", "batch", result.BatchID, "outcomes", len(result.Outcomes),
			"duration", result.FinishedAt.Sub(result.SubmittedAt))
	}
	return result
}

// skippedOutcome records a sub-execution that was never run because the
// batch was cancelled first
func skippedOutcome(tc types.TestCase, iteration int) types.Outcome {
	return types.Outcome{
		TestCaseID:   tc.ID,
		ScenarioKind: tc.ScenarioKind,
		Iteration:    iteration,
		Status:       types.StatusSkipped,
		Error:        types.ErrCancelled,
		ErrorDetail:  "batch cancelled before dispatch",
	}
}

// execute performs one sub-execution of a case and evaluates its assertions
func (s *Scheduler) execute(ctx context.Context, tc types.TestCase, iteration int, timeout time.Duration) types.Outcome {
	outcome := types.Outcome{
		TestCaseID:   tc.ID,
		ScenarioKind: tc.ScenarioKind,
		Iteration:    iteration,
	}

	if tc.NotApplicable != "" {
		outcome.Status = types.StatusNotApplicable
		outcome.Error = types.ErrNotApplicable
		outcome.ErrorDetail = tc.NotApplicable
		return outcome
	}

	// The batch context only gates dispatch; a started call keeps its own deadline.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := buildRequest(callCtx, s.baseURL, tc)
	if err != nil {
		outcome.Status = types.StatusInvalid
		outcome.Error = types.ErrStructural
		outcome.ErrorDetail = err.Error()
		s.log.Warn("invalid test case", "case", tc.ID, "error", err)
		return outcome
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		outcome.Elapsed = time.Since(start)
		return s.transportFailure(outcome, tc, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	outcome.Elapsed = time.Since(start)
	if err != nil {
		outcome.Response = &types.CapturedResponse{Status: resp.StatusCode, BodySnippet: snippet(body)}
		return s.transportFailure(outcome, tc, fmt.Errorf("failed to read response body: %w", err))
	}
	outcome.Response = &types.CapturedResponse{Status: resp.StatusCode, BodySnippet: snippet(body)}

	results, failed := evaluate(tc.Assertions, &response{
		status:  resp.StatusCode,
		body:    body,
		elapsed: outcome.Elapsed,
	})
	outcome.AssertionResults = results
	outcome.FailedAssertions = failed
	if len(failed) > 0 {
		outcome.Status = types.StatusFailedAssertions
		outcome.Error = types.ErrAssertion
		s.log.Debug("assertions failed", "case", tc.ID, "iteration", iteration, "failed", len(failed), "status", resp.StatusCode)
		return outcome
	}

	outcome.Status = types.StatusPassed
	outcome.Passed = true
	return outcome
}

func (s *Scheduler) transportFailure(outcome types.Outcome, tc types.TestCase, err error) types.Outcome {
	kind, detail := classifyError(err)
	outcome.Error = kind
	outcome.ErrorDetail = detail
	if kind == types.ErrTimeout {
		outcome.Status = types.StatusFailedTimeout
	} else {
		outcome.Status = types.StatusFailedTransport
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		s.log.Warn("request failed", "case", tc.ID, "iteration", outcome.Iteration, "error", err)
	} else {
		s.log.Warn("request timed out", "case", tc.ID, "iteration", outcome.Iteration, "elapsed", outcome.Elapsed)
	}
	return outcome
}
