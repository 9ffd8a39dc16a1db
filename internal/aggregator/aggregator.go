package aggregator

import (
	"context"
	"math"
	"sort"
	"time"

	"api-test-engine/internal/executor"
	"api-test-engine/internal/logger"
	"api-test-engine/internal/status"
	"api-test-engine/internal/types"
)

// Timing summarizes response times across the outcomes that reached the target
type Timing struct {
	Count int           `json:"count" yaml:"count"`
	Min   time.Duration `json:"min" yaml:"min"`
	Mean  time.Duration `json:"mean" yaml:"mean"`
	P95   time.Duration `json:"p95" yaml:"p95"`
	Max   time.Duration `json:"max" yaml:"max"`
}

// Report is the endpoint-level record of one batch
type Report struct {
	EndpointID  string                   `json:"endpointId" yaml:"endpoint_id"`
	BatchID     string                   `json:"batchId" yaml:"batch_id"`
	Verdict     types.EndpointVerdict    `json:"verdict" yaml:"verdict"`
	Counts      map[types.CaseStatus]int `json:"counts" yaml:"counts"`
	Timing      Timing                   `json:"timing" yaml:"timing"`
	Cancelled   bool                     `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	Applied     bool                     `json:"applied" yaml:"applied"`
	Stale       bool                     `json:"stale,omitempty" yaml:"stale,omitempty"`
	PersistErr  string                   `json:"persistError,omitempty" yaml:"persist_error,omitempty"`
	GeneratedAt time.Time                `json:"generatedAt" yaml:"generated_at"`
}

// Aggregator turns batch outcomes into verdicts and records them
type Aggregator struct {
	tracker *status.Tracker
	log     *logger.Logger
	now     func() time.Time
}

// New creates an aggregator writing into tracker. tracker may be nil, in
// which case reports are produced but nothing is recorded.
func New(tracker *status.Tracker, log *logger.Logger) *Aggregator {
	return &Aggregator{
		tracker: tracker,
		log:     log.Subsystem("aggregator"),
		now:     time.Now,
	}
}

// Verdict computes the endpoint status for a list of outcomes: success only
// if every outcome passed, not_tested if there are none.
func Verdict(outcomes []types.Outcome) types.VerdictStatus {
	if len(outcomes) == 0 {
		return types.VerdictNotTested
	}
	for _, o := range outcomes {
		if !o.Passed {
			return types.VerdictFailed
		}
	}
	return types.VerdictSuccess
}

// Aggregate builds the report for one batch and applies its verdict to the
// tracker. A cancelled batch is reported but never applied, and a batch
// submitted before the stored verdict's batch is discarded as stale.
func (a *Aggregator) Aggregate(ctx context.Context, endpointID string, run *executor.RunResult) *Report {
	if run == nil {
		run = &executor.RunResult{}
	}
	at := a.now()

	outcomes := make([]types.Outcome, len(run.Outcomes))
	copy(outcomes, run.Outcomes)

	verdict := types.EndpointVerdict{
		EndpointID:   endpointID,
		Status:       Verdict(outcomes),
		LastTestedAt: &at,
		SubmittedAt:  run.SubmittedAt,
		Outcomes:     outcomes,
	}

	report := &Report{
		EndpointID:  endpointID,
		BatchID:     run.BatchID,
		Verdict:     verdict,
		Counts:      countStatuses(outcomes),
		Timing:      Summarize(outcomes),
		Cancelled:   run.Cancelled,
		GeneratedAt: at,
	}

	switch {
	case a.tracker == nil:
	case run.Cancelled:
		a.log.Info("cancelled batch not recorded", "endpoint", endpointID, "batch", run.BatchID)
	default:
		applied, err := a.tracker.Apply(ctx, verdict)
		report.Applied = applied
		report.Stale = !applied
		if err != nil {
			report.PersistErr = err.Error()
		}
	}

	a.log.Info("batch aggregated", "endpoint", endpointID, "batch", run.BatchID,
		"verdict", verdict.Status, "outcomes", len(outcomes), "applied", report.Applied)
	return report
}

func countStatuses(outcomes []types.Outcome) map[types.CaseStatus]int {
	counts := make(map[types.CaseStatus]int)
	for _, o := range outcomes {
		counts[o.Status]++
	}
	return counts
}

// reachedTarget reports whether an outcome's elapsed time measures a call
func reachedTarget(o types.Outcome) bool {
	switch o.Status {
	case types.StatusPassed, types.StatusFailedAssertions, types.StatusFailedTimeout, types.StatusFailedTransport:
		return true
	}
	return false
}

// Summarize computes min, mean, p95 (nearest rank) and max of elapsed time.
// Outcomes that never made a call are left out.
func Summarize(outcomes []types.Outcome) Timing {
	var samples []time.Duration
	for _, o := range outcomes {
		if reachedTarget(o) {
			samples = append(samples, o.Elapsed)
		}
	}
	if len(samples) == 0 {
		return Timing{}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var total time.Duration
	for _, d := range samples {
		total += d
	}
	rank := int(math.Ceil(0.95*float64(len(samples)))) - 1

	return Timing{
		Count: len(samples),
		Min:   samples[0],
		Mean:  total / time.Duration(len(samples)),
		P95:   samples[rank],
		Max:   samples[len(samples)-1],
	}
}
