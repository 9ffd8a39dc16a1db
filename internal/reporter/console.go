package reporter

import (
	"fmt"
	"strings"
	"unicode"

	"api-test-engine/internal/aggregator"
	"api-test-engine/internal/types"

	"github.com/fatih/color"
)

var (
	passColor    = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	labelColor   = color.New(color.FgCyan)
	methodColor  = color.New(color.FgMagenta, color.Bold)
	dimColor     = color.New(color.Faint)
	headingColor = color.New(color.Bold)
)

// sanitizeOutput escapes control characters so target responses cannot
// drive the terminal
func sanitizeOutput(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteRune(r)
		case r == '\x1b':
			result.WriteString("\\x1b")
		case unicode.IsControl(r) && r < 0x20:
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		case r == 0x7F:
			result.WriteString("\\x7f")
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}

func verdictColor(s types.VerdictStatus) *color.Color {
	switch s {
	case types.VerdictSuccess:
		return passColor
	case types.VerdictFailed:
		return failColor
	default:
		return dimColor
	}
}

func statusColor(s types.CaseStatus) *color.Color {
	switch s {
	case types.StatusPassed:
		return passColor
	case types.StatusNotApplicable, types.StatusSkipped:
		return warnColor
	case types.StatusInvalid:
		return dimColor
	default:
		return failColor
	}
}

// statusOrder is the order counts are printed in
var statusOrder = []types.CaseStatus{
	types.StatusPassed,
	types.StatusFailedAssertions,
	types.StatusFailedTransport,
	types.StatusFailedTimeout,
	types.StatusSkipped,
	types.StatusNotApplicable,
	types.StatusInvalid,
}

// PrintReport prints a report to the console. Passed outcomes are listed
// only in detailed mode.
func (r *Reporter) PrintReport(report *aggregator.Report) {
	v := report.Verdict
	headingColor.Fprintf(r.out, "%s ", report.EndpointID)
	verdictColor(v.Status).Fprintf(r.out, "%s\n", strings.ToUpper(string(v.Status)))
	dimColor.Fprintf(r.out, "  batch %s", report.BatchID)
	if v.LastTestedAt != nil {
		dimColor.Fprintf(r.out, " at %s", v.LastTestedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(r.out)

	switch {
	case report.Cancelled:
		warnColor.Fprintln(r.out, "  cancelled: verdict not recorded")
	case report.Stale:
		warnColor.Fprintln(r.out, "  stale: a newer run is already recorded")
	}
	if report.PersistErr != "" {
		warnColor.Fprintf(r.out, "  not persisted: %s\n", report.PersistErr)
	}

	var counts []string
	for _, s := range statusOrder {
		if n := report.Counts[s]; n > 0 {
			counts = append(counts, fmt.Sprintf("%s=%d", s, n))
		}
	}
	if len(counts) > 0 {
		labelColor.Fprint(r.out, "  outcomes: ")
		fmt.Fprintln(r.out, strings.Join(counts, " "))
	}

	t := report.Timing
	if t.Count > 0 {
		labelColor.Fprint(r.out, "  timing:   ")
		fmt.Fprintf(r.out, "min %s  mean %s  p95 %s  max %s\n",
			formatDuration(t.Min), formatDuration(t.Mean), formatDuration(t.P95), formatDuration(t.Max))
	}

	for _, o := range v.Outcomes {
		if o.Passed && !r.config.Detailed {
			continue
		}
		r.printOutcome(o)
	}
	fmt.Fprintln(r.out)
}

func (r *Reporter) printOutcome(o types.Outcome) {
	fmt.Fprint(r.out, "  ")
	statusColor(o.Status).Fprintf(r.out, "%-17s", o.Status)
	fmt.Fprintf(r.out, " %-17s %s", o.ScenarioKind, shortID(o.TestCaseID))
	if o.Iteration > 0 {
		fmt.Fprintf(r.out, "#%d", o.Iteration)
	}
	dimColor.Fprintf(r.out, " %s\n", formatDuration(o.Elapsed))

	if o.ErrorDetail != "" {
		dimColor.Fprintf(r.out, "      %s\n", sanitizeOutput(o.ErrorDetail))
	}
	for _, res := range o.AssertionResults {
		if res.Passed && !r.config.Detailed {
			continue
		}
		mark := passColor.Sprint("ok  ")
		if !res.Passed {
			mark = failColor.Sprint("FAIL")
		}
		fmt.Fprintf(r.out, "      %s %s", mark, res.Assertion)
		if res.Actual != "" {
			dimColor.Fprintf(r.out, " (got %s)", sanitizeOutput(res.Actual))
		}
		fmt.Fprintln(r.out)
	}
	if r.config.Detailed && o.Response != nil && o.Response.BodySnippet != "" {
		dimColor.Fprintf(r.out, "      body: %s\n", sanitizeOutput(o.Response.BodySnippet))
	}
}

// PrintVerdicts prints one line per tracked endpoint
func (r *Reporter) PrintVerdicts(verdicts []types.EndpointVerdict) {
	if len(verdicts) == 0 {
		dimColor.Fprintln(r.out, "no endpoints tracked")
		return
	}
	for _, v := range verdicts {
		verdictColor(v.Status).Fprintf(r.out, "%-11s", v.Status)
		fmt.Fprintf(r.out, " %s", v.EndpointID)
		if v.LastTestedAt != nil {
			dimColor.Fprintf(r.out, "  %s", v.LastTestedAt.Format("2006-01-02 15:04:05"))
		}
		passed := 0
		for _, o := range v.Outcomes {
			if o.Passed {
				passed++
			}
		}
		if len(v.Outcomes) > 0 {
			dimColor.Fprintf(r.out, "  %d/%d passed", passed, len(v.Outcomes))
		}
		fmt.Fprintln(r.out)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// PrintSuccess prints a success message
func (r *Reporter) PrintSuccess(msg string) {
	passColor.Fprintf(r.out, "✓ %s\n", msg)
}

// PrintError prints an error message
func (r *Reporter) PrintError(msg string) {
	failColor.Fprintf(r.out, "✗ %s\n", sanitizeOutput(msg))
}
