package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"api-test-engine/internal/aggregator"

	"gopkg.in/yaml.v3"
)

// historyFile collects one JSON line per report when the jsonl format is enabled
const historyFile = "reports.jsonl"

// Reporter handles the generation of test reports
type Reporter struct {
	config ReportingConfig
	out    io.Writer
}

// ReportingConfig holds the configuration for reporting
type ReportingConfig struct {
	Format    []string
	OutputDir string
	Detailed  bool
}

// NewReporter creates a new instance of Reporter printing to stdout
func NewReporter(config ReportingConfig) *Reporter {
	if config.OutputDir == "" {
		config.OutputDir = "reports"
	}
	return &Reporter{
		config: config,
		out:    os.Stdout,
	}
}

// SetOutput redirects console output
func (r *Reporter) SetOutput(w io.Writer) {
	r.out = w
}

// Write stores the report in every configured format and returns the
// paths written.
func (r *Reporter) Write(report *aggregator.Report) ([]string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	base := fmt.Sprintf("report_%s_%s", fileSafe(report.EndpointID), report.GeneratedAt.Format("20060102_150405"))
	var paths []string
	for _, format := range r.config.Format {
		var (
			path string
			err  error
		)
		switch format {
		case "json":
			path = filepath.Join(r.config.OutputDir, base+".json")
			err = writeJSON(path, report)
		case "jsonl":
			path = filepath.Join(r.config.OutputDir, historyFile)
			err = appendJSONLine(path, report)
		case "yaml":
			path = filepath.Join(r.config.OutputDir, base+".yaml")
			err = writeYAML(path, report)
		default:
			err = fmt.Errorf("unsupported format %q", format)
		}
		if err != nil {
			return paths, fmt.Errorf("failed to generate %s report: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeJSON(path string, report *aggregator.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func appendJSONLine(path string, report *aggregator.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}

func writeYAML(path string, report *aggregator.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileSafe(s string) string {
	if s == "" {
		return "endpoint"
	}
	return unsafeChars.ReplaceAllString(s, "_")
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "-"
	case d < time.Millisecond:
		return d.String()
	default:
		return d.Round(100 * time.Microsecond).String()
	}
}
