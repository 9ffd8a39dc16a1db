package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"api-test-engine/internal/scenario"
	"api-test-engine/internal/types"

	"gopkg.in/yaml.v3"
)

// RenderCase formats a test case as HTTP request text followed by its
// expectations. The text is for display only; the TestCase stays the
// source of truth.
func RenderCase(tc types.TestCase) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s\n", tc.Name)
	fmt.Fprintf(&b, "# id: %s\n", tc.ID)
	fmt.Fprintf(&b, "# endpoint: %s  kind: %s\n", tc.EndpointID, tc.ScenarioKind)
	if tc.ConcurrencyHint > 1 {
		fmt.Fprintf(&b, "# concurrency: %d simultaneous requests\n", tc.ConcurrencyHint)
	}
	if tc.Injection != nil {
		fmt.Fprintf(&b, "# inject failure: %s via %s\n", tc.Injection.Target, tc.Injection.Header)
	}
	if tc.NotApplicable != "" {
		fmt.Fprintf(&b, "# not applicable: %s\n", tc.NotApplicable)
	}

	path := tc.Request.Path
	for _, p := range tc.Request.PathParams {
		path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(fmt.Sprint(p.Value)))
	}
	if len(tc.Request.Query) > 0 {
		parts := make([]string, 0, len(tc.Request.Query))
		for _, q := range tc.Request.Query {
			parts = append(parts, url.QueryEscape(q.Name)+"="+url.QueryEscape(fmt.Sprint(q.Value)))
		}
		path += "?" + strings.Join(parts, "&")
	}
	fmt.Fprintf(&b, "%s %s\n", tc.Request.Method, path)

	for _, h := range tc.Request.Headers {
		fmt.Fprintf(&b, "%s: %s\n", h.Name, h.Value)
	}
	if tc.Request.Body != nil {
		body, err := json.MarshalIndent(tc.Request.Body, "", "  ")
		if err != nil {
			body = []byte(fmt.Sprintf("%v", tc.Request.Body))
		}
		fmt.Fprintf(&b, "\n%s\n", body)
	}

	b.WriteString("\n")
	for _, a := range tc.Assertions {
		fmt.Fprintf(&b, "# expect %s\n", a)
	}
	return b.String()
}

// ExportSuite writes a generated suite as YAML
func ExportSuite(w io.Writer, suite *scenario.Suite) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(suite); err != nil {
		return fmt.Errorf("failed to encode suite: %w", err)
	}
	return enc.Close()
}

// ImportSuite reads a suite previously written by ExportSuite
func ImportSuite(r io.Reader) (*scenario.Suite, error) {
	var suite scenario.Suite
	if err := yaml.NewDecoder(r).Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to decode suite: %w", err)
	}
	return &suite, nil
}
