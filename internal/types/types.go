package types

import (
	"strings"
	"time"
)

// HTTP methods accepted for an Endpoint.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)

// ParamType is the declared type of a Parameter
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// Parameter locations
const (
	InQuery  = "query"
	InPath   = "path"
	InBody   = "body"
	InHeader = "header"
)

// Endpoint represents one described HTTP operation under test
type Endpoint struct {
	ID               string           `json:"id" yaml:"id"`
	Name             string           `json:"name,omitempty" yaml:"name,omitempty"`
	Method           string           `json:"method" yaml:"method"`
	Path             string           `json:"path" yaml:"path"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	Headers          []Header         `json:"headers,omitempty" yaml:"headers,omitempty"`
	Parameters       []Parameter      `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ExpectedResponse ExpectedResponse `json:"expectedResponse" yaml:"expected_response"`
}

// Header is one entry of an ordered header list
type Header struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Parameter represents an API parameter
type Parameter struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Required    bool      `json:"required" yaml:"required"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	In          string    `json:"in,omitempty" yaml:"in,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Example     any       `json:"example,omitempty" yaml:"example,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty" yaml:"maximum,omitempty"`
}

// ExpectedResponse describes the documented successful response
type ExpectedResponse struct {
	StatusCode int `json:"statusCode" yaml:"status_code"`
	// BodyFields are JSONPath expressions documented to be present in the body.
	BodyFields []string `json:"bodyFields,omitempty" yaml:"body_fields,omitempty"`
}

// Location returns where the parameter is sent, defaulting on the method.
func (p Parameter) Location(method string) string {
	if p.In != "" {
		return p.In
	}
	switch method {
	case MethodGet, MethodDelete:
		return InQuery
	default:
		return InBody
	}
}

// HeaderValue returns the value of the named header, case-insensitively.
func (e Endpoint) HeaderValue(name string) (string, bool) {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// ScenarioKind is a category of test intent
type ScenarioKind string

const (
	KindNormal            ScenarioKind = "normal"
	KindError             ScenarioKind = "error"
	KindBoundary          ScenarioKind = "boundary"
	KindInvalidInput      ScenarioKind = "invalidInput"
	KindAuth              ScenarioKind = "auth"
	KindConcurrent        ScenarioKind = "concurrent"
	KindPerformance       ScenarioKind = "performance"
	KindDependencyFailure ScenarioKind = "dependencyFailure"
	KindSecurity          ScenarioKind = "security"
)

// AllKinds lists every scenario kind in generation order.
var AllKinds = []ScenarioKind{
	KindNormal,
	KindError,
	KindBoundary,
	KindInvalidInput,
	KindAuth,
	KindConcurrent,
	KindPerformance,
	KindDependencyFailure,
	KindSecurity,
}

// Valid reports whether k is one of the known kinds.
func (k ScenarioKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Pair is a named value in an ordered list (query and path parameters)
type Pair struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Request is the request template of a TestCase. Path may contain {name}
// placeholders that are substituted from PathParams at execution time.
type Request struct {
	Method     string         `json:"method" yaml:"method"`
	Path       string         `json:"path" yaml:"path"`
	PathParams []Pair         `json:"pathParams,omitempty" yaml:"path_params,omitempty"`
	Headers    []Header       `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query      []Pair         `json:"query,omitempty" yaml:"query,omitempty"`
	Body       map[string]any `json:"body,omitempty" yaml:"body,omitempty"`
}

// InjectionDirective asks the target to fail one of its downstream dependencies
type InjectionDirective struct {
	Target string `json:"target" yaml:"target"`
	Header string `json:"header" yaml:"header"`
}

// TestCase is one concrete, executable request plus its assertions
type TestCase struct {
	ID              string              `json:"id" yaml:"id"`
	Name            string              `json:"name" yaml:"name"`
	ScenarioKind    ScenarioKind        `json:"scenarioKind" yaml:"scenario_kind"`
	EndpointID      string              `json:"endpointId" yaml:"endpoint_id"`
	Request         Request             `json:"request" yaml:"request"`
	Assertions      []Assertion         `json:"assertions" yaml:"assertions"`
	ConcurrencyHint int                 `json:"concurrencyHint,omitempty" yaml:"concurrency_hint,omitempty"`
	Injection       *InjectionDirective `json:"injection,omitempty" yaml:"injection,omitempty"`
	// NotApplicable holds the reason the environment cannot run this case.
	NotApplicable string `json:"notApplicable,omitempty" yaml:"not_applicable,omitempty"`
}

// Executions returns how many sub-executions the case expands into.
func (tc TestCase) Executions() int {
	if tc.ConcurrencyHint > 1 {
		return tc.ConcurrencyHint
	}
	return 1
}

// ErrorKind classifies why a case did not pass
type ErrorKind string

const (
	ErrNone          ErrorKind = ""
	ErrTransport     ErrorKind = "TransportError"
	ErrTimeout       ErrorKind = "Timeout"
	ErrAssertion     ErrorKind = "AssertionFailure"
	ErrNotApplicable ErrorKind = "NotApplicable"
	ErrStructural    ErrorKind = "StructuralError"
	ErrCancelled     ErrorKind = "Cancelled"
)

// CaseStatus is the per-case rendering state shown to users
type CaseStatus string

const (
	StatusPassed           CaseStatus = "passed"
	StatusFailedAssertions CaseStatus = "failed_assertions"
	StatusFailedTransport  CaseStatus = "failed_transport"
	StatusFailedTimeout    CaseStatus = "failed_timeout"
	StatusSkipped          CaseStatus = "skipped"
	StatusNotApplicable    CaseStatus = "not_applicable"
	StatusInvalid          CaseStatus = "invalid"
)

// CapturedResponse is the part of the target's response kept in an Outcome
type CapturedResponse struct {
	Status      int    `json:"status" yaml:"status"`
	BodySnippet string `json:"bodySnippet,omitempty" yaml:"body_snippet,omitempty"`
}

// AssertionResult is the evaluation of one assertion
type AssertionResult struct {
	Assertion Assertion `json:"assertion" yaml:"assertion"`
	Passed    bool      `json:"passed" yaml:"passed"`
	Actual    string    `json:"actual,omitempty" yaml:"actual,omitempty"`
}

// Outcome is the recorded result of executing one TestCase (or one
// sub-execution of a concurrent case).
type Outcome struct {
	TestCaseID       string            `json:"testCaseId" yaml:"test_case_id"`
	ScenarioKind     ScenarioKind      `json:"scenarioKind" yaml:"scenario_kind"`
	Iteration        int               `json:"iteration" yaml:"iteration"`
	Status           CaseStatus        `json:"status" yaml:"status"`
	Passed           bool              `json:"passed" yaml:"passed"`
	AssertionResults []AssertionResult `json:"assertionResults,omitempty" yaml:"assertion_results,omitempty"`
	FailedAssertions []Assertion       `json:"failedAssertions,omitempty" yaml:"failed_assertions,omitempty"`
	Elapsed          time.Duration     `json:"elapsed" yaml:"elapsed"`
	Error            ErrorKind         `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorDetail      string            `json:"errorDetail,omitempty" yaml:"error_detail,omitempty"`
	Response         *CapturedResponse `json:"capturedResponse,omitempty" yaml:"captured_response,omitempty"`
}

// VerdictStatus is the endpoint-level summary state
type VerdictStatus string

const (
	VerdictSuccess   VerdictStatus = "success"
	VerdictFailed    VerdictStatus = "failed"
	VerdictNotTested VerdictStatus = "not_tested"
)

// EndpointVerdict is the endpoint-level result of the latest run
type EndpointVerdict struct {
	EndpointID   string        `json:"endpointId" yaml:"endpoint_id"`
	Status       VerdictStatus `json:"status" yaml:"status"`
	LastTestedAt *time.Time    `json:"lastTestedAt,omitempty" yaml:"last_tested_at,omitempty"`
	// SubmittedAt is the submission time of the batch that produced the verdict.
	SubmittedAt time.Time `json:"submittedAt" yaml:"submitted_at"`
	Outcomes    []Outcome `json:"outcomes" yaml:"outcomes"`
}

// NewVerdict returns the initial not_tested verdict for an endpoint.
func NewVerdict(endpointID string) EndpointVerdict {
	return EndpointVerdict{
		EndpointID: endpointID,
		Status:     VerdictNotTested,
		Outcomes:   []Outcome{},
	}
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (v EndpointVerdict) Clone() EndpointVerdict {
	out := v
	if v.LastTestedAt != nil {
		t := *v.LastTestedAt
		out.LastTestedAt = &t
	}
	out.Outcomes = make([]Outcome, len(v.Outcomes))
	copy(out.Outcomes, v.Outcomes)
	return out
}
