package scenario

import (
	"fmt"
	"strings"
	"time"

	"api-test-engine/internal/config"
	"api-test-engine/internal/logger"
	"api-test-engine/internal/types"

	"github.com/google/uuid"
)

// caseNamespace seeds the name-based UUIDs of generated cases so the same
// endpoint and kind always yield the same ids.
var caseNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("api-test-engine/test-case"))

// Credentials are the Authorization values used by generated requests
type Credentials struct {
	Valid        string
	Expired      string
	LowPrivilege string
	Invalid      string
}

// Bounds is an inclusive numeric range
type Bounds struct {
	Min float64
	Max float64
}

// Injection describes the target environment's failure-injection capability
type Injection struct {
	Supported bool
	Header    string
	Targets   []string
}

// Options tune the generation rules
type Options struct {
	Credentials          Credentials
	ConcurrencyHint      int
	PerformanceThreshold time.Duration
	// Bounds overrides the declared bounds of numeric parameters by name.
	Bounds    map[string]Bounds
	Injection Injection
}

// DefaultOptions returns the options used when no configuration is supplied
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps the run configuration onto generation options
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Credentials: Credentials{
			Valid:        cfg.Target.Auth.Token,
			Expired:      cfg.Target.Auth.ExpiredToken,
			LowPrivilege: cfg.Target.Auth.LowPrivilegeToken,
			Invalid:      cfg.Target.Auth.InvalidToken,
		},
		ConcurrencyHint:      cfg.Run.ConcurrencyHint,
		PerformanceThreshold: cfg.Run.PerformanceThreshold,
		Bounds:               make(map[string]Bounds, len(cfg.Run.Bounds)),
		Injection: Injection{
			Supported: cfg.Injection.Enabled,
			Header:    cfg.Injection.Header,
			Targets:   append([]string(nil), cfg.Injection.Targets...),
		},
	}
	for name, b := range cfg.Run.Bounds {
		opts.Bounds[name] = Bounds{Min: b.Min, Max: b.Max}
	}
	return opts
}

// Skip records a rule that did not apply to an endpoint
type Skip struct {
	Kind   types.ScenarioKind `json:"kind" yaml:"kind"`
	Reason string             `json:"reason" yaml:"reason"`
}

// Suite is the output of one generation request
type Suite struct {
	EndpointID string           `json:"endpointId" yaml:"endpoint_id"`
	Cases      []types.TestCase `json:"cases" yaml:"cases"`
	Skipped    []Skip           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Generator derives executable test cases from endpoint descriptions.
// It holds no per-endpoint state; Generate is deterministic for a given
// endpoint, kind set and Options.
type Generator struct {
	opts Options
	log  *logger.Logger
}

// NewGenerator creates a new instance of Generator
func NewGenerator(opts Options, log *logger.Logger) *Generator {
	if opts.ConcurrencyHint < 1 {
		opts.ConcurrencyHint = 10
	}
	if opts.PerformanceThreshold <= 0 {
		opts.PerformanceThreshold = 200 * time.Millisecond
	}
	// the auth and error cases must never fall back to the valid token
	if opts.Credentials.Expired == "" {
		opts.Credentials.Expired = "expired-token"
	}
	if opts.Credentials.LowPrivilege == "" {
		opts.Credentials.LowPrivilege = "low-privilege-token"
	}
	if opts.Credentials.Invalid == "" {
		opts.Credentials.Invalid = "invalid-token"
	}
	return &Generator{opts: opts, log: log.Subsystem("generator")}
}

// draft is a case before it is given its id
type draft struct {
	name            string
	request         types.Request
	assertions      []types.Assertion
	concurrencyHint int
	injection       *types.InjectionDirective
	notApplicable   string
}

// Generate builds the test cases for every requested kind. Kinds are applied
// in the fixed order of types.AllKinds regardless of the order requested.
func (g *Generator) Generate(ep types.Endpoint, kinds []types.ScenarioKind) (*Suite, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	requested := make(map[types.ScenarioKind]bool, len(kinds))
	for _, k := range kinds {
		if !k.Valid() {
			return nil, fmt.Errorf("unknown scenario kind %q", k)
		}
		requested[k] = true
	}

	suite := &Suite{EndpointID: ep.ID, Cases: []types.TestCase{}}
	b := newBuilder(ep, g.opts)

	for _, kind := range types.AllKinds {
		if !requested[kind] {
			continue
		}
		drafts, reason := g.rule(kind)(b)
		if reason != "" {
			// a rule may apply in part and still explain what it left out
			suite.Skipped = append(suite.Skipped, Skip{Kind: kind, Reason: reason})
			g.log.Info("scenario skipped", "endpoint", ep.ID, "kind", kind, "reason", reason)
		}
		for i, d := range drafts {
			suite.Cases = append(suite.Cases, types.TestCase{
				ID:              caseID(ep.ID, kind, i),
				Name:            fmt.Sprintf("%s: %s", kind, d.name),
				ScenarioKind:    kind,
				EndpointID:      ep.ID,
				Request:         d.request,
				Assertions:      d.assertions,
				ConcurrencyHint: d.concurrencyHint,
				Injection:       d.injection,
				NotApplicable:   d.notApplicable,
			})
		}
	}

	g.log.Debug("generated cases", "endpoint", ep.ID, "cases", len(suite.Cases), "skipped", len(suite.Skipped))
	return suite, nil
}

type ruleFunc func(b *builder) ([]draft, string)

func (g *Generator) rule(kind types.ScenarioKind) ruleFunc {
	switch kind {
	case types.KindNormal:
		return normalRule
	case types.KindError:
		return errorRule
	case types.KindBoundary:
		return boundaryRule
	case types.KindInvalidInput:
		return invalidInputRule
	case types.KindAuth:
		return authRule
	case types.KindConcurrent:
		return concurrentRule
	case types.KindPerformance:
		return performanceRule
	case types.KindDependencyFailure:
		return dependencyFailureRule
	default:
		return securityRule
	}
}

func caseID(endpointID string, kind types.ScenarioKind, ordinal int) string {
	name := strings.Join([]string{endpointID, string(kind), fmt.Sprint(ordinal)}, "|")
	return uuid.NewSHA1(caseNamespace, []byte(name)).String()
}

// ParseKinds converts user-supplied names into scenario kinds. "all" selects every kind.
func ParseKinds(names []string) ([]types.ScenarioKind, error) {
	var kinds []types.ScenarioKind
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if part == "all" {
				return append([]types.ScenarioKind(nil), types.AllKinds...), nil
			}
			k := types.ScenarioKind(part)
			if !k.Valid() {
				return nil, fmt.Errorf("unknown scenario kind %q", part)
			}
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no scenario kinds selected")
	}
	return kinds, nil
}
