package scenario

import (
	"fmt"
	"net/http"

	"api-test-engine/internal/types"
)

// Security payloads sent in free-text parameters
var injectionPayloads = []struct {
	name  string
	value string
}{
	{"sql injection", "' OR '1'='1"},
	{"script injection", "<script>alert('xss')</script>"},
}

// Substrings that must never appear in a response body
var sensitiveMarkers = []string{"password", "salt"}

func expectedStatus(ep types.Endpoint) int {
	if ep.ExpectedResponse.StatusCode != 0 {
		return ep.ExpectedResponse.StatusCode
	}
	return http.StatusOK
}

func normalRule(b *builder) ([]draft, string) {
	assertions := []types.Assertion{types.StatusCodeEquals(expectedStatus(b.ep))}
	for _, field := range b.ep.ExpectedResponse.BodyFields {
		assertions = append(assertions, types.JSONPathExists(field))
	}
	return []draft{{
		name:       "canonical values",
		request:    b.request(b.canonical(), nil, auth{}),
		assertions: assertions,
	}}, ""
}

func errorRule(b *builder) ([]draft, string) {
	var drafts []draft

	if p, ok := outOfRangeTarget(b); ok {
		r := b.bounds(p)
		bad := number(r.Min - 1)
		drafts = append(drafts, draft{
			name:       fmt.Sprintf("out-of-range %s=%v", p.Name, bad),
			request:    b.request(b.with(values{p.Name: bad}), nil, auth{}),
			assertions: []types.Assertion{types.StatusCodeEquals(http.StatusBadRequest)},
		})
	}

	drafts = append(drafts, draft{
		name:       "invalid credential",
		request:    b.request(b.canonical(), nil, auth{token: b.opts.Credentials.Invalid}),
		assertions: []types.Assertion{types.StatusCodeEquals(http.StatusUnauthorized)},
	})
	return drafts, ""
}

// outOfRangeTarget prefers the first required numeric parameter
func outOfRangeTarget(b *builder) (types.Parameter, bool) {
	numeric := b.numericParams()
	for _, p := range numeric {
		if p.Required {
			return p, true
		}
	}
	if len(numeric) > 0 {
		return numeric[0], true
	}
	return types.Parameter{}, false
}

func boundaryRule(b *builder) ([]draft, string) {
	numeric := b.numericParams()
	if len(numeric) == 0 {
		return nil, "endpoint declares no numeric parameter"
	}

	var drafts []draft
	for _, p := range numeric {
		r := b.bounds(p)
		edges := []struct {
			label string
			value float64
		}{
			{"minimum", r.Min},
			{"below minimum", r.Min - 1},
			{"maximum", r.Max},
			{"above maximum", r.Max + 1},
		}
		for _, edge := range edges {
			v := number(edge.value)
			drafts = append(drafts, draft{
				name:       fmt.Sprintf("%s=%v (%s)", p.Name, v, edge.label),
				request:    b.request(b.with(values{p.Name: v}), nil, auth{}),
				assertions: []types.Assertion{types.StatusCodeIn(http.StatusOK, http.StatusBadRequest)},
			})
		}
	}
	return drafts, ""
}

func invalidInputRule(b *builder) ([]draft, string) {
	status := func() []types.Assertion {
		return []types.Assertion{types.StatusCodeEquals(http.StatusBadRequest)}
	}
	var drafts []draft

	for _, p := range b.ep.Parameters {
		if bad, ok := mismatchedValue(p, b.ep.Method); ok {
			drafts = append(drafts, draft{
				name:       fmt.Sprintf("type mismatch %s=%v", p.Name, bad),
				request:    b.request(b.with(values{p.Name: bad}), nil, auth{}),
				assertions: status(),
			})
		}
		if p.Required && p.Location(b.ep.Method) != types.InPath {
			drafts = append(drafts, draft{
				name:       fmt.Sprintf("missing required %s", p.Name),
				request:    b.request(b.with(values{p.Name: omitted}), nil, auth{}),
				assertions: status(),
			})
		}
	}

	drafts = append(drafts, draft{
		name:       "unknown field invalid_key",
		request:    b.request(b.canonical(), []types.Pair{{Name: "invalid_key", Value: "value"}}, auth{}),
		assertions: status(),
	})
	return drafts, ""
}

func authRule(b *builder) ([]draft, string) {
	v := b.canonical()
	return []draft{
		{
			name:       "no authorization header",
			request:    b.request(v, nil, auth{strip: true}),
			assertions: []types.Assertion{types.StatusCodeEquals(http.StatusUnauthorized)},
		},
		{
			name:       "expired token",
			request:    b.request(v, nil, auth{token: b.opts.Credentials.Expired}),
			assertions: []types.Assertion{types.StatusCodeEquals(http.StatusUnauthorized)},
		},
		{
			name:       "low-privilege token",
			request:    b.request(v, nil, auth{token: b.opts.Credentials.LowPrivilege}),
			assertions: []types.Assertion{types.StatusCodeEquals(http.StatusForbidden)},
		},
	}, ""
}

func concurrentRule(b *builder) ([]draft, string) {
	n := b.opts.ConcurrencyHint
	return []draft{{
		name:            fmt.Sprintf("%d simultaneous requests", n),
		request:         b.request(b.canonical(), nil, auth{}),
		assertions:      []types.Assertion{types.StatusCodeEquals(http.StatusOK)},
		concurrencyHint: n,
	}}, ""
}

func performanceRule(b *builder) ([]draft, string) {
	limit := b.opts.PerformanceThreshold
	return []draft{{
		name:    fmt.Sprintf("response under %s", limit),
		request: b.request(b.canonical(), nil, auth{}),
		assertions: []types.Assertion{
			types.ResponseTimeUnder(limit),
			types.StatusCodeEquals(http.StatusOK),
		},
	}}, ""
}

// dependencyFailureRule always emits its cases; when the environment cannot
// inject failures they are marked not applicable instead of being dropped.
func dependencyFailureRule(b *builder) ([]draft, string) {
	inj := b.opts.Injection
	if len(inj.Targets) == 0 {
		return nil, "no injection targets configured"
	}

	var drafts []draft
	for _, target := range inj.Targets {
		d := draft{
			name:       fmt.Sprintf("%s unavailable", target),
			request:    b.request(b.canonical(), nil, auth{}),
			assertions: []types.Assertion{types.StatusCodeEquals(http.StatusServiceUnavailable)},
			injection:  &types.InjectionDirective{Target: target, Header: inj.Header},
		}
		if inj.Supported {
			d.request.Headers = append(d.request.Headers, types.Header{Name: inj.Header, Value: target})
		} else {
			d.notApplicable = "environment does not support failure injection"
		}
		drafts = append(drafts, d)
	}
	return drafts, ""
}

func securityRule(b *builder) ([]draft, string) {
	var leakChecks []types.Assertion
	for _, marker := range sensitiveMarkers {
		leakChecks = append(leakChecks, types.BodyExcludes(marker).WhenStatus(http.StatusOK))
	}

	var drafts []draft
	for _, p := range b.freeTextParams() {
		for _, payload := range injectionPayloads {
			assertions := append([]types.Assertion{types.StatusCodeEquals(http.StatusBadRequest)}, leakChecks...)
			drafts = append(drafts, draft{
				name:       fmt.Sprintf("%s in %s", payload.name, p.Name),
				request:    b.request(b.with(values{p.Name: payload.value}), nil, auth{}),
				assertions: assertions,
			})
		}
	}

	reason := ""
	if len(drafts) == 0 {
		reason = "no free-text parameter to carry injection payloads"
	}

	drafts = append(drafts, draft{
		name:       "sensitive data exposure",
		request:    b.request(b.canonical(), nil, auth{}),
		assertions: leakChecks,
	})
	return drafts, reason
}
