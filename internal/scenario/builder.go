package scenario

import (
	"fmt"
	"math"
	"strings"

	"api-test-engine/internal/types"
)

// builder turns parameter assignments into request templates for one endpoint
type builder struct {
	ep   types.Endpoint
	opts Options
}

func newBuilder(ep types.Endpoint, opts Options) *builder {
	return &builder{ep: ep, opts: opts}
}

// values is an assignment of parameter name to the value to send. A name
// mapped to omitted is left out of the request.
type values map[string]any

type omittedValue struct{}

var omitted = omittedValue{}

// canonical returns the type-canonical valid value for every parameter.
func (b *builder) canonical() values {
	v := make(values, len(b.ep.Parameters))
	for _, p := range b.ep.Parameters {
		v[p.Name] = canonicalValue(p)
	}
	return v
}

// with returns a copy of the canonical assignment with overrides applied
func (b *builder) with(overrides values) values {
	v := b.canonical()
	for k, val := range overrides {
		v[k] = val
	}
	return v
}

// auth controls the Authorization header of a request
type auth struct {
	strip bool
	token string
}

// request lays the assignment out over path, query, header and body.
// Extra pairs are sent where the endpoint's default location is.
func (b *builder) request(v values, extra []types.Pair, a auth) types.Request {
	req := types.Request{
		Method: b.ep.Method,
		Path:   b.ep.Path,
	}

	var paramHeaders []types.Header
	for _, p := range b.ep.Parameters {
		val, ok := v[p.Name]
		if !ok || val == omitted {
			continue
		}
		switch p.Location(b.ep.Method) {
		case types.InPath:
			req.PathParams = append(req.PathParams, types.Pair{Name: p.Name, Value: val})
		case types.InQuery:
			req.Query = append(req.Query, types.Pair{Name: p.Name, Value: val})
		case types.InHeader:
			paramHeaders = append(paramHeaders, types.Header{Name: p.Name, Value: fmt.Sprint(val)})
		case types.InBody:
			if req.Body == nil {
				req.Body = make(map[string]any)
			}
			req.Body[p.Name] = val
		}
	}

	for _, e := range extra {
		if defaultLocation(b.ep.Method) == types.InQuery {
			req.Query = append(req.Query, e)
			continue
		}
		if req.Body == nil {
			req.Body = make(map[string]any)
		}
		req.Body[e.Name] = e.Value
	}

	req.Headers = b.headers(req.Body != nil, paramHeaders, a)
	return req
}

func (b *builder) headers(hasBody bool, paramHeaders []types.Header, a auth) []types.Header {
	headers := make([]types.Header, 0, len(b.ep.Headers)+len(paramHeaders)+3)
	present := make(map[string]bool)
	add := func(h types.Header) {
		key := strings.ToLower(h.Name)
		if present[key] {
			return
		}
		if key == "authorization" && (a.strip || a.token != "") {
			return
		}
		present[key] = true
		headers = append(headers, h)
	}

	for _, h := range b.ep.Headers {
		add(h)
	}
	for _, h := range paramHeaders {
		add(h)
	}
	add(types.Header{Name: "Accept", Value: "application/json"})
	if hasBody {
		add(types.Header{Name: "Content-Type", Value: "application/json"})
	}

	switch {
	case a.strip:
	case a.token != "":
		headers = append(headers, types.Header{Name: "Authorization", Value: bearer(a.token)})
	case !present["authorization"] && b.opts.Credentials.Valid != "":
		headers = append(headers, types.Header{Name: "Authorization", Value: bearer(b.opts.Credentials.Valid)})
	}
	return headers
}

func bearer(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

func defaultLocation(method string) string {
	return types.Parameter{}.Location(method)
}

// numericParams returns the number-typed parameters in declaration order
func (b *builder) numericParams() []types.Parameter {
	var out []types.Parameter
	for _, p := range b.ep.Parameters {
		if p.Type == types.ParamNumber {
			out = append(out, p)
		}
	}
	return out
}

// freeTextParams returns string parameters a user can type arbitrary text into
func (b *builder) freeTextParams() []types.Parameter {
	var out []types.Parameter
	for _, p := range b.ep.Parameters {
		if p.Type != types.ParamString {
			continue
		}
		switch p.Location(b.ep.Method) {
		case types.InQuery, types.InBody:
			out = append(out, p)
		}
	}
	return out
}

// bounds resolves the test range of a numeric parameter
// (override, then declared, then the generic 0..1000 range).
func (b *builder) bounds(p types.Parameter) Bounds {
	if o, ok := b.opts.Bounds[p.Name]; ok {
		return o
	}
	r := Bounds{Min: 0, Max: 1000}
	if p.Minimum != nil {
		r.Min = *p.Minimum
	}
	if p.Maximum != nil {
		r.Max = *p.Maximum
	}
	return r
}

// canonicalValue picks the first declared default, then the example, then a
// type-appropriate sentinel.
func canonicalValue(p types.Parameter) any {
	if p.Default != nil {
		return p.Default
	}
	if p.Example != nil {
		return p.Example
	}
	switch p.Type {
	case types.ParamNumber:
		n := 1.0
		if p.Minimum != nil && n < *p.Minimum {
			n = *p.Minimum
		}
		if p.Maximum != nil && n > *p.Maximum {
			n = *p.Maximum
		}
		return number(n)
	case types.ParamBoolean:
		return true
	default:
		return "test"
	}
}

// mismatchedValue returns a value of the wrong type for p, if one can be
// expressed at p's location.
func mismatchedValue(p types.Parameter, method string) (any, bool) {
	switch p.Type {
	case types.ParamNumber:
		return "abc", true
	case types.ParamBoolean:
		return "not-a-boolean", true
	default:
		// Query, path and header values are always text on the wire.
		if p.Location(method) == types.InBody {
			return 12345, true
		}
		return nil, false
	}
}

// number keeps integral values integral so they render as "1", not "1.0"
func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int(f)
	}
	return f
}
