package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"api-test-engine/internal/logger"
	"api-test-engine/internal/types"
)

// callFunc sends a prompt to a provider and returns the raw completion
type callFunc func(ctx context.Context, prompt string) (string, error)

// BaseClient builds prompts and parses completions; providers supply the call
type BaseClient struct {
	config *Config
	logger *logger.Logger
	call   callFunc
}

// NewBaseClient creates a new base LLM client
func NewBaseClient(config *Config, log *logger.Logger, call callFunc) *BaseClient {
	return &BaseClient{
		config: config,
		logger: log.Subsystem("llm"),
		call:   call,
	}
}

// SuggestValues implements the Suggester interface
func (c *BaseClient) SuggestValues(ctx context.Context, req SuggestionRequest) (map[string]any, error) {
	if len(req.Parameters) == 0 {
		return map[string]any{}, nil
	}

	paramsJSON, _ := json.Marshal(req.Parameters)
	prompt := fmt.Sprintf(`Suggest one realistic, valid example value for each parameter of this HTTP endpoint.

**Endpoint**: %s %s
%s

### Parameters:
%s

### Rules:
1. Respect each parameter's type; numbers must lie within minimum and maximum when given.
2. Use values a real client would send, never placeholders such as "string" or "test".

### Output Format:
Respond with a single JSON object mapping parameter name to value.`,
		req.APIContext.Method, req.APIContext.Path, req.APIContext.Description, string(paramsJSON))

	response, err := c.call(ctx, prompt)
	if err != nil {
		c.logger.LogLLMInteraction("SuggestValues", req.APIContext, nil, err)
		return nil, fmt.Errorf("failed to suggest values: %w", err)
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(extractJSON(response)), &values); err != nil {
		c.logger.LogLLMInteraction("SuggestValues", req.APIContext, response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	c.logger.LogLLMInteraction("SuggestValues", req.APIContext, values, nil)
	return values, nil
}

// extractJSON strips markdown fences and any prose around the JSON object
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// Enrich returns a copy of ep in which parameters without a default or
// example get the suggested value as their example. It must run before
// generation; the original endpoint is never modified. The count of
// filled parameters is returned.
func Enrich(ctx context.Context, s Suggester, ep types.Endpoint) (types.Endpoint, int, error) {
	out := ep
	out.Parameters = append([]types.Parameter(nil), ep.Parameters...)

	req := SuggestionRequest{
		APIContext: APIContext{Method: ep.Method, Path: ep.Path, Description: ep.Description},
	}
	for _, p := range ep.Parameters {
		if p.Default != nil || p.Example != nil {
			continue
		}
		req.Parameters = append(req.Parameters, ParameterHint{
			Name:        p.Name,
			Type:        string(p.Type),
			In:          p.Location(ep.Method),
			Description: p.Description,
			Minimum:     p.Minimum,
			Maximum:     p.Maximum,
		})
	}
	if len(req.Parameters) == 0 {
		return out, 0, nil
	}

	values, err := s.SuggestValues(ctx, req)
	if err != nil {
		return ep, 0, err
	}

	filled := 0
	for i := range out.Parameters {
		p := &out.Parameters[i]
		if p.Default != nil || p.Example != nil {
			continue
		}
		raw, ok := values[p.Name]
		if !ok {
			continue
		}
		if v, ok := coerce(*p, raw); ok {
			p.Example = v
			filled++
		}
	}
	return out, filled, nil
}

// coerce converts a suggested value to the parameter's type, rejecting
// values that cannot be converted or fall outside declared bounds.
func coerce(p types.Parameter, raw any) (any, bool) {
	switch p.Type {
	case types.ParamNumber:
		var f float64
		switch v := raw.(type) {
		case float64:
			f = v
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, false
			}
			f = parsed
		default:
			return nil, false
		}
		if (p.Minimum != nil && f < *p.Minimum) || (p.Maximum != nil && f > *p.Maximum) {
			return nil, false
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f), true
		}
		return f, true
	case types.ParamBoolean:
		switch v := raw.(type) {
		case bool:
			return v, true
		case string:
			b, err := strconv.ParseBool(v)
			return b, err == nil
		}
		return nil, false
	default:
		switch v := raw.(type) {
		case string:
			return v, v != ""
		case nil:
			return nil, false
		default:
			return fmt.Sprint(v), true
		}
	}
}
