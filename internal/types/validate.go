package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEndpoint is returned for endpoints that cannot be used for generation
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// Validate checks the invariants of an Endpoint.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEndpoint)
	}
	switch e.Method {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
	default:
		return fmt.Errorf("%w: %s: unsupported method %q", ErrInvalidEndpoint, e.ID, e.Method)
	}
	if !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("%w: %s: path must start with /", ErrInvalidEndpoint, e.ID)
	}

	seen := make(map[string]bool, len(e.Parameters))
	for _, p := range e.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: %s: parameter without name", ErrInvalidEndpoint, e.ID)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s: duplicate parameter %q", ErrInvalidEndpoint, e.ID, p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case ParamString, ParamNumber, ParamBoolean:
		default:
			return fmt.Errorf("%w: %s: parameter %q has unsupported type %q", ErrInvalidEndpoint, e.ID, p.Name, p.Type)
		}
		switch p.In {
		case "", InQuery, InPath, InBody, InHeader:
		default:
			return fmt.Errorf("%w: %s: parameter %q has unsupported location %q", ErrInvalidEndpoint, e.ID, p.Name, p.In)
		}
		if p.Minimum != nil && p.Maximum != nil && *p.Minimum > *p.Maximum {
			return fmt.Errorf("%w: %s: parameter %q minimum exceeds maximum", ErrInvalidEndpoint, e.ID, p.Name)
		}
	}
	return nil
}
