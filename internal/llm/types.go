package llm

import (
	"context"
)

// Suggester proposes realistic example values for endpoint parameters
type Suggester interface {
	// SuggestValues returns one example value per parameter name it could fill
	SuggestValues(ctx context.Context, req SuggestionRequest) (map[string]any, error)
}

// SuggestionRequest describes the endpoint and the parameters lacking examples
type SuggestionRequest struct {
	APIContext APIContext      `json:"apiContext"`
	Parameters []ParameterHint `json:"parameters"`
}

// APIContext contains information about the API endpoint
type APIContext struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// ParameterHint is what the model sees of one parameter
type ParameterHint struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	In          string   `json:"in"`
	Description string   `json:"description,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}
