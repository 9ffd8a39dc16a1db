package llm

import (
	"fmt"
	"strings"

	"api-test-engine/internal/logger"
)

// NewClient creates a Suggester for the configured provider
func NewClient(config *Config, log *logger.Logger) (Suggester, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required for provider %s", config.Provider)
	}
	switch strings.ToLower(config.Provider) {
	case "openai", "":
		return NewOpenAIClient(config, log), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
