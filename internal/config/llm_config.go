package config

import (
	"fmt"
)

// LLMConfig holds configuration for the optional example-value enrichment
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // e.g., "openai"
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`    // e.g., "gpt-4"
	BaseURL     string  `yaml:"base_url"` // Optional, for custom endpoints
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

func (c *LLMConfig) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
}

// ValidateLLM checks the fields required to create a client
func (c LLMConfig) ValidateLLM() error {
	if c.Provider == "" {
		return fmt.Errorf("%w: LLM provider is required", ErrInvalidConfig)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidConfig)
	}
	return nil
}
