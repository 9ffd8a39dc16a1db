package llm

import (
	"api-test-engine/internal/config"
)

// Config represents the configuration for LLM integration
type Config struct {
	// Provider specifies which LLM provider to use (e.g., "openai")
	Provider string `json:"provider"`

	// APIKey is the API key for the LLM provider
	APIKey string `json:"api_key"`

	// Model specifies which model to use (e.g., "gpt-4")
	Model string `json:"model"`

	// BaseURL overrides the provider endpoint, for proxies and compatible servers
	BaseURL string `json:"base_url"`

	// Temperature controls the randomness of the output (0.0 to 1.0)
	Temperature float64 `json:"temperature"`

	// MaxTokens limits the length of the generated response
	MaxTokens int `json:"max_tokens"`
}

// NewDefaultConfig returns a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Provider:    "openai",
		Model:       "gpt-4",
		Temperature: 0.2,
		MaxTokens:   2000,
	}
}

// FromAppConfig maps the llm section of the application config
func FromAppConfig(c config.LLMConfig) *Config {
	cfg := NewDefaultConfig()
	if c.Provider != "" {
		cfg.Provider = c.Provider
	}
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.Temperature != 0 {
		cfg.Temperature = c.Temperature
	}
	if c.MaxTokens != 0 {
		cfg.MaxTokens = c.MaxTokens
	}
	cfg.APIKey = c.APIKey
	cfg.BaseURL = c.BaseURL
	return cfg
}
