package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the engine looks for its configuration file
const DefaultPath = "config/config.yaml"

// ErrInvalidConfig is returned when a configuration value is out of range
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration
type Config struct {
	Target    TargetConfig    `yaml:"target"`
	Injection InjectionConfig `yaml:"injection"`
	Run       RunConfig       `yaml:"run"`
	Reporting ReportingConfig `yaml:"reporting"`
	Store     StoreConfig     `yaml:"store"`
	LLM       LLMConfig       `yaml:"llm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TargetConfig holds the system under test
type TargetConfig struct {
	BaseURL  string     `yaml:"base_url"`
	Auth     AuthConfig `yaml:"auth"`
	Insecure bool       `yaml:"insecure"`
}

// AuthConfig holds the credentials used by generated requests
type AuthConfig struct {
	Token             string `yaml:"token"`
	ExpiredToken      string `yaml:"expired_token"`
	LowPrivilegeToken string `yaml:"low_privilege_token"`
	InvalidToken      string `yaml:"invalid_token"`
}

// InjectionConfig describes the target's failure-injection capability
type InjectionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Header  string   `yaml:"header"`
	Targets []string `yaml:"targets"`
}

// RunConfig holds test execution configuration
type RunConfig struct {
	MaxConcurrency       int                     `yaml:"max_concurrency"`
	PerCaseTimeout       time.Duration           `yaml:"per_case_timeout"`
	ConcurrencyHint      int                     `yaml:"concurrency_hint"`
	PerformanceThreshold time.Duration           `yaml:"performance_threshold"`
	Bounds               map[string]BoundsConfig `yaml:"bounds"`
}

// BoundsConfig overrides the declared bounds of a numeric parameter
type BoundsConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
	Detailed  bool     `yaml:"detailed"`
}

// StoreConfig selects the verdict persistence backend. An empty driver disables it.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the configuration from a YAML file and environment variables.
// A missing file at DefaultPath is not an error; defaults apply.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var config Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err) && path == DefaultPath:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("config file not found at %s", path)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		c.Target.Auth.Token = token
	}
	if baseURL := os.Getenv("TARGET_BASE_URL"); baseURL != "" {
		c.Target.BaseURL = baseURL
	}
	if dsn := os.Getenv("STORE_DSN"); dsn != "" {
		c.Store.DSN = dsn
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
}

func (c *Config) applyDefaults() {
	if c.Target.Auth.Token == "" {
		c.Target.Auth.Token = "your-token"
	}
	if c.Target.Auth.ExpiredToken == "" {
		c.Target.Auth.ExpiredToken = "expired-token"
	}
	if c.Target.Auth.LowPrivilegeToken == "" {
		c.Target.Auth.LowPrivilegeToken = "low-privilege-token"
	}
	if c.Target.Auth.InvalidToken == "" {
		c.Target.Auth.InvalidToken = "invalid-token"
	}
	if c.Injection.Header == "" {
		c.Injection.Header = "X-Fault-Inject"
	}
	if len(c.Injection.Targets) == 0 {
		c.Injection.Targets = []string{"database", "cache"}
	}
	if c.Run.MaxConcurrency == 0 {
		c.Run.MaxConcurrency = 10
	}
	if c.Run.PerCaseTimeout == 0 {
		c.Run.PerCaseTimeout = 5 * time.Second
	}
	if c.Run.ConcurrencyHint == 0 {
		c.Run.ConcurrencyHint = 10
	}
	if c.Run.PerformanceThreshold == 0 {
		c.Run.PerformanceThreshold = 200 * time.Millisecond
	}
	if len(c.Reporting.Format) == 0 {
		c.Reporting.Format = []string{"json"}
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = filepath.Join("reports")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.LLM.applyDefaults()
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	if c.Run.MaxConcurrency < 1 {
		return fmt.Errorf("%w: run.max_concurrency must be positive", ErrInvalidConfig)
	}
	if c.Run.PerCaseTimeout < 0 {
		return fmt.Errorf("%w: run.per_case_timeout must be positive", ErrInvalidConfig)
	}
	if c.Run.ConcurrencyHint < 1 {
		return fmt.Errorf("%w: run.concurrency_hint must be positive", ErrInvalidConfig)
	}
	for name, b := range c.Run.Bounds {
		if b.Min > b.Max {
			return fmt.Errorf("%w: run.bounds.%s: min exceeds max", ErrInvalidConfig, name)
		}
	}
	switch c.Store.Driver {
	case "", "sqlite", "postgres", "mysql", "sqlserver":
	default:
		return fmt.Errorf("%w: unsupported store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	for _, f := range c.Reporting.Format {
		switch f {
		case "json", "jsonl", "yaml":
		default:
			return fmt.Errorf("%w: unsupported report format %q", ErrInvalidConfig, f)
		}
	}
	return nil
}
