package llmprovider

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Bedrock retry defaults. The core never retries; these are published for the
// retry layer wrapped around a Provider.
const (
	DefaultMaxRetries           = 6
	DefaultInitialRetryInterval = 2000 * time.Millisecond
	DefaultBackoffMultiplier    = 2.0
	DefaultMaxRetryInterval     = 120000 * time.Millisecond
)

// Config is the environment configuration of the providers and programs.
type Config struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"aws_bedrock"`
	Model    string `env:"LLM_MODEL"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// StreamBuffer is the stream output capacity
	StreamBuffer int `env:"LLM_STREAM_BUFFER" envDefault:"100"`

	AWSProfile string `env:"AWS_PROFILE" envDefault:"default"`
	AWSRegion  string `env:"AWS_REGION"`

	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL"`

	Retry RetryConfig `envPrefix:"BEDROCK_"`

	Tracing TracingConfig `envPrefix:"LLM_TRACING_"`

	// MetricsAddr is the listen address of the Prometheus endpoint; empty disables it
	MetricsAddr string `env:"LLM_METRICS_ADDR"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	Endpoint    string  `env:"ENDPOINT" envDefault:"localhost:4317"`
	Protocol    string  `env:"PROTOCOL" envDefault:"grpc"` // grpc or http
	Insecure    bool    `env:"INSECURE" envDefault:"true"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"llmstream"`
	SampleRate  float64 `env:"SAMPLE_RATE" envDefault:"1.0"`
}

// RetryConfig describes exponential backoff for transient failures.
type RetryConfig struct {
	MaxRetries         int     `env:"MAX_RETRIES" envDefault:"6"`
	InitialIntervalMs  int64   `env:"INITIAL_RETRY_INTERVAL_MS" envDefault:"2000"`
	BackoffMultiplier  float64 `env:"BACKOFF_MULTIPLIER" envDefault:"2.0"`
	MaxRetryIntervalMs int64   `env:"MAX_RETRY_INTERVAL_MS" envDefault:"120000"`
}

// DefaultRetryConfig returns the Bedrock retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         DefaultMaxRetries,
		InitialIntervalMs:  DefaultInitialRetryInterval.Milliseconds(),
		BackoffMultiplier:  DefaultBackoffMultiplier,
		MaxRetryIntervalMs: DefaultMaxRetryInterval.Milliseconds(),
	}
}

// Delay returns the backoff before retry attempt n (1-based), capped at the maximum interval.
func (r RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(r.InitialIntervalMs)
	for i := 1; i < attempt; i++ {
		d *= r.BackoffMultiplier
		if d >= float64(r.MaxRetryIntervalMs) {
			return time.Duration(r.MaxRetryIntervalMs) * time.Millisecond
		}
	}
	if d > float64(r.MaxRetryIntervalMs) {
		d = float64(r.MaxRetryIntervalMs)
	}
	return time.Duration(d) * time.Millisecond
}

// LoadConfig parses the process environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFrom parses the given variables instead of the process environment.
func LoadConfigFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if !ProviderID(c.Provider).IsValid() {
		return &ValidationError{Field: "LLM_PROVIDER", Value: c.Provider, Reason: "unknown provider", Err: ErrInvalidRequest}
	}
	if c.StreamBuffer < 1 {
		return &ValidationError{Field: "LLM_STREAM_BUFFER", Value: c.StreamBuffer, Reason: "must be positive", Err: ErrInvalidRequest}
	}
	if c.Retry.BackoffMultiplier < 1 {
		return &ValidationError{Field: "BEDROCK_BACKOFF_MULTIPLIER", Value: c.Retry.BackoffMultiplier, Reason: "must be at least 1", Err: ErrInvalidRequest}
	}
	if c.Tracing.Enabled {
		if c.Tracing.Protocol != "grpc" && c.Tracing.Protocol != "http" {
			return &ValidationError{Field: "LLM_TRACING_PROTOCOL", Value: c.Tracing.Protocol, Reason: "must be grpc or http", Err: ErrInvalidRequest}
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return &ValidationError{Field: "LLM_TRACING_SAMPLE_RATE", Value: c.Tracing.SampleRate, Reason: "must be between 0 and 1", Err: ErrInvalidRequest}
		}
	}
	return nil
}

// ModelOrDefault returns the configured model or the provider's default from the metadata registry.
func (c *Config) ModelOrDefault() string {
	if c.Model != "" {
		return c.Model
	}
	return GetCapabilityRegistry().DefaultModel(c.Provider)
}
