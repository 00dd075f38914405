// Package config defines the sentinel configuration surface: a YAML
// file with defaults, environment variable overrides, and collected
// validation errors.
package config

import (
	"time"

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/filter/cache"
	"guardian-hq/sentinel/pkg/storage"
)

// Config is the root configuration.
type Config struct {
	// Filter configures the analysis engine and scoring.
	Filter filter.Config `yaml:"filter"`

	// Cache configures the rule snapshot cache.
	Cache cache.Config `yaml:"cache"`

	// Storage configures the persistence backend.
	Storage storage.Config `yaml:"storage"`

	// Audit configures the audit trail recorder.
	Audit audit.Config `yaml:"audit"`

	// Rules configures where rules are loaded from.
	Rules RulesConfig `yaml:"rules"`

	// Moderator configures the orchestration layer.
	Moderator ModeratorConfig `yaml:"moderator"`

	// Generation configures the test content generator.
	Generation GenerationConfig `yaml:"generation"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus exposition endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// RulesConfig selects where rules are loaded from.
type RulesConfig struct {
	// Source selects the rule source: "storage" loads rules from the
	// configured store, "file" from Path.
	// Default: storage
	Source string `yaml:"source"`

	// Path is the rule file or directory for the file source.
	Path string `yaml:"path"`

	// Watch enables automatic refresh when rule files change on disk.
	// Only meaningful for the file source.
	Watch bool `yaml:"watch"`
}

// ModeratorConfig tunes the orchestration layer.
type ModeratorConfig struct {
	// RefreshSchedule is a cron expression for periodic rule refresh.
	// Empty disables scheduled refresh; the cache TTL still applies.
	// Default: "@every 5m"
	RefreshSchedule string `yaml:"refresh_schedule"`

	// StatsSchedule is a cron expression for the periodic activity
	// summary log line. Empty disables it.
	// Default: "@hourly"
	StatsSchedule string `yaml:"stats_schedule"`

	// StatsWindow is the trailing window the summary covers.
	// Default: 24h
	StatsWindow time.Duration `yaml:"stats_window"`
}

// GenerationConfig configures the synthetic content generator used to
// exercise rule sets.
type GenerationConfig struct {
	// Providers lists generation backends in priority order. The first
	// available provider wins; later ones are fallbacks.
	// Recognized names: "openai", "anthropic", "ollama", "template".
	// Default: [template]
	Providers []string `yaml:"providers"`

	// OpenAI configures the OpenAI provider.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Anthropic configures the Anthropic provider.
	Anthropic AnthropicConfig `yaml:"anthropic"`

	// Ollama configures the local Ollama provider.
	Ollama OllamaConfig `yaml:"ollama"`

	// MaxTokens bounds generated content length.
	// Default: 256
	MaxTokens int `yaml:"max_tokens"`

	// RetryAttempts is retries per provider before falling through to
	// the next one.
	// Default: 3
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryBaseDelay scales the backoff between retries.
	// Default: 500ms
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// OpenAIConfig configures the OpenAI generation provider.
type OpenAIConfig struct {
	// APIKey authenticates with the OpenAI API. Usually set via
	// SENTINEL_GENERATION_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`

	// Model is the chat model to use.
	// Default: gpt-4o-mini
	Model string `yaml:"model"`
}

// AnthropicConfig configures the Anthropic generation provider.
type AnthropicConfig struct {
	// APIKey authenticates with the Anthropic API. Usually set via
	// SENTINEL_GENERATION_ANTHROPIC_API_KEY.
	APIKey string `yaml:"api_key"`

	// Model is the messages model to use.
	// Default: claude-3-5-haiku-latest
	Model string `yaml:"model"`
}

// OllamaConfig configures the local Ollama generation provider.
type OllamaConfig struct {
	// BaseURL is the Ollama server address.
	// Default: http://localhost:11434
	BaseURL string `yaml:"base_url"`

	// Model is the local model name.
	// Default: llama3.2
	Model string `yaml:"model"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: info
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: json
	Format string `yaml:"format"`

	// AddSource includes file and line in log records.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the metrics HTTP listen address.
	// Default: :9090
	ListenAddress string `yaml:"listen_address"`

	// Namespace prefixes every metric name.
	// Default: sentinel
	Namespace string `yaml:"namespace"`
}
