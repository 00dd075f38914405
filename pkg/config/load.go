package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from the YAML file at path, applies
// SENTINEL_* environment variable overrides, and validates the result.
// The file is unmarshalled over a fully-defaulted configuration, so it
// only overrides the fields it names; omitted fields keep their
// documented defaults, including explicit zero values from the file.
// An empty path yields the default configuration with environment
// overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SENTINEL_SECTION_FIELD environment variable
// overrides. Environment variables take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("SENTINEL_FILTER_FLAG_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Filter.Scoring.FlagThreshold = f
		}
	}
	if val := os.Getenv("SENTINEL_FILTER_BLOCK_THRESHOLD"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Filter.Scoring.BlockThreshold = f
		}
	}
	if val := os.Getenv("SENTINEL_FILTER_NORMALIZATION_CONSTANT"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Filter.Scoring.NormalizationConstant = f
		}
	}
	if val := os.Getenv("SENTINEL_FILTER_CORROBORATION_BONUS"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Filter.Scoring.CorroborationBonus = f
		}
	}
	if val := os.Getenv("SENTINEL_FILTER_CONCURRENCY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Filter.Concurrency = i
		}
	}

	if val := os.Getenv("SENTINEL_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if val := os.Getenv("SENTINEL_CACHE_PHRASE_WINDOW"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Cache.PhraseWindow = i
		}
	}

	if val := os.Getenv("SENTINEL_STORAGE_DRIVER"); val != "" {
		cfg.Storage.Driver = val
	}
	if val := os.Getenv("SENTINEL_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}
	if val := os.Getenv("SENTINEL_STORAGE_DSN"); val != "" {
		cfg.Storage.DSN = val
	}

	if val := os.Getenv("SENTINEL_RULES_SOURCE"); val != "" {
		cfg.Rules.Source = val
	}
	if val := os.Getenv("SENTINEL_RULES_PATH"); val != "" {
		cfg.Rules.Path = val
	}
	if val := os.Getenv("SENTINEL_RULES_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Rules.Watch = b
		}
	}

	if val := os.Getenv("SENTINEL_GENERATION_OPENAI_API_KEY"); val != "" {
		cfg.Generation.OpenAI.APIKey = val
	}
	if val := os.Getenv("SENTINEL_GENERATION_ANTHROPIC_API_KEY"); val != "" {
		cfg.Generation.Anthropic.APIKey = val
	}
	if val := os.Getenv("SENTINEL_GENERATION_OLLAMA_BASE_URL"); val != "" {
		cfg.Generation.Ollama.BaseURL = val
	}

	if val := os.Getenv("SENTINEL_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("SENTINEL_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	if val := os.Getenv("SENTINEL_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("SENTINEL_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Metrics.ListenAddress = val
	}
}
