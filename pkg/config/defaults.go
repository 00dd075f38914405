package config

import (
	"time"

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/filter/cache"
	"guardian-hq/sentinel/pkg/storage"
)

// Default returns a fully populated default configuration.
func Default() *Config {
	cfg := &Config{}
	// Boolean defaults live here: ApplyDefaults cannot tell an unset
	// bool from an explicit false.
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field with its documented default.
// Explicitly configured values are left alone; boolean fields are never
// touched (see Default).
func ApplyDefaults(cfg *Config) {
	scoringDef := filter.DefaultScoringConfig()
	if cfg.Filter.Scoring == (filter.ScoringConfig{}) {
		cfg.Filter.Scoring = scoringDef
	} else {
		// Partially configured scoring inherits the rest. A zero flag
		// threshold or corroboration bonus is meaningful (flag
		// everything, disable the bonus) and stays; a zero block
		// threshold can never validate, so it must be unset.
		if cfg.Filter.Scoring.NormalizationConstant <= 0 {
			cfg.Filter.Scoring.NormalizationConstant = scoringDef.NormalizationConstant
		}
		if cfg.Filter.Scoring.BlockThreshold == 0 {
			cfg.Filter.Scoring.BlockThreshold = scoringDef.BlockThreshold
		}
	}
	if cfg.Filter.Concurrency <= 0 {
		cfg.Filter.Concurrency = filter.DefaultConfig().Concurrency
	}

	cacheDef := cache.DefaultConfig()
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = cacheDef.TTL
	}
	if cfg.Cache.PhraseWindow <= 0 {
		cfg.Cache.PhraseWindow = filter.DefaultPhraseWindow
	}
	if cfg.Cache.RetryAttempts <= 0 {
		cfg.Cache.RetryAttempts = cacheDef.RetryAttempts
	}
	if cfg.Cache.RetryBaseDelay <= 0 {
		cfg.Cache.RetryBaseDelay = cacheDef.RetryBaseDelay
	}

	storeDef := storage.DefaultConfig()
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = storeDef.Driver
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = storeDef.Path
	}
	if cfg.Storage.CheckpointInterval <= 0 {
		cfg.Storage.CheckpointInterval = storeDef.CheckpointInterval
	}
	if cfg.Storage.BusyTimeout <= 0 {
		cfg.Storage.BusyTimeout = storeDef.BusyTimeout
	}

	auditDef := audit.DefaultConfig()
	if cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = auditDef.BufferSize
	}
	if cfg.Audit.FlushInterval <= 0 {
		cfg.Audit.FlushInterval = auditDef.FlushInterval
	}
	if cfg.Audit.BatchSize <= 0 {
		cfg.Audit.BatchSize = auditDef.BatchSize
	}
	if cfg.Audit.RetryAttempts <= 0 {
		cfg.Audit.RetryAttempts = auditDef.RetryAttempts
	}
	if cfg.Audit.RetryBaseDelay <= 0 {
		cfg.Audit.RetryBaseDelay = auditDef.RetryBaseDelay
	}

	if cfg.Rules.Source == "" {
		cfg.Rules.Source = "storage"
	}

	if cfg.Moderator.RefreshSchedule == "" {
		cfg.Moderator.RefreshSchedule = "@every 5m"
	}
	if cfg.Moderator.StatsSchedule == "" {
		cfg.Moderator.StatsSchedule = "@hourly"
	}
	if cfg.Moderator.StatsWindow <= 0 {
		cfg.Moderator.StatsWindow = 24 * time.Hour
	}

	if len(cfg.Generation.Providers) == 0 {
		cfg.Generation.Providers = []string{"template"}
	}
	if cfg.Generation.OpenAI.Model == "" {
		cfg.Generation.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.Generation.Anthropic.Model == "" {
		cfg.Generation.Anthropic.Model = "claude-3-5-haiku-latest"
	}
	if cfg.Generation.Ollama.BaseURL == "" {
		cfg.Generation.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Generation.Ollama.Model == "" {
		cfg.Generation.Ollama.Model = "llama3.2"
	}
	if cfg.Generation.MaxTokens <= 0 {
		cfg.Generation.MaxTokens = 256
	}
	if cfg.Generation.RetryAttempts <= 0 {
		cfg.Generation.RetryAttempts = 3
	}
	if cfg.Generation.RetryBaseDelay <= 0 {
		cfg.Generation.RetryBaseDelay = 500 * time.Millisecond
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.ListenAddress == "" {
		cfg.Metrics.ListenAddress = ":9090"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "sentinel"
	}
}
