package config

import (
	"fmt"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "filter.scoring.flag_threshold").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every validation error found in a
// configuration so operators fix them in one pass.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the entire configuration, collecting every violation.
// It returns nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateFilter(cfg)...)
	errs = append(errs, validateStorage(cfg)...)
	errs = append(errs, validateRules(cfg)...)
	errs = append(errs, validateGeneration(cfg)...)
	errs = append(errs, validateLogging(cfg)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateFilter(cfg *Config) []FieldError {
	var errs []FieldError
	s := cfg.Filter.Scoring

	if s.NormalizationConstant <= 0 {
		errs = append(errs, FieldError{
			Field:   "filter.scoring.normalization_constant",
			Message: fmt.Sprintf("must be positive, got %v", s.NormalizationConstant),
		})
	}
	if s.CorroborationBonus < 0 {
		errs = append(errs, FieldError{
			Field:   "filter.scoring.corroboration_bonus",
			Message: fmt.Sprintf("must be non-negative, got %v", s.CorroborationBonus),
		})
	}
	if s.FlagThreshold < 0 || s.BlockThreshold > 1 || s.FlagThreshold >= s.BlockThreshold {
		errs = append(errs, FieldError{
			Field: "filter.scoring",
			Message: fmt.Sprintf("thresholds must satisfy 0 <= flag_threshold < block_threshold <= 1, got flag=%v block=%v",
				s.FlagThreshold, s.BlockThreshold),
		})
	}
	if cfg.Filter.Concurrency <= 0 {
		errs = append(errs, FieldError{
			Field:   "filter.concurrency",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Filter.Concurrency),
		})
	}
	return errs
}

func validateStorage(cfg *Config) []FieldError {
	var errs []FieldError
	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.Path == "" {
			errs = append(errs, FieldError{Field: "storage.path", Message: "required for the sqlite driver"})
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			errs = append(errs, FieldError{Field: "storage.dsn", Message: "required for the postgres driver"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("must be one of sqlite, postgres, memory; got %q", cfg.Storage.Driver),
		})
	}
	return errs
}

func validateRules(cfg *Config) []FieldError {
	var errs []FieldError
	switch cfg.Rules.Source {
	case "storage":
		if cfg.Rules.Watch {
			errs = append(errs, FieldError{Field: "rules.watch", Message: "only supported with the file source"})
		}
	case "file":
		if cfg.Rules.Path == "" {
			errs = append(errs, FieldError{Field: "rules.path", Message: "required for the file source"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.source",
			Message: fmt.Sprintf("must be storage or file, got %q", cfg.Rules.Source),
		})
	}
	return errs
}

func validateGeneration(cfg *Config) []FieldError {
	var errs []FieldError
	for i, name := range cfg.Generation.Providers {
		switch name {
		case "openai", "anthropic", "ollama", "template":
		default:
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("generation.providers[%d]", i),
				Message: fmt.Sprintf("unknown provider %q", name),
			})
		}
	}
	return errs
}

func validateLogging(cfg *Config) []FieldError {
	var errs []FieldError
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format),
		})
	}
	return errs
}
