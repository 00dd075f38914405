// Package storage persists rules, filtering results, and the audit
// trail. Three backends are provided: SQLite for single-instance
// deployments, PostgreSQL for shared deployments, and an in-memory
// store for tests and ephemeral runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/filter"
)

// Common storage errors.
var (
	// ErrRuleNotFound indicates the referenced rule does not exist.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrUnknownDriver indicates an unrecognized storage driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// DeliveryError indicates a filtering result could not be persisted.
// The analysis itself succeeded; only delivery failed, so callers report
// it separately from filtering errors.
type DeliveryError struct {
	ContentID string
	Cause     error
}

// Error returns the error message.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver result for content %q: %v", e.ContentID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *DeliveryError) Unwrap() error {
	return e.Cause
}

// Stats summarizes filtering activity over a time window.
type Stats struct {
	// Window is the reporting window the stats cover.
	Window time.Duration `json:"window"`

	// TotalItems is the number of results recorded in the window.
	TotalItems int64 `json:"total_items"`

	// AverageSeverity is the mean severity across results.
	AverageSeverity float64 `json:"average_severity"`

	// AverageProcessingMS is the mean per-item analysis time.
	AverageProcessingMS float64 `json:"average_processing_time_ms"`

	// ActionCounts breaks results down by action.
	ActionCounts map[filter.Action]int64 `json:"action_distribution"`

	// RuleCounts is how often each rule fired in the window, keyed by
	// rule ID.
	RuleCounts map[int64]int64 `json:"rule_frequency"`

	// CategoryCounts breaks audit matches down by rule category.
	CategoryCounts map[string]int64 `json:"category_distribution"`
}

// Store is the persistence interface. All implementations are safe for
// concurrent use.
type Store interface {
	// ListRules returns every rule, active or not, ordered by ID.
	ListRules(ctx context.Context) ([]filter.Rule, error)

	// ListActiveRules returns the active rules, ordered by ID. This is
	// the rule cache's source query.
	ListActiveRules(ctx context.Context) ([]filter.Rule, error)

	// AddRule inserts a rule and returns its assigned ID.
	AddRule(ctx context.Context, r filter.Rule) (int64, error)

	// SetRuleActive toggles a rule without deleting its history.
	SetRuleActive(ctx context.Context, id int64, active bool) error

	// SaveResult records one filtering result.
	SaveResult(ctx context.Context, res *filter.Result) error

	// AppendAudit appends audit entries. Implements audit.Appender.
	AppendAudit(ctx context.Context, entries []audit.Entry) error

	// Stats summarizes activity over the trailing window.
	Stats(ctx context.Context, window time.Duration) (*Stats, error)

	// Close releases the backing resources.
	Close() error
}

// Config contains storage configuration.
type Config struct {
	// Driver selects the backend: "sqlite", "postgres", or "memory".
	// Default: sqlite
	Driver string `yaml:"driver"`

	// Path is the SQLite database file path.
	// Default: sentinel.db
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`

	// CheckpointInterval is how often the SQLite WAL is checkpointed.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`

	// BusyTimeout is how long SQLite waits for locks before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Driver:             "sqlite",
		Path:               "sentinel.db",
		CheckpointInterval: 5 * time.Minute,
		BusyTimeout:        5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Driver == "" {
		c.Driver = def.Driver
	}
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = def.CheckpointInterval
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = def.BusyTimeout
	}
	return c
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg, logger)
	case "postgres":
		return NewPostgresStore(ctx, cfg, logger)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
