// Package cache provides the rule snapshot cache: an immutable,
// atomically swapped view of the active rule set with TTL-based and
// explicit refresh.
//
// Readers never observe a partially updated rule set. A refresh builds
// the complete new snapshot off to the side and publishes it with one
// atomic pointer swap; analyses that started on the previous snapshot
// keep it until they finish. When the backing source fails, the cache
// serves the last-known-good snapshot rather than taking filtering down.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"guardian-hq/sentinel/pkg/filter"
)

// Source loads rule definitions from a backing store (database, file,
// API). Load must return the complete current rule set; the cache owns
// compilation and snapshot assembly.
type Source interface {
	Load(ctx context.Context) ([]filter.Rule, error)
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context) ([]filter.Rule, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) ([]filter.Rule, error) {
	return f(ctx)
}

// Config contains cache configuration.
type Config struct {
	// TTL is how long a snapshot is served before a read triggers a
	// refresh. Zero selects the default.
	// Default: 5m
	TTL time.Duration `yaml:"ttl"`

	// PhraseWindow is passed through to rule compilation.
	PhraseWindow int `yaml:"phrase_window"`

	// RetryAttempts is how many times a failed source load is retried
	// before falling back to the stale snapshot.
	// Default: 3
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryBaseDelay scales the backoff between retry attempts.
	// Default: 500ms
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		TTL:            5 * time.Minute,
		RetryAttempts:  3,
		RetryBaseDelay: 500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TTL <= 0 {
		c.TTL = def.TTL
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = def.RetryAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = def.RetryBaseDelay
	}
	return c
}

// Snapshot is one immutable generation of the compiled rule set. Once
// published it is never mutated; updates produce a new snapshot.
type Snapshot struct {
	// Rules is the compiled active rule set.
	Rules []filter.CompiledRule

	// Version is a content hash of the rule set, for change detection
	// and log correlation.
	Version string

	// LoadedAt is when the snapshot was built.
	LoadedAt time.Time

	// Skipped holds the per-rule compile errors of this load. Skipped
	// rules are excluded from Rules; filtering proceeds without them.
	Skipped []error
}

// MetricsRecorder receives cache refresh observations. Nil disables it.
type MetricsRecorder interface {
	RecordRefresh(outcome string, ruleCount, skipped int)
}

// Cache is the rule snapshot cache. It implements filter.RuleProvider.
type Cache struct {
	source  Source
	cfg     Config
	logger  *slog.Logger
	metrics MetricsRecorder

	snapshot atomic.Pointer[Snapshot]

	// refreshMu makes refreshes single-flight: concurrent reads finding
	// a stale snapshot trigger one source load, not a stampede.
	refreshMu sync.Mutex
}

// New creates a rule cache. The first snapshot is loaded lazily on the
// first read; call Refresh at startup to fail fast on a broken source.
func New(cfg Config, source Source, logger *slog.Logger) (*Cache, error) {
	if source == nil {
		return nil, fmt.Errorf("rule source cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		source: source,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}, nil
}

// SetMetrics attaches the metrics recorder. Call before serving traffic.
func (c *Cache) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// ActiveRules returns the current rule snapshot, refreshing it when the
// TTL has expired. A failed refresh falls back to the last-known-good
// snapshot; only a failure with no prior snapshot at all is an error.
func (c *Cache) ActiveRules(ctx context.Context) ([]filter.CompiledRule, error) {
	snap := c.snapshot.Load()
	if snap != nil && time.Since(snap.LoadedAt) < c.cfg.TTL {
		return snap.Rules, nil
	}

	snap, err := c.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Rules, nil
}

// Current returns the current snapshot without triggering a refresh,
// or nil if nothing has been loaded yet.
func (c *Cache) Current() *Snapshot {
	return c.snapshot.Load()
}

// Refresh forces an immediate reload from the source, bypassing the
// TTL. Rule administration calls this after writing rule changes so
// they take effect without waiting out the TTL.
func (c *Cache) Refresh(ctx context.Context) (*Snapshot, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.reload(ctx)
}

// refresh is the read-path refresh: single-flight, and tolerant of a
// concurrent refresh having already done the work.
func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another reader may have refreshed while this one waited.
	if snap := c.snapshot.Load(); snap != nil && time.Since(snap.LoadedAt) < c.cfg.TTL {
		return snap, nil
	}

	snap, err := c.reload(ctx)
	if err == nil {
		return snap, nil
	}

	// Source failed: serve the stale snapshot if one exists.
	if stale := c.snapshot.Load(); stale != nil {
		c.logger.Warn("rule refresh failed, serving stale snapshot",
			"version", stale.Version,
			"age", time.Since(stale.LoadedAt).String(),
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordRefresh("stale_fallback", len(stale.Rules), 0)
		}
		return stale, nil
	}

	if c.metrics != nil {
		c.metrics.RecordRefresh("error", 0, 0)
	}
	return nil, fmt.Errorf("%w: %v", filter.ErrNoRules, err)
}

// reload loads, compiles, and publishes a new snapshot. Callers hold
// refreshMu.
func (c *Cache) reload(ctx context.Context) (*Snapshot, error) {
	rules, err := c.loadWithRetry(ctx)
	if err != nil {
		return nil, err
	}

	compiled, skipped := filter.CompileAll(rules, filter.CompileOptions{
		PhraseWindow: c.cfg.PhraseWindow,
	})
	for _, skipErr := range skipped {
		c.logger.Warn("rule skipped", "error", skipErr)
	}

	snap := &Snapshot{
		Rules:    compiled,
		Version:  snapshotVersion(compiled),
		LoadedAt: time.Now(),
		Skipped:  skipped,
	}
	c.snapshot.Store(snap)

	c.logger.Info("rule snapshot published",
		"version", snap.Version,
		"rules", len(compiled),
		"skipped", len(skipped),
	)
	if c.metrics != nil {
		c.metrics.RecordRefresh("ok", len(compiled), len(skipped))
	}
	return snap, nil
}

// loadWithRetry retries transient source failures with quadratic backoff.
func (c *Cache) loadWithRetry(ctx context.Context) ([]filter.Rule, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt*attempt) * c.cfg.RetryBaseDelay
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		rules, err := c.source.Load(ctx)
		if err == nil {
			return rules, nil
		}
		lastErr = err
		c.logger.Warn("rule source load failed",
			"attempt", attempt+1,
			"attempts", c.cfg.RetryAttempts,
			"error", err,
		)
	}
	return nil, lastErr
}

// snapshotVersion hashes the compiled rule set for change detection.
func snapshotVersion(rules []filter.CompiledRule) string {
	ids := make([]int, 0, len(rules))
	byID := make(map[int]filter.Rule, len(rules))
	for _, cr := range rules {
		ids = append(ids, int(cr.Rule.ID))
		byID[int(cr.Rule.ID)] = cr.Rule
	}
	sort.Ints(ids)

	h := sha256.New()
	for _, id := range ids {
		r := byID[id]
		fmt.Fprintf(h, "%d|%s|%s|%s|%d|%t\n", r.ID, r.Name, r.Pattern, r.Type, r.Severity, r.Ordered)
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}
