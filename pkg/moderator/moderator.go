// Package moderator wires the filtering engine, rule cache, storage,
// and audit trail into one service with a managed lifecycle. It is the
// layer the CLI talks to.
package moderator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/config"
	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/filter/cache"
	"guardian-hq/sentinel/pkg/storage"
	"guardian-hq/sentinel/pkg/telemetry/health"
	"guardian-hq/sentinel/pkg/telemetry/metrics"
)

// Moderator owns the filtering pipeline: a store for rules and results,
// a snapshot cache feeding the engine, and an audit recorder flushing
// matches back to the store.
type Moderator struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	cache    *cache.Cache
	engine   *filter.Engine
	recorder *audit.Recorder
	metrics  *metrics.Collector
	health   *health.Checker
	watcher  *cache.Watcher
	cron     *cron.Cron

	mu        sync.Mutex
	running   bool
	closeOnce sync.Once
	closeErr  error
}

// New builds a moderator from configuration. The returned moderator is
// ready to serve Moderate calls; Start additionally enables the
// scheduled refresh and the rule file watcher.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Moderator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	m := &Moderator{
		cfg:    cfg,
		logger: logger.With("component", "moderator"),
		store:  store,
		cron:   cron.New(),
	}

	source, err := m.ruleSource()
	if err != nil {
		store.Close()
		return nil, err
	}

	m.cache, err = cache.New(cfg.Cache, source, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("building rule cache: %w", err)
	}

	m.recorder = audit.NewRecorder(cfg.Audit, store, logger)

	m.engine, err = filter.NewEngine(cfg.Filter, m.cache, logger)
	if err != nil {
		m.recorder.Close()
		store.Close()
		return nil, fmt.Errorf("building engine: %w", err)
	}
	m.engine.SetAuditSink(m.recorder)

	if cfg.Metrics.Enabled {
		m.metrics = metrics.NewCollector(metrics.Config{Namespace: cfg.Metrics.Namespace})
		m.engine.SetMetrics(m.metrics)
		m.cache.SetMetrics(m.metrics)
	}

	if cfg.Rules.Source == "file" && cfg.Rules.Watch {
		m.watcher, err = cache.NewWatcher(cfg.Rules.Path, m.cache, logger)
		if err != nil {
			m.recorder.Close()
			store.Close()
			return nil, fmt.Errorf("watching rule path: %w", err)
		}
	}

	m.health = health.New(0)
	m.health.Register("storage", func(ctx context.Context) error {
		_, err := store.ListActiveRules(ctx)
		return err
	})
	m.health.Register("rules", func(ctx context.Context) error {
		if snap := m.cache.Current(); snap != nil {
			return nil
		}
		_, err := m.cache.Refresh(ctx)
		return err
	})

	return m, nil
}

// ruleSource builds the cache source from the rules configuration.
func (m *Moderator) ruleSource() (cache.Source, error) {
	switch m.cfg.Rules.Source {
	case "", "storage":
		return cache.SourceFunc(m.store.ListActiveRules), nil
	case "file":
		return cache.NewFileSource(m.cfg.Rules.Path), nil
	default:
		return nil, fmt.Errorf("unknown rule source %q", m.cfg.Rules.Source)
	}
}

// Start enables the scheduled jobs and the rule file watcher. It does
// not block; Close stops everything it started.
func (m *Moderator) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("moderator is already running")
	}

	if schedule := m.cfg.Moderator.RefreshSchedule; schedule != "" {
		_, err := m.cron.AddFunc(schedule, func() {
			if _, err := m.cache.Refresh(context.Background()); err != nil {
				m.logger.Error("scheduled rule refresh failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
		}
	}

	if schedule := m.cfg.Moderator.StatsSchedule; schedule != "" {
		_, err := m.cron.AddFunc(schedule, func() {
			m.logStats(context.Background())
		})
		if err != nil {
			return fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
		}
	}

	m.cron.Start()

	if m.watcher != nil {
		go func() {
			if err := m.watcher.Watch(ctx); err != nil {
				m.logger.Error("rule watcher stopped", "error", err)
			}
		}()
	}

	m.running = true
	m.logger.Info("moderator started",
		"rule_source", m.cfg.Rules.Source,
		"storage_driver", m.cfg.Storage.Driver,
		"refresh_schedule", m.cfg.Moderator.RefreshSchedule,
	)
	return nil
}

// Moderate analyzes one content item and persists the result. Filtering
// never fails; a non-nil error reports a persistence problem and the
// result is still returned.
func (m *Moderator) Moderate(ctx context.Context, contentID, text string) (*filter.Result, error) {
	res := m.engine.Analyze(ctx, contentID, text)
	if err := m.store.SaveResult(ctx, res); err != nil {
		return res, &storage.DeliveryError{ContentID: contentID, Cause: err}
	}
	return res, nil
}

// ModerateBatch analyzes a batch and persists every result. The joined
// error reports items whose results could not be persisted; analysis
// results are complete regardless.
func (m *Moderator) ModerateBatch(ctx context.Context, items []filter.Item) ([]*filter.Result, error) {
	results := m.engine.AnalyzeBatch(ctx, items)

	var deliveryErrs []error
	for _, res := range results {
		if err := m.store.SaveResult(ctx, res); err != nil {
			deliveryErrs = append(deliveryErrs, &storage.DeliveryError{
				ContentID: res.ContentID,
				Cause:     err,
			})
		}
	}
	return results, errors.Join(deliveryErrs...)
}

// RefreshRules forces an immediate rule reload, bypassing the TTL.
func (m *Moderator) RefreshRules(ctx context.Context) (*cache.Snapshot, error) {
	return m.cache.Refresh(ctx)
}

// Stats summarizes moderation activity over the configured window.
func (m *Moderator) Stats(ctx context.Context) (*storage.Stats, error) {
	return m.store.Stats(ctx, m.cfg.Moderator.StatsWindow)
}

// Health runs the registered health checks.
func (m *Moderator) Health(ctx context.Context) *health.Status {
	return m.health.Run(ctx)
}

// Store exposes the backing store for rule administration.
func (m *Moderator) Store() storage.Store {
	return m.store
}

// Metrics returns the metrics collector, or nil when metrics are
// disabled.
func (m *Moderator) Metrics() *metrics.Collector {
	return m.metrics
}

// logStats emits the periodic activity summary.
func (m *Moderator) logStats(ctx context.Context) {
	stats, err := m.Stats(ctx)
	if err != nil {
		m.logger.Error("stats summary failed", "error", err)
		return
	}
	m.logger.Info("moderation activity summary",
		"window", stats.Window.String(),
		"total_items", stats.TotalItems,
		"average_severity", stats.AverageSeverity,
		"blocked", stats.ActionCounts[filter.ActionBlock],
		"flagged", stats.ActionCounts[filter.ActionFlag],
		"allowed", stats.ActionCounts[filter.ActionAllow],
	)
}

// Close stops the scheduled jobs and the watcher, drains the audit
// recorder, and closes the store. Safe to call more than once.
func (m *Moderator) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		running := m.running
		m.running = false
		m.mu.Unlock()

		if running {
			stopCtx := m.cron.Stop()
			<-stopCtx.Done()
		}
		if m.watcher != nil {
			if err := m.watcher.Stop(); err != nil {
				m.logger.Warn("stopping rule watcher", "error", err)
			}
		}

		// Drain buffered audit entries before the store goes away.
		m.recorder.Close()

		if err := m.store.Close(); err != nil {
			m.closeErr = fmt.Errorf("closing store: %w", err)
		}
		m.logger.Info("moderator stopped")
	})
	return m.closeErr
}
