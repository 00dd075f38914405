package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RuleProvider supplies the active compiled rule set to the engine.
// Implementations must return a consistent, immutable snapshot: the
// returned slice is read concurrently by in-flight analyses and must
// never be mutated after it is handed out.
type RuleProvider interface {
	// ActiveRules returns the current active rule snapshot, refreshing it
	// if stale. A stale-but-usable snapshot is preferred over an error.
	ActiveRules(ctx context.Context) ([]CompiledRule, error)
}

// AuditSink receives every match the engine finds, regardless of the
// final action. Appends must not block the analysis hot path; sinks
// buffer internally and retry delivery on their own.
type AuditSink interface {
	RecordMatch(contentID string, m Match, at time.Time)
}

// MetricsRecorder receives per-analysis observations. A nil recorder
// disables instrumentation.
type MetricsRecorder interface {
	// RecordAnalysis records one completed analysis.
	RecordAnalysis(action Action, severity float64, d time.Duration)

	// RecordRuleHit records one rule firing (once per match).
	RecordRuleHit(ruleID int64, ruleName string)
}

// Config contains engine configuration.
type Config struct {
	// Scoring holds the tunable scoring parameters.
	Scoring ScoringConfig `yaml:"scoring"`

	// Concurrency bounds the batch worker pool. Zero selects the default.
	// Default: 4
	Concurrency int `yaml:"concurrency"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Scoring:     DefaultScoringConfig(),
		Concurrency: 4,
	}
}

// Engine is the public entry point of the filtering core. It is
// stateless per call: concurrent Analyze calls share only the rule
// snapshot (read-only) and the audit sink (append-only), so no locking
// happens on the hot path.
type Engine struct {
	provider RuleProvider
	scorer   *Scorer
	logger   *slog.Logger

	audit       AuditSink
	metrics     MetricsRecorder
	concurrency int
}

// NewEngine creates a filtering engine. The scoring configuration is
// validated here so threshold mistakes surface at startup, not
// mid-operation.
func NewEngine(cfg Config, provider RuleProvider, logger *slog.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("rule provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConfig().Concurrency
	}

	return &Engine{
		provider:    provider,
		scorer:      NewScorer(cfg.Scoring),
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// SetAuditSink attaches the audit sink. Call before serving traffic.
func (e *Engine) SetAuditSink(sink AuditSink) {
	e.audit = sink
}

// SetMetrics attaches the metrics recorder. Call before serving traffic.
func (e *Engine) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// Analyze runs one content item through every active rule and scores
// the findings. It always returns a result: analysis failures yield an
// error-marked result with action allow (fail-open), never a dropped
// item. Shared rule state is never mutated.
func (e *Engine) Analyze(ctx context.Context, contentID, text string) *Result {
	rules, err := e.provider.ActiveRules(ctx)
	if err != nil {
		e.logger.Error("rule snapshot unavailable", "content_id", contentID, "error", err)
		return e.errorResult(contentID, &ItemError{
			Code:    ErrCodeRulesUnavailable,
			Message: err.Error(),
		}, time.Now())
	}
	return e.analyzeWith(ctx, rules, contentID, text)
}

// analyzeWith analyzes one item against a fixed snapshot. Batches call
// this directly so every item of a batch observes the same snapshot.
func (e *Engine) analyzeWith(ctx context.Context, rules []CompiledRule, contentID, text string) *Result {
	start := time.Now()

	if itemErr := validateText(text); itemErr != nil {
		return e.errorResult(contentID, itemErr, start)
	}

	content := NewContent(text)
	lookup := make(map[int64]Rule, len(rules))

	matches := []Match{}
	for _, cr := range rules {
		lookup[cr.Rule.ID] = cr.Rule
		for _, m := range cr.Match(content) {
			matches = append(matches, m)
			if e.audit != nil {
				e.audit.RecordMatch(contentID, m, time.Now())
			}
			if e.metrics != nil {
				e.metrics.RecordRuleHit(cr.Rule.ID, cr.Rule.Name)
			}
		}
	}

	severity, action := e.scorer.Score(matches, lookup)
	elapsed := time.Since(start)

	if e.metrics != nil {
		e.metrics.RecordAnalysis(action, severity, elapsed)
	}
	e.logger.Debug("content analyzed",
		"content_id", contentID,
		"severity", severity,
		"action", action,
		"match_count", len(matches),
		"rule_count", len(rules),
	)

	return &Result{
		ContentID:        contentID,
		Severity:         severity,
		Action:           action,
		Matches:          matches,
		ProcessingTimeMS: float64(elapsed.Microseconds()) / 1000.0,
	}
}

// AnalyzeBatch analyzes every item in order. Items are independent, so
// the batch fans out across a bounded worker pool; the returned slice
// matches the input order exactly. One rule snapshot is acquired up
// front and used for every item, so a cache refresh occurring mid-batch
// never changes the rule set observed by in-flight items. One item's
// failure never aborts the batch: the item gets an error-marked result
// and processing continues. Cancelling ctx stops scheduling new items;
// already-finished results are kept and the remainder are marked
// cancelled.
func (e *Engine) AnalyzeBatch(ctx context.Context, items []Item) []*Result {
	results := make([]*Result, len(items))
	if len(items) == 0 {
		return results
	}

	rules, err := e.provider.ActiveRules(ctx)
	if err != nil {
		e.logger.Error("rule snapshot unavailable for batch", "items", len(items), "error", err)
		now := time.Now()
		for i, item := range items {
			results[i] = e.errorResult(item.ID, &ItemError{
				Code:    ErrCodeRulesUnavailable,
				Message: err.Error(),
			}, now)
		}
		return results
	}

	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

dispatch:
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.analyzeWith(ctx, rules, items[idx].ID, items[idx].Text)
		}(i)
	}

	wg.Wait()

	// Mark anything that was never scheduled due to cancellation.
	for i, item := range items {
		if results[i] == nil {
			results[i] = e.errorResult(item.ID, &ItemError{
				Code:    ErrCodeCancelled,
				Message: "batch cancelled before this item was analyzed",
			}, time.Now())
		}
	}

	return results
}

// errorResult builds the fail-open marker result for an unanalyzable item.
func (e *Engine) errorResult(contentID string, itemErr *ItemError, start time.Time) *Result {
	e.logger.Warn("analysis error",
		"content_id", contentID,
		"code", itemErr.Code,
		"error", itemErr.Message,
	)
	return &Result{
		ContentID:        contentID,
		Severity:         0,
		Action:           ActionAllow,
		Matches:          []Match{},
		ProcessingTimeMS: float64(time.Since(start).Microseconds()) / 1000.0,
		Err:              itemErr,
	}
}
