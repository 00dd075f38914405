package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/filter"
)

// PostgresStore implements Store on PostgreSQL for deployments where
// several instances share one rule set and audit trail.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to the database named by cfg.DSN and
// initializes the schema.
func NewPostgresStore(ctx context.Context, cfg Config, logger *slog.Logger) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		pattern TEXT NOT NULL,
		rule_type VARCHAR(20) NOT NULL CHECK (rule_type IN ('keyword', 'regex', 'phrase')),
		severity INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 10),
		category VARCHAR(50) NOT NULL,
		description TEXT,
		ordered BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		content_id TEXT NOT NULL,
		severity DOUBLE PRECISION NOT NULL,
		action VARCHAR(20) NOT NULL,
		matches JSONB NOT NULL,
		processing_time_ms DOUBLE PRECISION NOT NULL,
		error_code VARCHAR(40),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		content_id TEXT NOT NULL,
		rule_id BIGINT NOT NULL,
		matched_text TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		offset_start INTEGER NOT NULL,
		offset_end INTEGER NOT NULL,
		at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(is_active);
	CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
	CREATE INDEX IF NOT EXISTS idx_results_action ON results(action);
	CREATE INDEX IF NOT EXISTS idx_audit_rule ON audit_log(rule_id);
	CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const pgRuleColumns = `id, name, pattern, rule_type, severity, category, COALESCE(description, ''), ordered, is_active, created_at`

// ListRules returns every rule ordered by ID.
func (s *PostgresStore) ListRules(ctx context.Context) ([]filter.Rule, error) {
	return s.queryRules(ctx, `SELECT `+pgRuleColumns+` FROM rules ORDER BY id`)
}

// ListActiveRules returns the active rules ordered by ID.
func (s *PostgresStore) ListActiveRules(ctx context.Context) ([]filter.Rule, error) {
	return s.queryRules(ctx, `SELECT `+pgRuleColumns+` FROM rules WHERE is_active ORDER BY id`)
}

func (s *PostgresStore) queryRules(ctx context.Context, query string) ([]filter.Rule, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []filter.Rule
	for rows.Next() {
		var r filter.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Pattern, &r.Type, &r.Severity,
			&r.Category, &r.Description, &r.Ordered, &r.Active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// AddRule inserts a rule and returns its assigned ID.
func (s *PostgresStore) AddRule(ctx context.Context, r filter.Rule) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO rules (name, pattern, rule_type, severity, category, description, ordered, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		r.Name, r.Pattern, string(r.Type), r.Severity, r.Category, r.Description,
		r.Ordered, r.Active, createdAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert rule: %w", err)
	}
	return id, nil
}

// SetRuleActive toggles a rule.
func (s *PostgresStore) SetRuleActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE rules SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}
	return nil
}

// SaveResult records one filtering result with its matches as JSONB.
func (s *PostgresStore) SaveResult(ctx context.Context, res *filter.Result) error {
	matches, err := json.Marshal(res.Matches)
	if err != nil {
		return fmt.Errorf("failed to encode matches: %w", err)
	}
	var errorCode *string
	if res.Err != nil {
		errorCode = &res.Err.Code
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO results (content_id, severity, action, matches, processing_time_ms, error_code)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ContentID, res.Severity, string(res.Action), matches, res.ProcessingTimeMS, errorCode)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// AppendAudit appends audit entries in one batch.
func (s *PostgresStore) AppendAudit(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO audit_log (content_id, rule_id, matched_text, confidence, offset_start, offset_end, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ContentID, e.RuleID, e.MatchedText, e.Confidence, e.Start, e.End, e.At.UTC())
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}
	return nil
}

// Stats summarizes filtering activity over the trailing window.
func (s *PostgresStore) Stats(ctx context.Context, window time.Duration) (*Stats, error) {
	since := time.Now().UTC().Add(-window)
	stats := &Stats{
		Window:         window,
		ActionCounts:   make(map[filter.Action]int64),
		RuleCounts:     make(map[int64]int64),
		CategoryCounts: make(map[string]int64),
	}

	rows, err := s.pool.Query(ctx, `
		SELECT action, COUNT(*), AVG(severity), AVG(processing_time_ms)
		FROM results WHERE created_at >= $1 GROUP BY action`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query result stats: %w", err)
	}
	defer rows.Close()

	var sumSeverity, sumProcessing float64
	for rows.Next() {
		var (
			action        string
			count         int64
			avgSeverity   float64
			avgProcessing float64
		)
		if err := rows.Scan(&action, &count, &avgSeverity, &avgProcessing); err != nil {
			return nil, fmt.Errorf("failed to scan result stats: %w", err)
		}
		stats.ActionCounts[filter.Action(action)] = count
		stats.TotalItems += count
		sumSeverity += avgSeverity * float64(count)
		sumProcessing += avgProcessing * float64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TotalItems > 0 {
		stats.AverageSeverity = sumSeverity / float64(stats.TotalItems)
		stats.AverageProcessingMS = sumProcessing / float64(stats.TotalItems)
	}

	ruleRows, err := s.pool.Query(ctx, `
		SELECT rule_id, COUNT(*)
		FROM audit_log WHERE at >= $1 GROUP BY rule_id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule stats: %w", err)
	}
	defer ruleRows.Close()

	for ruleRows.Next() {
		var (
			ruleID int64
			count  int64
		)
		if err := ruleRows.Scan(&ruleID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rule stats: %w", err)
		}
		stats.RuleCounts[ruleID] = count
	}
	if err := ruleRows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.pool.Query(ctx, `
		SELECT r.category, COUNT(*)
		FROM audit_log a JOIN rules r ON r.id = a.rule_id
		WHERE a.at >= $1 GROUP BY r.category`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query category stats: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var (
			category string
			count    int64
		)
		if err := catRows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category stats: %w", err)
		}
		stats.CategoryCounts[category] = count
	}
	return stats, catRows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
