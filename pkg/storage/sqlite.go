package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/filter"
)

// SQLiteStore implements Store on a local SQLite file. It uses WAL mode
// for concurrent readers and checkpoints the log periodically in the
// background.
type SQLiteStore struct {
	db        *sql.DB
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once

	insertRuleStmt  *sql.Stmt
	setActiveStmt   *sql.Stmt
	saveResultStmt  *sql.Stmt
	appendAuditStmt *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) the SQLite database at
// cfg.Path and initializes the schema.
func NewSQLiteStore(cfg Config, logger *slog.Logger) (*SQLiteStore, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go s.checkpointLoop(cfg.CheckpointInterval)

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		pattern TEXT NOT NULL,
		rule_type TEXT NOT NULL CHECK (rule_type IN ('keyword', 'regex', 'phrase')),
		severity INTEGER NOT NULL CHECK (severity BETWEEN 1 AND 10),
		category TEXT NOT NULL,
		description TEXT,
		ordered INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_id TEXT NOT NULL,
		severity REAL NOT NULL,
		action TEXT NOT NULL,
		matches TEXT NOT NULL,
		processing_time_ms REAL NOT NULL,
		error_code TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_id TEXT NOT NULL,
		rule_id INTEGER NOT NULL,
		matched_text TEXT NOT NULL,
		confidence REAL NOT NULL,
		offset_start INTEGER NOT NULL,
		offset_end INTEGER NOT NULL,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rules_active ON rules(is_active);
	CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
	CREATE INDEX IF NOT EXISTS idx_results_action ON results(action);
	CREATE INDEX IF NOT EXISTS idx_audit_rule ON audit_log(rule_id);
	CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertRuleStmt, err = s.db.Prepare(`
		INSERT INTO rules (name, pattern, rule_type, severity, category, description, ordered, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert rule: %w", err)
	}

	s.setActiveStmt, err = s.db.Prepare(`UPDATE rules SET is_active = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare set active: %w", err)
	}

	s.saveResultStmt, err = s.db.Prepare(`
		INSERT INTO results (content_id, severity, action, matches, processing_time_ms, error_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare save result: %w", err)
	}

	s.appendAuditStmt, err = s.db.Prepare(`
		INSERT INTO audit_log (content_id, rule_id, matched_text, confidence, offset_start, offset_end, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append audit: %w", err)
	}

	return nil
}

// checkpointLoop periodically checkpoints the WAL to bound its size.
func (s *SQLiteStore) checkpointLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if _, err := s.db.Exec(`PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
				s.logger.Warn("WAL checkpoint failed", "error", err)
			}
		}
	}
}

const ruleColumns = `id, name, pattern, rule_type, severity, category, COALESCE(description, ''), ordered, is_active, created_at`

// ListRules returns every rule ordered by ID.
func (s *SQLiteStore) ListRules(ctx context.Context) ([]filter.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY id`)
}

// ListActiveRules returns the active rules ordered by ID.
func (s *SQLiteStore) ListActiveRules(ctx context.Context) ([]filter.Rule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE is_active = 1 ORDER BY id`)
}

func (s *SQLiteStore) queryRules(ctx context.Context, query string) ([]filter.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []filter.Rule
	for rows.Next() {
		var (
			r         filter.Rule
			ordered   int
			active    int
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Pattern, &r.Type, &r.Severity,
			&r.Category, &r.Description, &ordered, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Ordered = ordered != 0
		r.Active = active != 0
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// AddRule inserts a rule and returns its assigned ID.
func (s *SQLiteStore) AddRule(ctx context.Context, r filter.Rule) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.insertRuleStmt.ExecContext(ctx,
		r.Name, r.Pattern, string(r.Type), r.Severity, r.Category, r.Description,
		boolToInt(r.Ordered), boolToInt(r.Active), createdAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert rule: %w", err)
	}
	return res.LastInsertId()
}

// SetRuleActive toggles a rule.
func (s *SQLiteStore) SetRuleActive(ctx context.Context, id int64, active bool) error {
	res, err := s.setActiveStmt.ExecContext(ctx, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
	}
	return nil
}

// SaveResult records one filtering result. Matches are stored as JSON.
func (s *SQLiteStore) SaveResult(ctx context.Context, res *filter.Result) error {
	matches, err := json.Marshal(res.Matches)
	if err != nil {
		return fmt.Errorf("failed to encode matches: %w", err)
	}
	var errorCode sql.NullString
	if res.Err != nil {
		errorCode = sql.NullString{String: res.Err.Code, Valid: true}
	}
	_, err = s.saveResultStmt.ExecContext(ctx,
		res.ContentID, res.Severity, string(res.Action), string(matches),
		res.ProcessingTimeMS, errorCode, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// AppendAudit appends audit entries in one transaction.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.appendAuditStmt)
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.ContentID, e.RuleID, e.MatchedText, e.Confidence,
			e.Start, e.End, e.At.UTC().UnixNano()); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}
	}
	return tx.Commit()
}

// Stats summarizes filtering activity over the trailing window.
func (s *SQLiteStore) Stats(ctx context.Context, window time.Duration) (*Stats, error) {
	since := time.Now().UTC().Add(-window)
	stats := &Stats{
		Window:         window,
		ActionCounts:   make(map[filter.Action]int64),
		RuleCounts:     make(map[int64]int64),
		CategoryCounts: make(map[string]int64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*), AVG(severity), AVG(processing_time_ms)
		FROM results WHERE created_at >= ? GROUP BY action`, since.Unix())
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

	ruleRows, err := s.db.QueryContext(ctx, `
		SELECT rule_id, COUNT(*)
		FROM audit_log WHERE at >= ? GROUP BY rule_id`, since.UnixNano())
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

	catRows, err := s.db.QueryContext(ctx, `
		SELECT r.category, COUNT(*)
		FROM audit_log a JOIN rules r ON r.id = a.rule_id
		WHERE a.at >= ? GROUP BY r.category`, since.UnixNano())
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

// Close stops the checkpoint loop and closes the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		for _, stmt := range []*sql.Stmt{s.insertRuleStmt, s.setActiveStmt, s.saveResultStmt, s.appendAuditStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
