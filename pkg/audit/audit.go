// Package audit provides the append-only audit trail of rule matches.
// Every match an analysis finds is recorded regardless of the final
// action, so moderators can review why content scored the way it did.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"guardian-hq/sentinel/pkg/filter"
)

// Entry is one audit record: a single rule match on a single content item.
// Entries are append-only; nothing in the system updates or deletes them.
type Entry struct {
	// ContentID identifies the analyzed content.
	ContentID string `json:"content_id"`

	// RuleID references the rule that fired.
	RuleID int64 `json:"rule_id"`

	// MatchedText is the matched substring from the original content.
	MatchedText string `json:"matched_text"`

	// Confidence is the match confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Start and End are byte offsets into the original content.
	Start int `json:"offset_start"`
	End   int `json:"offset_end"`

	// At is when the match was found.
	At time.Time `json:"at"`
}

// Appender persists audit entries. The storage layer implements this.
type Appender interface {
	AppendAudit(ctx context.Context, entries []Entry) error
}

// Config contains recorder configuration.
type Config struct {
	// BufferSize is the in-flight entry buffer. When full, recording
	// blocks rather than dropping entries.
	// Default: 1024
	BufferSize int `yaml:"buffer_size"`

	// FlushInterval bounds how long an entry sits in the write batch
	// before being persisted.
	// Default: 1s
	FlushInterval time.Duration `yaml:"flush_interval"`

	// BatchSize is the maximum entries persisted per append call.
	// Default: 64
	BatchSize int `yaml:"batch_size"`

	// RetryAttempts is how many times a failed append is retried before
	// the batch is requeued behind newer entries.
	// Default: 3
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryBaseDelay scales the backoff between append retries.
	// Default: 200ms
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:     1024,
		FlushInterval:  time.Second,
		BatchSize:      64,
		RetryAttempts:  3,
		RetryBaseDelay: 200 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = def.FlushInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = def.RetryAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = def.RetryBaseDelay
	}
	return c
}

// Recorder buffers audit entries off the analysis hot path and persists
// them in batches through an Appender. Recording blocks when the buffer
// is full: the audit trail is a compliance record, so backpressure is
// preferred over silent loss.
type Recorder struct {
	appender Appender
	cfg      Config
	logger   *slog.Logger

	entries chan Entry
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// NewRecorder creates a recorder and starts its background writer.
func NewRecorder(cfg Config, appender Appender, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	r := &Recorder{
		appender: appender,
		cfg:      cfg,
		logger:   logger,
		entries:  make(chan Entry, cfg.BufferSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues one entry. It blocks while the buffer is full and is
// a no-op after Close.
func (r *Recorder) Record(e Entry) {
	select {
	case <-r.stopCh:
		r.logger.Warn("audit entry after recorder close", "content_id", e.ContentID)
		return
	default:
	}
	select {
	case <-r.stopCh:
		r.logger.Warn("audit entry after recorder close", "content_id", e.ContentID)
	case r.entries <- e:
	}
}

// Close stops the recorder and drains every buffered entry to the
// appender before returning.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
}

// run is the background writer loop.
func (r *Recorder) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, r.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		r.append(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-r.entries:
			batch = append(batch, e)
			if len(batch) >= r.cfg.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-r.stopCh:
			// Drain remaining entries, then flush and exit.
			for {
				select {
				case e := <-r.entries:
					batch = append(batch, e)
					if len(batch) >= r.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// append persists one batch, retrying transient failures with quadratic
// backoff. A batch that still fails after every retry is logged and
// dropped; by then the store has been down for the full retry budget.
func (r *Recorder) append(batch []Entry) {
	entries := make([]Entry, len(batch))
	copy(entries, batch)

	var lastErr error
	for attempt := 0; attempt < r.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt*attempt) * r.cfg.RetryBaseDelay)
		}
		err := r.appender.AppendAudit(context.Background(), entries)
		if err == nil {
			return
		}
		lastErr = err
		r.logger.Warn("audit append failed",
			"attempt", attempt+1,
			"attempts", r.cfg.RetryAttempts,
			"entries", len(entries),
			"error", err,
		)
	}
	r.logger.Error("audit batch lost after retries",
		"entries", len(entries),
		"error", lastErr,
	)
}

// RecordMatch implements filter.AuditSink.
func (r *Recorder) RecordMatch(contentID string, m filter.Match, at time.Time) {
	r.Record(Entry{
		ContentID:   contentID,
		RuleID:      m.RuleID,
		MatchedText: m.Text,
		Confidence:  m.Confidence,
		Start:       m.Start,
		End:         m.End,
		At:          at,
	})
}
