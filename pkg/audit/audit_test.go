package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"guardian-hq/sentinel/pkg/filter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memAppender collects appended entries and can fail on demand.
type memAppender struct {
	mu       sync.Mutex
	entries  []Entry
	failures int
	appends  int
}

func (a *memAppender) AppendAudit(ctx context.Context, entries []Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appends++
	if a.failures > 0 {
		a.failures--
		return errors.New("store unavailable")
	}
	a.entries = append(a.entries, entries...)
	return nil
}

func (a *memAppender) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func fastConfig() Config {
	return Config{
		BufferSize:     16,
		FlushInterval:  10 * time.Millisecond,
		BatchSize:      4,
		RetryAttempts:  2,
		RetryBaseDelay: time.Millisecond,
	}
}

func TestRecorder_PersistsEntries(t *testing.T) {
	app := &memAppender{}
	r := NewRecorder(fastConfig(), app, testLogger())

	r.Record(Entry{ContentID: "c1", RuleID: 1, MatchedText: "scam", At: time.Now()})
	r.Record(Entry{ContentID: "c1", RuleID: 2, MatchedText: "no risk", At: time.Now()})
	r.Close()

	if app.count() != 2 {
		t.Fatalf("appender got %d entries, want 2", app.count())
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.entries[0].ContentID != "c1" || app.entries[0].RuleID != 1 {
		t.Errorf("entry 0 = %+v", app.entries[0])
	}
}

func TestRecorder_CloseDrainsBuffer(t *testing.T) {
	app := &memAppender{}
	cfg := fastConfig()
	cfg.FlushInterval = time.Hour // only Close may flush
	r := NewRecorder(cfg, app, testLogger())

	for i := 0; i < 10; i++ {
		r.Record(Entry{ContentID: "c1", RuleID: int64(i)})
	}
	r.Close()

	if app.count() != 10 {
		t.Fatalf("appender got %d entries after Close, want 10", app.count())
	}
}

func TestRecorder_RetriesFailedAppend(t *testing.T) {
	app := &memAppender{failures: 1}
	r := NewRecorder(fastConfig(), app, testLogger())

	r.Record(Entry{ContentID: "c1", RuleID: 1})
	r.Close()

	if app.count() != 1 {
		t.Fatalf("appender got %d entries, want 1 after retry", app.count())
	}
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.appends < 2 {
		t.Errorf("appender called %d times, want at least 2", app.appends)
	}
}

func TestRecorder_BatchSizeTriggersFlush(t *testing.T) {
	app := &memAppender{}
	cfg := fastConfig()
	cfg.FlushInterval = time.Hour
	cfg.BatchSize = 3
	r := NewRecorder(cfg, app, testLogger())
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.Record(Entry{ContentID: "c1", RuleID: int64(i)})
	}

	deadline := time.Now().Add(time.Second)
	for app.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("appender got %d entries, want 3 via batch-size flush", app.count())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRecorder_RecordAfterCloseIsNoop(t *testing.T) {
	app := &memAppender{}
	r := NewRecorder(fastConfig(), app, testLogger())
	r.Close()

	// Must not panic or block.
	r.Record(Entry{ContentID: "late"})
	if app.count() != 0 {
		t.Errorf("appender got %d entries, want 0", app.count())
	}
}

func TestRecorder_RecordMatchMapsFields(t *testing.T) {
	app := &memAppender{}
	r := NewRecorder(fastConfig(), app, testLogger())

	at := time.Now()
	r.RecordMatch("c9", filter.Match{
		RuleID:     7,
		Text:       "guaranteed returns",
		Start:      3,
		End:        21,
		Confidence: 1.0,
	}, at)
	r.Close()

	if app.count() != 1 {
		t.Fatalf("appender got %d entries, want 1", app.count())
	}
	e := app.entries[0]
	if e.ContentID != "c9" || e.RuleID != 7 || e.MatchedText != "guaranteed returns" {
		t.Errorf("entry = %+v", e)
	}
	if e.Start != 3 || e.End != 21 || e.Confidence != 1.0 {
		t.Errorf("entry offsets/confidence = %+v", e)
	}
	if !e.At.Equal(at) {
		t.Errorf("entry time = %v, want %v", e.At, at)
	}
}
