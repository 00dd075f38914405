package moderator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"guardian-hq/sentinel/pkg/config"
	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Metrics.Enabled = false
	cfg.Moderator.RefreshSchedule = ""
	cfg.Moderator.StatsSchedule = ""
	return cfg
}

// newSeeded builds a moderator over a seeded in-memory store.
func newSeeded(t *testing.T, cfg *config.Config) *Moderator {
	t.Helper()

	m, err := New(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	if _, err := storage.SeedSampleRules(context.Background(), m.Store()); err != nil {
		t.Fatalf("seeding rules: %v", err)
	}
	return m
}

func TestModerator_ModerateBlocksAndPersists(t *testing.T) {
	m := newSeeded(t, testConfig())

	res, err := m.Moderate(context.Background(), "post-1", "Sign up now: guaranteed returns, no risk!!!")
	if err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}
	if res.Action != filter.ActionBlock {
		t.Errorf("action = %q, want block (severity %.2f)", res.Action, res.Severity)
	}

	mem := m.Store().(*storage.MemoryStore)
	saved := mem.Results()
	if len(saved) != 1 {
		t.Fatalf("store holds %d results, want 1", len(saved))
	}
	if saved[0].ContentID != "post-1" {
		t.Errorf("saved content id = %q", saved[0].ContentID)
	}
}

func TestModerator_ModerateAllowsCleanContent(t *testing.T) {
	m := newSeeded(t, testConfig())

	res, err := m.Moderate(context.Background(), "post-2", "Monthly portfolio review: dividends came in as expected.")
	if err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}
	if res.Action != filter.ActionAllow {
		t.Errorf("action = %q, want allow", res.Action)
	}
	if res.Severity != 0 {
		t.Errorf("severity = %v, want 0", res.Severity)
	}
}

func TestModerator_BatchPersistsEveryResult(t *testing.T) {
	m := newSeeded(t, testConfig())

	items := []filter.Item{
		{ID: "a", Text: "Guaranteed returns with no risk, act today."},
		{ID: "b", Text: "Anyone tried index funds for retirement?"},
		{ID: "c", Text: "   "},
	}
	results, err := m.ModerateBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("ModerateBatch failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[2].Err == nil || results[2].Err.Code != filter.ErrCodeEmptyContent {
		t.Errorf("item c error = %v, want empty_content", results[2].Err)
	}

	mem := m.Store().(*storage.MemoryStore)
	if got := len(mem.Results()); got != 3 {
		t.Errorf("store holds %d results, want 3", got)
	}
}

func TestModerator_RefreshPicksUpNewRule(t *testing.T) {
	m := newSeeded(t, testConfig())

	// Establish the initial snapshot.
	first, err := m.RefreshRules(context.Background())
	if err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}

	_, err = m.Store().AddRule(context.Background(), filter.Rule{
		Name:     "test-keyword",
		Type:     filter.RuleTypeKeyword,
		Pattern:  "zorblax",
		Severity: 9,
		Category: "test",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}

	snap, err := m.RefreshRules(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if len(snap.Rules) != len(first.Rules)+1 {
		t.Errorf("snapshot has %d rules, want %d", len(snap.Rules), len(first.Rules)+1)
	}
	if snap.Version == first.Version {
		t.Error("snapshot version did not change after adding a rule")
	}

	res, _ := m.Moderate(context.Background(), "post-3", "what is zorblax anyway")
	if res.Action == filter.ActionAllow {
		t.Errorf("new rule not applied, action = %q", res.Action)
	}
}

func TestModerator_StatsCoverModeratedItems(t *testing.T) {
	cfg := testConfig()
	cfg.Moderator.StatsWindow = time.Hour
	m := newSeeded(t, cfg)

	m.Moderate(context.Background(), "a", "Guaranteed returns, no risk!")
	m.Moderate(context.Background(), "b", "Quiet day in the markets.")

	stats, err := m.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalItems != 2 {
		t.Errorf("total items = %d, want 2", stats.TotalItems)
	}
	if stats.ActionCounts[filter.ActionBlock] != 1 {
		t.Errorf("blocked = %d, want 1", stats.ActionCounts[filter.ActionBlock])
	}
}

func TestModerator_HealthReportsOK(t *testing.T) {
	m := newSeeded(t, testConfig())

	status := m.Health(context.Background())
	if !status.Healthy() {
		t.Errorf("status = %+v, want healthy", status)
	}
	for _, name := range []string{"storage", "rules"} {
		if _, ok := status.Checks[name]; !ok {
			t.Errorf("missing health check %q", name)
		}
	}
}

func TestModerator_Lifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.Moderator.RefreshSchedule = "@every 1h"
	cfg.Moderator.StatsSchedule = "@hourly"
	m := newSeeded(t, cfg)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestModerator_InvalidRefreshSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Moderator.RefreshSchedule = "not a schedule"
	m := newSeeded(t, cfg)

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestModerator_UnknownRuleSource(t *testing.T) {
	cfg := testConfig()
	cfg.Rules.Source = "carrier-pigeon"

	if _, err := New(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unknown rule source")
	}
}

// failingStore breaks result persistence while leaving rule reads intact.
type failingStore struct {
	storage.Store
}

func (s *failingStore) SaveResult(ctx context.Context, res *filter.Result) error {
	return errors.New("disk full")
}

func TestModerator_DeliveryErrorStillReturnsResult(t *testing.T) {
	m := newSeeded(t, testConfig())
	m.store = &failingStore{Store: m.store}

	res, err := m.Moderate(context.Background(), "post-9", "Guaranteed returns, no risk!")
	if res == nil {
		t.Fatal("result should be returned despite delivery failure")
	}
	if res.Action != filter.ActionBlock {
		t.Errorf("action = %q, want block", res.Action)
	}
	var derr *storage.DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want DeliveryError", err)
	}
	if derr.ContentID != "post-9" {
		t.Errorf("delivery error content id = %q", derr.ContentID)
	}
}
