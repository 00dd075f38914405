package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/filter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openStores returns one store per backend suitable for tests.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "test.db")
	sqlite, err := NewSQLiteStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_RuleLifecycle(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			id, err := store.AddRule(ctx, filter.Rule{
				Name:        "scam",
				Pattern:     "no risk",
				Type:        filter.RuleTypeRegex,
				Severity:    8,
				Category:    "scam",
				Description: "scam indicators",
				Active:      true,
			})
			if err != nil {
				t.Fatalf("AddRule failed: %v", err)
			}
			if id == 0 {
				t.Fatal("AddRule returned zero id")
			}

			inactiveID, err := store.AddRule(ctx, filter.Rule{
				Name: "dormant", Pattern: "x", Type: filter.RuleTypeKeyword,
				Severity: 2, Category: "spam", Active: false,
			})
			if err != nil {
				t.Fatalf("AddRule failed: %v", err)
			}

			all, err := store.ListRules(ctx)
			if err != nil {
				t.Fatalf("ListRules failed: %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("ListRules returned %d rules, want 2", len(all))
			}

			active, err := store.ListActiveRules(ctx)
			if err != nil {
				t.Fatalf("ListActiveRules failed: %v", err)
			}
			if len(active) != 1 {
				t.Fatalf("ListActiveRules returned %d rules, want 1", len(active))
			}
			got := active[0]
			if got.ID != id || got.Name != "scam" || got.Type != filter.RuleTypeRegex || got.Severity != 8 {
				t.Errorf("active rule = %+v", got)
			}

			if err := store.SetRuleActive(ctx, inactiveID, true); err != nil {
				t.Fatalf("SetRuleActive failed: %v", err)
			}
			active, err = store.ListActiveRules(ctx)
			if err != nil {
				t.Fatalf("ListActiveRules failed: %v", err)
			}
			if len(active) != 2 {
				t.Errorf("got %d active rules after enable, want 2", len(active))
			}

			if err := store.SetRuleActive(ctx, 9999, false); !errors.Is(err, ErrRuleNotFound) {
				t.Errorf("SetRuleActive(9999) error = %v, want ErrRuleNotFound", err)
			}
		})
	}
}

func TestStore_ResultsAuditAndStats(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			ruleID, err := store.AddRule(ctx, filter.Rule{
				Name: "scam", Pattern: "no risk", Type: filter.RuleTypeRegex,
				Severity: 8, Category: "scam", Active: true,
			})
			if err != nil {
				t.Fatalf("AddRule failed: %v", err)
			}

			results := []*filter.Result{
				{ContentID: "c1", Severity: 0.8, Action: filter.ActionBlock,
					Matches: []filter.Match{{RuleID: ruleID, Text: "no risk", Confidence: 1.0}}, ProcessingTimeMS: 2},
				{ContentID: "c2", Severity: 0.3, Action: filter.ActionFlag,
					Matches: []filter.Match{}, ProcessingTimeMS: 1},
				{ContentID: "c3", Severity: 0, Action: filter.ActionAllow,
					Matches: []filter.Match{}, ProcessingTimeMS: 1,
					Err: &filter.ItemError{Code: filter.ErrCodeEmptyContent, Message: "empty"}},
			}
			for _, res := range results {
				if err := store.SaveResult(ctx, res); err != nil {
					t.Fatalf("SaveResult(%s) failed: %v", res.ContentID, err)
				}
			}

			profanityID, err := store.AddRule(ctx, filter.Rule{
				Name: "profanity", Pattern: "fuck", Type: filter.RuleTypeKeyword,
				Severity: 6, Category: "profanity", Active: true,
			})
			if err != nil {
				t.Fatalf("AddRule failed: %v", err)
			}

			err = store.AppendAudit(ctx, []audit.Entry{
				{ContentID: "c1", RuleID: ruleID, MatchedText: "no risk", Confidence: 1.0, Start: 0, End: 7, At: time.Now()},
				{ContentID: "c1", RuleID: ruleID, MatchedText: "no risk", Confidence: 1.0, Start: 20, End: 27, At: time.Now()},
				{ContentID: "c2", RuleID: profanityID, MatchedText: "fuck", Confidence: 1.0, Start: 0, End: 4, At: time.Now()},
			})
			if err != nil {
				t.Fatalf("AppendAudit failed: %v", err)
			}

			stats, err := store.Stats(ctx, time.Hour)
			if err != nil {
				t.Fatalf("Stats failed: %v", err)
			}
			if stats.TotalItems != 3 {
				t.Errorf("TotalItems = %d, want 3", stats.TotalItems)
			}
			if stats.ActionCounts[filter.ActionBlock] != 1 ||
				stats.ActionCounts[filter.ActionFlag] != 1 ||
				stats.ActionCounts[filter.ActionAllow] != 1 {
				t.Errorf("ActionCounts = %v", stats.ActionCounts)
			}
			wantAvg := (0.8 + 0.3 + 0) / 3
			if diff := stats.AverageSeverity - wantAvg; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("AverageSeverity = %v, want %v", stats.AverageSeverity, wantAvg)
			}
			if stats.RuleCounts[ruleID] != 2 || stats.RuleCounts[profanityID] != 1 {
				t.Errorf("RuleCounts = %v, want %d:2 %d:1", stats.RuleCounts, ruleID, profanityID)
			}
			if stats.CategoryCounts["scam"] != 2 || stats.CategoryCounts["profanity"] != 1 {
				t.Errorf("CategoryCounts = %v, want scam:2 profanity:1", stats.CategoryCounts)
			}
		})
	}
}

func TestStore_EmptyStats(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			stats, err := store.Stats(context.Background(), time.Hour)
			if err != nil {
				t.Fatalf("Stats failed: %v", err)
			}
			if stats.TotalItems != 0 || stats.AverageSeverity != 0 {
				t.Errorf("empty stats = %+v", stats)
			}
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	id, err := store.AddRule(ctx, filter.Rule{
		Name: "scam", Pattern: "no risk", Type: filter.RuleTypeRegex,
		Severity: 8, Category: "scam", Active: true,
	})
	if err != nil {
		t.Fatalf("AddRule failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteStore(cfg, testLogger())
	if err != nil {
		t.Fatalf("reopen sqlite store: %v", err)
	}
	defer reopened.Close()

	rules, err := reopened.ListActiveRules(ctx)
	if err != nil {
		t.Fatalf("ListActiveRules failed: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != id {
		t.Fatalf("reopened rules = %+v, want one rule with id %d", rules, id)
	}
}

func TestSeedSampleRules(t *testing.T) {
	store := NewMemoryStore()
	added, err := SeedSampleRules(context.Background(), store)
	if err != nil {
		t.Fatalf("SeedSampleRules failed: %v", err)
	}
	if added != len(SampleRules()) {
		t.Errorf("added %d rules, want %d", added, len(SampleRules()))
	}

	// Every sample rule must compile: a broken starter set would be
	// silently skipped at cache load.
	rules, err := store.ListActiveRules(context.Background())
	if err != nil {
		t.Fatalf("ListActiveRules failed: %v", err)
	}
	compiled, skipped := filter.CompileAll(rules, filter.CompileOptions{})
	if len(skipped) != 0 {
		t.Fatalf("sample rules failed to compile: %v", skipped)
	}
	if len(compiled) != added {
		t.Errorf("compiled %d rules, want %d", len(compiled), added)
	}
}

func TestOpen_DriverDispatch(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Driver = "memory"
	store, err := Open(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	store.Close()

	cfg.Driver = "sqlite"
	cfg.Path = filepath.Join(t.TempDir(), "open.db")
	store, err = Open(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Open(sqlite) failed: %v", err)
	}
	store.Close()

	cfg.Driver = "cassandra"
	if _, err := Open(ctx, cfg, testLogger()); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Open(cassandra) error = %v, want ErrUnknownDriver", err)
	}
}
