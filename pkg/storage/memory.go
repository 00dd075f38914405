package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guardian-hq/sentinel/pkg/audit"
	"guardian-hq/sentinel/pkg/filter"
)

// MemoryStore implements Store in process memory. It backs tests and
// ephemeral runs where nothing should outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	rules   []filter.Rule
	results []savedResult
	entries []audit.Entry
}

type savedResult struct {
	result  filter.Result
	savedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// ListRules returns every rule ordered by ID.
func (s *MemoryStore) ListRules(ctx context.Context) ([]filter.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]filter.Rule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// ListActiveRules returns the active rules ordered by ID.
func (s *MemoryStore) ListActiveRules(ctx context.Context) ([]filter.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []filter.Rule
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// AddRule inserts a rule and returns its assigned ID.
func (s *MemoryStore) AddRule(ctx context.Context, r filter.Rule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.rules = append(s.rules, r)
	return r.ID, nil
}

// SetRuleActive toggles a rule.
func (s *MemoryStore) SetRuleActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules[i].Active = active
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", ErrRuleNotFound, id)
}

// SaveResult records one filtering result.
func (s *MemoryStore) SaveResult(ctx context.Context, res *filter.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, savedResult{result: *res, savedAt: time.Now().UTC()})
	return nil
}

// AppendAudit appends audit entries.
func (s *MemoryStore) AppendAudit(ctx context.Context, entries []audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

// AuditEntries returns a copy of the audit trail, for tests.
func (s *MemoryStore) AuditEntries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Results returns a copy of the saved results, for tests.
func (s *MemoryStore) Results() []filter.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]filter.Result, len(s.results))
	for i, sr := range s.results {
		out[i] = sr.result
	}
	return out
}

// Stats summarizes filtering activity over the trailing window.
func (s *MemoryStore) Stats(ctx context.Context, window time.Duration) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := time.Now().UTC().Add(-window)
	stats := &Stats{
		Window:         window,
		ActionCounts:   make(map[filter.Action]int64),
		RuleCounts:     make(map[int64]int64),
		CategoryCounts: make(map[string]int64),
	}

	var sumSeverity, sumProcessing float64
	for _, sr := range s.results {
		if sr.savedAt.Before(since) {
			continue
		}
		stats.TotalItems++
		stats.ActionCounts[sr.result.Action]++
		sumSeverity += sr.result.Severity
		sumProcessing += sr.result.ProcessingTimeMS
	}
	if stats.TotalItems > 0 {
		stats.AverageSeverity = sumSeverity / float64(stats.TotalItems)
		stats.AverageProcessingMS = sumProcessing / float64(stats.TotalItems)
	}

	categoryByRule := make(map[int64]string, len(s.rules))
	for _, r := range s.rules {
		categoryByRule[r.ID] = r.Category
	}
	for _, e := range s.entries {
		if e.At.Before(since) {
			continue
		}
		stats.RuleCounts[e.RuleID]++
		if category, ok := categoryByRule[e.RuleID]; ok {
			stats.CategoryCounts[category]++
		}
	}

	return stats, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
