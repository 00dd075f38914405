package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"guardian-hq/sentinel/pkg/filter"
)

func testCollector() *Collector {
	return NewCollector(Config{Namespace: "test"})
}

func TestCollector_RecordAnalysis(t *testing.T) {
	c := testCollector()

	c.RecordAnalysis(filter.ActionBlock, 0.8, 2*time.Millisecond)
	c.RecordAnalysis(filter.ActionBlock, 0.9, time.Millisecond)
	c.RecordAnalysis(filter.ActionAllow, 0.1, time.Millisecond)

	if got := testutil.ToFloat64(c.analysesTotal.WithLabelValues("block")); got != 2 {
		t.Errorf("block analyses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.analysesTotal.WithLabelValues("allow")); got != 1 {
		t.Errorf("allow analyses = %v, want 1", got)
	}
}

func TestCollector_RecordRuleHit(t *testing.T) {
	c := testCollector()

	c.RecordRuleHit(7, "scam")
	c.RecordRuleHit(7, "scam")
	c.RecordRuleHit(8, "profanity")

	if got := testutil.ToFloat64(c.ruleHitsTotal.WithLabelValues("7", "scam")); got != 2 {
		t.Errorf("rule 7 hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ruleHitsTotal.WithLabelValues("8", "profanity")); got != 1 {
		t.Errorf("rule 8 hits = %v, want 1", got)
	}
}

func TestCollector_RecordRefresh(t *testing.T) {
	c := testCollector()

	c.RecordRefresh("ok", 9, 1)
	c.RecordRefresh("stale_fallback", 0, 0)

	if got := testutil.ToFloat64(c.refreshesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok refreshes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.snapshotRules); got != 9 {
		t.Errorf("snapshot rules gauge = %v, want 9", got)
	}
	if got := testutil.ToFloat64(c.snapshotSkipped); got != 1 {
		t.Errorf("snapshot skipped gauge = %v, want 1", got)
	}

	// Fallbacks must not clobber the last good snapshot gauges.
	c.RecordRefresh("error", 0, 0)
	if got := testutil.ToFloat64(c.snapshotRules); got != 9 {
		t.Errorf("snapshot rules gauge after error = %v, want 9", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := testCollector()
	c.RecordAnalysis(filter.ActionFlag, 0.3, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "test_filter_analyses_total") {
		t.Errorf("exposition missing analyses counter:\n%s", body)
	}
}
