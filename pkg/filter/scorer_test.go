package filter

import (
	"math"
	"testing"
)

// TestScorer_ScamRegexScenario walks the canonical scoring example: two
// regex hits of severity 8 yield raw 16, normalized 0.8, action block.
func TestScorer_ScamRegexScenario(t *testing.T) {
	rule := Rule{
		ID:       1,
		Name:     "scam-regex",
		Pattern:  "guaranteed returns|no risk",
		Type:     RuleTypeRegex,
		Severity: 8,
		Active:   true,
	}
	cr := mustCompile(t, rule, CompileOptions{})

	matches := cr.Match(NewContent("guaranteed returns, no risk!!!"))
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(matches), matches)
	}
	for i, m := range matches {
		if m.Confidence != 1.0 {
			t.Errorf("match %d confidence = %v, want 1.0", i, m.Confidence)
		}
	}

	scorer := NewScorer(DefaultScoringConfig())
	severity, action := scorer.Score(matches, map[int64]Rule{1: rule})
	if math.Abs(severity-0.8) > 1e-9 {
		t.Errorf("severity = %v, want 0.8", severity)
	}
	if action != ActionBlock {
		t.Errorf("action = %q, want %q", action, ActionBlock)
	}
}

// TestScorer_ProfanityBoundaryScenario: one keyword hit of severity 6
// lands exactly on the flag threshold, which is closed at the lower bound.
func TestScorer_ProfanityBoundaryScenario(t *testing.T) {
	rule := Rule{
		ID:       2,
		Name:     "profanity",
		Pattern:  "fuck|shit|damn",
		Type:     RuleTypeKeyword,
		Severity: 6,
		Active:   true,
	}
	cr := mustCompile(t, rule, CompileOptions{})

	matches := cr.Match(NewContent("fuck this company"))
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1: %+v", len(matches), matches)
	}

	scorer := NewScorer(DefaultScoringConfig())
	severity, action := scorer.Score(matches, map[int64]Rule{2: rule})
	if math.Abs(severity-0.3) > 1e-9 {
		t.Errorf("severity = %v, want 0.3", severity)
	}
	if action != ActionFlag {
		t.Errorf("action = %q, want %q", action, ActionFlag)
	}
}

func TestScorer_ActionBoundaries(t *testing.T) {
	scorer := NewScorer(DefaultScoringConfig())
	tests := []struct {
		severity float64
		want     Action
	}{
		{0.0, ActionAllow},
		{0.29999, ActionAllow},
		{0.3, ActionFlag},
		{0.5, ActionFlag},
		{0.69999, ActionFlag},
		{0.7, ActionBlock},
		{1.0, ActionBlock},
	}
	for _, tt := range tests {
		if got := scorer.ActionFor(tt.severity); got != tt.want {
			t.Errorf("ActionFor(%v) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

// TestScorer_CorroborationBonusOnce verifies the bonus is applied exactly
// once when two or more rule types co-occur, regardless of type count.
func TestScorer_CorroborationBonusOnce(t *testing.T) {
	lookup := map[int64]Rule{
		1: {ID: 1, Type: RuleTypeKeyword, Severity: 4},
		2: {ID: 2, Type: RuleTypeRegex, Severity: 4},
		3: {ID: 3, Type: RuleTypePhrase, Severity: 4},
	}
	scorer := NewScorer(DefaultScoringConfig())

	single, _ := scorer.Score([]Match{
		{RuleID: 1, Confidence: 1.0},
		{RuleID: 1, Confidence: 1.0},
	}, lookup)
	if math.Abs(single-0.4) > 1e-9 {
		t.Errorf("single-type severity = %v, want 0.4 (no bonus)", single)
	}

	twoTypes, _ := scorer.Score([]Match{
		{RuleID: 1, Confidence: 1.0},
		{RuleID: 2, Confidence: 1.0},
	}, lookup)
	want := (8.0 * 1.25) / 20.0
	if math.Abs(twoTypes-want) > 1e-9 {
		t.Errorf("two-type severity = %v, want %v", twoTypes, want)
	}
	if twoTypes <= single {
		t.Errorf("corroborated score %v not above single-type score %v", twoTypes, single)
	}

	// A third type does not stack a second bonus.
	threeTypes, _ := scorer.Score([]Match{
		{RuleID: 1, Confidence: 1.0},
		{RuleID: 2, Confidence: 1.0},
		{RuleID: 3, Confidence: 1.0},
	}, lookup)
	want = (12.0 * 1.25) / 20.0
	if math.Abs(threeTypes-want) > 1e-9 {
		t.Errorf("three-type severity = %v, want %v (bonus applied once)", threeTypes, want)
	}
}

// TestScorer_Monotonic verifies adding a match never decreases severity.
func TestScorer_Monotonic(t *testing.T) {
	lookup := map[int64]Rule{
		1: {ID: 1, Type: RuleTypeKeyword, Severity: 3},
		2: {ID: 2, Type: RuleTypeRegex, Severity: 5},
	}
	scorer := NewScorer(DefaultScoringConfig())

	var matches []Match
	prev := 0.0
	add := []Match{
		{RuleID: 1, Confidence: 1.0},
		{RuleID: 1, Confidence: 0.5},
		{RuleID: 2, Confidence: 0.7},
		{RuleID: 2, Confidence: 1.0},
		{RuleID: 1, Confidence: 1.0},
	}
	for i, m := range add {
		matches = append(matches, m)
		severity, _ := scorer.Score(matches, lookup)
		if severity < prev {
			t.Fatalf("severity decreased from %v to %v after match %d", prev, severity, i)
		}
		prev = severity
	}
}

func TestScorer_SaturatesAtOne(t *testing.T) {
	lookup := map[int64]Rule{1: {ID: 1, Type: RuleTypeKeyword, Severity: 10}}
	scorer := NewScorer(DefaultScoringConfig())

	matches := make([]Match, 5)
	for i := range matches {
		matches[i] = Match{RuleID: 1, Confidence: 1.0}
	}
	severity, action := scorer.Score(matches, lookup)
	if severity != 1.0 {
		t.Errorf("severity = %v, want 1.0", severity)
	}
	if action != ActionBlock {
		t.Errorf("action = %q, want %q", action, ActionBlock)
	}
}

func TestScorer_NoMatches(t *testing.T) {
	scorer := NewScorer(DefaultScoringConfig())
	severity, action := scorer.Score(nil, map[int64]Rule{})
	if severity != 0 {
		t.Errorf("severity = %v, want 0", severity)
	}
	if action != ActionAllow {
		t.Errorf("action = %q, want %q", action, ActionAllow)
	}
}

func TestScoringConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScoringConfig)
		wantErr bool
	}{
		{"defaults valid", func(c *ScoringConfig) {}, false},
		{"zero normalization", func(c *ScoringConfig) { c.NormalizationConstant = 0 }, true},
		{"negative bonus", func(c *ScoringConfig) { c.CorroborationBonus = -0.1 }, true},
		{"flag above block", func(c *ScoringConfig) { c.FlagThreshold = 0.8 }, true},
		{"flag equals block", func(c *ScoringConfig) { c.FlagThreshold = 0.7 }, true},
		{"block above one", func(c *ScoringConfig) { c.BlockThreshold = 1.1 }, true},
		{"negative flag", func(c *ScoringConfig) { c.FlagThreshold = -0.1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScoringConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
