package filter

import (
	"time"
)

// RuleType identifies how a rule's pattern is interpreted by the matcher.
type RuleType string

const (
	// RuleTypeKeyword matches literal terms (pipe-delimited alternatives)
	// on token boundaries, case-insensitively.
	RuleTypeKeyword RuleType = "keyword"

	// RuleTypeRegex matches a regular expression compiled once at rule load.
	RuleTypeRegex RuleType = "regex"

	// RuleTypePhrase matches an ordered-or-unordered set of terms
	// co-occurring within a bounded token window.
	RuleTypePhrase RuleType = "phrase"
)

// Action is the discrete moderation outcome derived from the severity score.
type Action string

const (
	// ActionAllow passes the content through unchanged.
	ActionAllow Action = "allow"

	// ActionFlag marks the content for moderator review.
	ActionFlag Action = "flag"

	// ActionBlock rejects the content outright.
	ActionBlock Action = "block"
)

// Rule is an immutable policy definition. Rules are created by an
// administrative process, loaded from a rule source, and never mutated
// by a filtering pass; updates become visible on the next cache refresh.
type Rule struct {
	// ID uniquely identifies the rule.
	ID int64 `yaml:"id" json:"id"`

	// Name is a short human-readable identifier (e.g. "profanity-keywords").
	Name string `yaml:"name" json:"name"`

	// Pattern is the matchable pattern. Its interpretation depends on Type:
	// pipe-delimited literals for keyword rules, a regular expression for
	// regex rules, a whitespace-separated term sequence for phrase rules.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Type selects the matching strategy.
	Type RuleType `yaml:"type" json:"rule_type"`

	// Severity is the rule's severity level, 1 (mild) through 10 (severe).
	Severity int `yaml:"severity" json:"severity_level"`

	// Category groups rules for reporting (profanity, scam, fraud, spam, ...).
	Category string `yaml:"category" json:"category"`

	// Description explains the rule for audit reports.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Ordered applies to phrase rules only: when true, the terms must
	// appear in pattern order inside the window.
	Ordered bool `yaml:"ordered,omitempty" json:"ordered,omitempty"`

	// Active controls whether the rule participates in filtering.
	Active bool `yaml:"active" json:"is_active"`

	// CreatedAt is when the rule was created by its administrator.
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}

// Match is a single detected occurrence of a rule's pattern within content.
// Matches are write-once: they are created during one filtering pass and
// never mutated afterwards. Offsets index the ORIGINAL content string.
type Match struct {
	// RuleID references the rule that fired.
	RuleID int64 `json:"rule_id"`

	// Text is the matched substring taken from the original content.
	Text string `json:"matched_text"`

	// Start is the byte offset of the first matched byte.
	Start int `json:"offset_start"`

	// End is the byte offset one past the last matched byte.
	End int `json:"offset_end"`

	// Confidence is in [0,1]. Keyword and regex hits are always 1.0;
	// phrase hits scale with term proximity inside the window.
	Confidence float64 `json:"confidence"`
}

// ItemError marks a content item whose analysis failed. The item fails
// open: its result carries severity 0 and action allow, with the error
// attached so the caller can distinguish "clean" from "unanalyzable".
type ItemError struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Error returns the error message.
func (e *ItemError) Error() string {
	return e.Code + ": " + e.Message
}

// Stable per-item error codes.
const (
	// ErrCodeEmptyContent marks an empty or whitespace-only content item.
	ErrCodeEmptyContent = "empty_content"

	// ErrCodeInvalidEncoding marks content that is not valid UTF-8.
	ErrCodeInvalidEncoding = "invalid_encoding"

	// ErrCodeCancelled marks a batch item skipped due to caller cancellation.
	ErrCodeCancelled = "cancelled"

	// ErrCodeRulesUnavailable marks an item analyzed while no rule
	// snapshot could be obtained at all (no last-known-good either).
	ErrCodeRulesUnavailable = "rules_unavailable"
)

// Result is the outcome of one filtering pass over one content item.
// It is owned by the engine for the duration of the call and immutable
// after creation.
type Result struct {
	// ContentID correlates the result with the analyzed content item.
	ContentID string `json:"content_id"`

	// Severity is the normalized aggregate risk score in [0,1].
	Severity float64 `json:"severity"`

	// Action is the moderation outcome derived from Severity.
	Action Action `json:"action"`

	// Matches lists every match found, in rule evaluation order. Matches
	// from the same rule keep their in-content order.
	Matches []Match `json:"matches"`

	// ProcessingTimeMS is the wall-clock analysis time in milliseconds.
	// It is the only non-deterministic field of a result.
	ProcessingTimeMS float64 `json:"processing_time_ms"`

	// Err is the per-item error marker, nil for successfully analyzed items.
	Err *ItemError `json:"error,omitempty"`
}

// Item is one unit of content submitted for analysis.
type Item struct {
	// ID correlates results and audit entries with the content.
	ID string `json:"content_id"`

	// Text is the UTF-8 content to analyze.
	Text string `json:"text"`
}
