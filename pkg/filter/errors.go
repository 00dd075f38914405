package filter

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	// ErrNoRules indicates no rule snapshot could be obtained and no
	// last-known-good snapshot exists.
	ErrNoRules = errors.New("no rules available")

	// ErrInvalidScoring indicates invalid scoring configuration.
	ErrInvalidScoring = errors.New("invalid scoring configuration")
)

// RuleCompileError indicates a rule pattern failed to compile at load
// time. The rule is excluded from the active set; this error is reported
// as a configuration warning, never raised per content item.
type RuleCompileError struct {
	Rule   Rule
	Reason string
	Cause  error
}

// Error returns the error message.
func (e *RuleCompileError) Error() string {
	return fmt.Sprintf("rule %d (%s): compile failed: %s", e.Rule.ID, e.Rule.Name, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *RuleCompileError) Unwrap() error {
	return e.Cause
}

// ThresholdError indicates non-monotonic or out-of-range action
// thresholds. It is rejected at configuration-load time, never
// discovered mid-operation.
type ThresholdError struct {
	Flag  float64
	Block float64
}

// Error returns the error message.
func (e *ThresholdError) Error() string {
	return fmt.Sprintf("action thresholds must satisfy 0 <= flag < block <= 1, got flag=%v block=%v", e.Flag, e.Block)
}
