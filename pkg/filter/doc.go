// Package filter implements the content filtering core: rule matching,
// weighted severity scoring, and action determination for text content.
//
// The package is built from three cooperating pieces:
//
//  1. Matchers - Detect rule patterns in content (keyword, regex, phrase)
//  2. Scorer - Aggregates matches into a normalized severity and maps it to an action
//  3. Engine - Orchestrates validation, matching, scoring, auditing, and batching
//
// # Analysis Flow
//
//	text
//	      ↓
//	validate (empty / encoding checks)
//	      ↓
//	tokenize once, then run every active rule's matcher
//	      ↓
//	score matches (severity x confidence, corroboration bonus, normalize)
//	      ↓
//	map severity to allow / flag / block via configured thresholds
//
// Rules are compiled once at load time into CompiledRule values whose
// matchers are safe for concurrent use. The engine never mutates a rule
// snapshot after it receives one, which makes batch analysis trivially
// parallel and keeps every item of a batch on the same rule set.
//
// Analysis is fail-open at two granularities. A rule whose pattern does
// not compile is skipped at load time and reported, leaving the rest of
// the rule set in force. A content item that cannot be analyzed yields
// an error-marked Result with action allow rather than being dropped.
package filter
