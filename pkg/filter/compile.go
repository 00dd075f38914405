package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPhraseWindow is the token window within which all terms of a
// phrase rule must co-occur, unless overridden by CompileOptions.
const DefaultPhraseWindow = 10

// CompileOptions tunes pattern compilation.
type CompileOptions struct {
	// PhraseWindow is the co-occurrence window for phrase rules, in tokens.
	// Zero selects DefaultPhraseWindow.
	PhraseWindow int
}

func (o CompileOptions) withDefaults() CompileOptions {
	if o.PhraseWindow <= 0 {
		o.PhraseWindow = DefaultPhraseWindow
	}
	return o
}

// CompiledRule pairs a rule definition with its executable matcher.
// Compilation happens once when the rule is loaded into a snapshot, so
// patterns are never re-parsed on the per-content hot path.
type CompiledRule struct {
	Rule    Rule
	matcher Matcher
}

// Match runs the rule's matcher against preprocessed content.
func (cr CompiledRule) Match(c *Content) []Match {
	return cr.matcher.Match(c)
}

// Compile builds the matcher for a rule. A compilation failure is a
// rule-load error: the caller excludes the rule from the active set and
// reports a configuration warning, it is never surfaced per content item.
func Compile(r Rule, opts CompileOptions) (CompiledRule, error) {
	opts = opts.withDefaults()

	if strings.TrimSpace(r.Pattern) == "" {
		return CompiledRule{}, &RuleCompileError{Rule: r, Reason: "pattern is empty"}
	}
	if r.Severity < 1 || r.Severity > 10 {
		return CompiledRule{}, &RuleCompileError{
			Rule:   r,
			Reason: fmt.Sprintf("severity %d out of range [1,10]", r.Severity),
		}
	}

	var (
		m   Matcher
		err error
	)
	switch r.Type {
	case RuleTypeKeyword:
		m, err = compileKeyword(r)
	case RuleTypeRegex:
		m, err = compileRegex(r)
	case RuleTypePhrase:
		m, err = compilePhrase(r, opts.PhraseWindow)
	default:
		err = &RuleCompileError{Rule: r, Reason: fmt.Sprintf("unknown rule type %q", r.Type)}
	}
	if err != nil {
		return CompiledRule{}, err
	}

	return CompiledRule{Rule: r, matcher: m}, nil
}

// compileKeyword splits the pattern into pipe-delimited literal
// alternatives and tokenizes each one.
func compileKeyword(r Rule) (Matcher, error) {
	var alternatives [][]string
	for _, alt := range strings.Split(r.Pattern, "|") {
		tokens := tokenize(alt)
		if len(tokens) == 0 {
			return nil, &RuleCompileError{Rule: r, Reason: "empty keyword alternative"}
		}
		terms := make([]string, len(tokens))
		for i, tok := range tokens {
			terms[i] = tok.Text
		}
		alternatives = append(alternatives, terms)
	}
	return &keywordMatcher{ruleID: r.ID, alternatives: alternatives}, nil
}

// compileRegex compiles the pattern case-insensitively, once.
func compileRegex(r Rule) (Matcher, error) {
	re, err := regexp.Compile("(?i)" + r.Pattern)
	if err != nil {
		return nil, &RuleCompileError{Rule: r, Reason: err.Error(), Cause: err}
	}
	return &regexMatcher{ruleID: r.ID, re: re}, nil
}

// compilePhrase tokenizes the pattern into the term sequence.
func compilePhrase(r Rule, window int) (Matcher, error) {
	tokens := tokenize(r.Pattern)
	if len(tokens) == 0 {
		return nil, &RuleCompileError{Rule: r, Reason: "phrase has no terms"}
	}
	if len(tokens) > window {
		return nil, &RuleCompileError{
			Rule:   r,
			Reason: fmt.Sprintf("phrase has %d terms but the window is %d tokens", len(tokens), window),
		}
	}
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Text
	}
	return &phraseMatcher{ruleID: r.ID, terms: terms, window: window, ordered: r.Ordered}, nil
}

// CompileAll compiles every rule, skipping the ones that fail. Skipped
// rules are returned as errors so the caller can log configuration
// warnings; filtering proceeds with the valid remainder (fail-open per
// rule, never per request).
func CompileAll(rules []Rule, opts CompileOptions) ([]CompiledRule, []error) {
	compiled := make([]CompiledRule, 0, len(rules))
	var skipped []error

	for _, r := range rules {
		if !r.Active {
			continue
		}
		cr, err := Compile(r, opts)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		compiled = append(compiled, cr)
	}

	return compiled, skipped
}
