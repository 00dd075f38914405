package filter

import (
	"regexp"
)

// Matcher maps preprocessed content to the matches for a single rule.
// Matchers are pure: they hold only state compiled from the rule pattern
// at load time and never mutate it while matching.
type Matcher interface {
	// Match returns every occurrence of the rule's pattern in the content,
	// in content order. Duplicate hits of the same rule are all returned;
	// the scorer counts frequency, so nothing is deduplicated here.
	Match(c *Content) []Match
}

// keywordMatcher matches literal terms on token boundaries. The pattern
// is split into pipe-delimited alternatives; an alternative may span
// several words ("free money"), which must then appear as consecutive
// tokens. Matching a fragment of a larger word is impossible because
// comparison happens token-by-token ("ass" never fires inside "assassin").
type keywordMatcher struct {
	ruleID int64

	// alternatives holds one lowercased token sequence per alternative.
	alternatives [][]string
}

func (m *keywordMatcher) Match(c *Content) []Match {
	tokens := c.Tokens()
	var matches []Match

	for i := range tokens {
		for _, alt := range m.alternatives {
			if i+len(alt) > len(tokens) {
				continue
			}
			if !tokensEqual(tokens[i:i+len(alt)], alt) {
				continue
			}
			start := tokens[i].Start
			end := tokens[i+len(alt)-1].End
			matches = append(matches, Match{
				RuleID:     m.ruleID,
				Text:       c.Original[start:end],
				Start:      start,
				End:        end,
				Confidence: 1.0,
			})
		}
	}

	return matches
}

// tokensEqual reports whether the token run equals the term sequence.
func tokensEqual(tokens []Token, terms []string) bool {
	for i, term := range terms {
		if tokens[i].Text != term {
			return false
		}
	}
	return true
}

// regexMatcher matches a regular expression compiled once at rule load.
// The expression runs case-insensitively against the original content,
// so offsets are exact even for text whose lowercased form has a
// different byte length.
type regexMatcher struct {
	ruleID int64
	re     *regexp.Regexp
}

func (m *regexMatcher) Match(c *Content) []Match {
	spans := m.re.FindAllStringIndex(c.Original, -1)
	if len(spans) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(spans))
	for _, span := range spans {
		matches = append(matches, Match{
			RuleID:     m.ruleID,
			Text:       c.Original[span[0]:span[1]],
			Start:      span[0],
			End:        span[1],
			Confidence: 1.0,
		})
	}

	return matches
}

// phraseMatcher matches a set of terms that must co-occur within a
// bounded token window. Terms need not be contiguous, nor in pattern
// order unless the rule is order-sensitive. Confidence decreases as the
// terms spread apart inside the window and increases for repeated
// co-occurrence, modeling "looser" violations such as scam language
// smeared across a sentence.
type phraseMatcher struct {
	ruleID  int64
	terms   []string
	window  int
	ordered bool
}

func (m *phraseMatcher) Match(c *Content) []Match {
	tokens := c.Tokens()
	if len(m.terms) == 0 || len(tokens) < len(m.terms) {
		return nil
	}

	// Terms may repeat in the pattern; track required multiplicity.
	need := make(map[string]int, len(m.terms))
	for _, t := range m.terms {
		need[t]++
	}

	var matches []Match
	have := make(map[string]int, len(need))
	satisfied := 0
	l := 0

	reset := func(from int) {
		for k := range have {
			delete(have, k)
		}
		satisfied = 0
		l = from
	}

	for r := 0; r < len(tokens); r++ {
		t := tokens[r].Text
		if _, wanted := need[t]; wanted {
			have[t]++
			if have[t] == need[t] {
				satisfied++
			}
		}
		if satisfied < len(need) {
			continue
		}

		// Shrink from the left to the minimal window ending at r.
		for {
			lt := tokens[l].Text
			if n, wanted := need[lt]; wanted && have[lt] == n {
				break
			}
			if _, wanted := need[lt]; wanted {
				have[lt]--
			}
			l++
		}

		span := r - l + 1
		if span > m.window || (m.ordered && !inOrder(tokens[l:r+1], m.terms)) {
			// Window invalid: drop its leftmost required token and keep scanning.
			have[tokens[l].Text]--
			satisfied--
			l++
			continue
		}

		start := tokens[l].Start
		end := tokens[r].End
		matches = append(matches, Match{
			RuleID:     m.ruleID,
			Text:       c.Original[start:end],
			Start:      start,
			End:        end,
			Confidence: m.confidence(span, len(matches)),
		})

		// Windows never overlap: resume scanning past this one.
		reset(r + 1)
	}

	return matches
}

// inOrder reports whether the terms appear as an ordered subsequence of
// the token run.
func inOrder(tokens []Token, terms []string) bool {
	next := 0
	for _, tok := range tokens {
		if next < len(terms) && tok.Text == terms[next] {
			next++
		}
	}
	return next == len(terms)
}

// confidence computes the confidence of the k-th (0-based) window found
// for this rule. A perfectly tight window scores 1.0; confidence decays
// linearly with spread down to a floor of 0.5 at the window bound, and
// each repeated co-occurrence recovers 0.1, capped at 1.0.
func (m *phraseMatcher) confidence(span, priorWindows int) float64 {
	minSpan := len(m.terms)
	conf := 1.0
	if m.window > minSpan && span > minSpan {
		spread := float64(span-minSpan) / float64(m.window-minSpan)
		conf = 1.0 - 0.5*spread
	}
	conf += 0.1 * float64(priorWindows)
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
