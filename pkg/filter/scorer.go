package filter

import (
	"fmt"
)

// ScoringConfig contains the tunable scoring parameters. None of these
// are algorithmic constants: deployments adjust them through the
// configuration surface without code changes.
type ScoringConfig struct {
	// NormalizationConstant divides the raw contribution sum before
	// capping at 1.0. It is chosen so that a single maximum-severity hit
	// does not saturate the scale but three or more do.
	// Default: 20
	NormalizationConstant float64 `yaml:"normalization_constant"`

	// CorroborationBonus is the fraction of the raw sum added once when
	// matches from two or more distinct rule types co-occur on the same
	// content. Distinct signals corroborating each other are treated as
	// stronger evidence than one rule firing repeatedly.
	// Default: 0.25
	CorroborationBonus float64 `yaml:"corroboration_bonus"`

	// FlagThreshold is the severity at which content is flagged.
	// The interval is closed at the lower bound: severity == FlagThreshold
	// yields flag, not allow.
	// Default: 0.3
	FlagThreshold float64 `yaml:"flag_threshold"`

	// BlockThreshold is the severity at which content is blocked.
	// Closed at the lower bound like FlagThreshold.
	// Default: 0.7
	BlockThreshold float64 `yaml:"block_threshold"`
}

// DefaultScoringConfig returns the documented default scoring parameters.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		NormalizationConstant: 20,
		CorroborationBonus:    0.25,
		FlagThreshold:         0.3,
		BlockThreshold:        0.7,
	}
}

// Validate rejects invalid scoring parameters at configuration-load time.
func (c ScoringConfig) Validate() error {
	if c.NormalizationConstant <= 0 {
		return fmt.Errorf("%w: normalization constant must be positive, got %v",
			ErrInvalidScoring, c.NormalizationConstant)
	}
	if c.CorroborationBonus < 0 {
		return fmt.Errorf("%w: corroboration bonus must be non-negative, got %v",
			ErrInvalidScoring, c.CorroborationBonus)
	}
	if c.FlagThreshold < 0 || c.BlockThreshold > 1 || c.FlagThreshold >= c.BlockThreshold {
		return &ThresholdError{Flag: c.FlagThreshold, Block: c.BlockThreshold}
	}
	return nil
}

// Scorer reduces a content item's match list to one severity score and
// action. Scoring is a pure, total, deterministic function of the
// matches and the rule set that produced them: identical inputs always
// yield bit-identical outputs, and adding a match never decreases the
// score.
type Scorer struct {
	cfg ScoringConfig
}

// NewScorer creates a scorer. The configuration must already be validated.
func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score aggregates matches into a normalized severity and an action.
// lookup maps rule id to the rule definition; matches referencing an
// unknown rule contribute nothing. Repeated hits of the same rule each
// add their full contribution, which is the frequency penalty: it comes
// from summation, not from an explicit formula term.
func (s *Scorer) Score(matches []Match, lookup map[int64]Rule) (float64, Action) {
	if len(matches) == 0 {
		return 0, ActionAllow
	}

	raw := 0.0
	types := make(map[RuleType]struct{}, 3)
	for _, m := range matches {
		rule, ok := lookup[m.RuleID]
		if !ok {
			continue
		}
		raw += float64(rule.Severity) * m.Confidence
		types[rule.Type] = struct{}{}
	}

	// The corroboration bonus applies exactly once per content item, no
	// matter how many rule-type pairs co-occur.
	if len(types) >= 2 {
		raw += raw * s.cfg.CorroborationBonus
	}

	severity := raw / s.cfg.NormalizationConstant
	if severity > 1.0 {
		severity = 1.0
	}

	return severity, s.ActionFor(severity)
}

// ActionFor maps a severity score to its action. Both intervals are
// closed at the lower bound: a severity exactly equal to a threshold
// takes the stricter action.
func (s *Scorer) ActionFor(severity float64) Action {
	switch {
	case severity >= s.cfg.BlockThreshold:
		return ActionBlock
	case severity >= s.cfg.FlagThreshold:
		return ActionFlag
	default:
		return ActionAllow
	}
}
