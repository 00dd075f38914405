package storage

import (
	"context"
	"fmt"

	"guardian-hq/sentinel/pkg/filter"
)

// SampleRules returns a starter rule set for finance-community content
// moderation. It covers the common abuse categories so a fresh install
// filters something meaningful before administrators tune their own set.
func SampleRules() []filter.Rule {
	return []filter.Rule{
		{
			Name:        "profanity",
			Pattern:     "fuck|shit|bitch|asshole",
			Type:        filter.RuleTypeKeyword,
			Severity:    6,
			Category:    "profanity",
			Description: "Profane language",
			Active:      true,
		},
		{
			Name:        "offensive-language",
			Pattern:     "stupid|idiot|moron",
			Type:        filter.RuleTypeKeyword,
			Severity:    3,
			Category:    "offensive",
			Description: "Potentially offensive language",
			Active:      true,
		},
		{
			Name:        "scam-promises",
			Pattern:     "guaranteed returns|no risk",
			Type:        filter.RuleTypeRegex,
			Severity:    8,
			Category:    "scam",
			Description: "Scam indicators",
			Active:      true,
		},
		{
			Name:        "insider-trading",
			Pattern:     `insider\s+(tip|info|information)|leaked\s+information`,
			Type:        filter.RuleTypeRegex,
			Severity:    9,
			Category:    "fraud",
			Description: "Potential insider trading",
			Active:      true,
		},
		{
			Name:        "get-rich-quick",
			Pattern:     "get rich quick",
			Type:        filter.RuleTypePhrase,
			Severity:    6,
			Category:    "scam",
			Description: "Suspicious financial promises",
			Ordered:     true,
			Active:      true,
		},
		{
			Name:        "market-manipulation",
			Pattern:     `pump\s+and\s+dump|coordinate[d]?\s+buying`,
			Type:        filter.RuleTypeRegex,
			Severity:    9,
			Category:    "manipulation",
			Description: "Market manipulation indicators",
			Active:      true,
		},
		{
			Name:        "artificial-price",
			Pattern:     "artificial price",
			Type:        filter.RuleTypePhrase,
			Severity:    6,
			Category:    "manipulation",
			Description: "Suspicious trading activity",
			Active:      true,
		},
		{
			Name:        "promo-spam",
			Pattern:     "buy now|limited time|act fast",
			Type:        filter.RuleTypeKeyword,
			Severity:    3,
			Category:    "spam",
			Description: "Promotional spam indicators",
			Active:      true,
		},
		{
			Name:        "spam-links",
			Pattern:     "click here|free money",
			Type:        filter.RuleTypeKeyword,
			Severity:    3,
			Category:    "spam",
			Description: "Spammy call-to-action language",
			Active:      true,
		},
	}
}

// SeedSampleRules inserts the sample rule set and returns how many rules
// were added.
func SeedSampleRules(ctx context.Context, store Store) (int, error) {
	added := 0
	for _, r := range SampleRules() {
		if _, err := store.AddRule(ctx, r); err != nil {
			return added, fmt.Errorf("failed to seed rule %q: %w", r.Name, err)
		}
		added++
	}
	return added, nil
}
