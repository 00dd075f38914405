package generate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// TemplateProvider generates content from canned finance-community
// templates. It needs no network or credentials, so it is the fallback
// of last resort and the default for offline use.
type TemplateProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewTemplateProvider creates the provider with the given random seed.
func NewTemplateProvider(seed int64) *TemplateProvider {
	return &TemplateProvider{rng: rand.New(rand.NewSource(seed))}
}

// Name identifies the provider.
func (p *TemplateProvider) Name() string { return "template" }

// Available always reports true.
func (p *TemplateProvider) Available(ctx context.Context) bool { return true }

// Generate ignores the prompt text and keys off the category marker the
// generator embeds in it.
func (p *TemplateProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	category := CategorySafe
	for _, c := range Categories() {
		if strings.Contains(prompt, string(c)) {
			category = c
		}
	}
	return p.ForCategory(category), nil
}

// ForCategory produces one post of the given category.
func (p *TemplateProvider) ForCategory(category Category) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var templates []string
	switch category {
	case CategoryMild:
		templates = mildTemplates
	case CategoryModerate:
		templates = moderateTemplates
	case CategorySevere:
		templates = severeTemplates
	default:
		templates = safeTemplates
	}

	template := templates[p.rng.Intn(len(templates))]
	return p.fill(template)
}

// fill substitutes every {placeholder} in the template.
func (p *TemplateProvider) fill(template string) string {
	out := template
	for key, values := range placeholders {
		marker := "{" + key + "}"
		for strings.Contains(out, marker) {
			out = strings.Replace(out, marker, values[p.rng.Intn(len(values))], 1)
		}
	}
	return out
}

var safeTemplates = []string{
	"Just completed my {topic} analysis for {detail}. The numbers look promising this quarter.",
	"Looking for advice on {topic}. Has anyone tried {detail} strategies?",
	"Monthly {topic} update: {detail} improved by {percent}% compared to last month.",
	"Sharing my {topic} experience with {detail}. Key lesson: patience pays off.",
	"Question about {topic}: how do you approach {detail} in volatile markets?",
	"Weekly {topic} review: {detail} performance exceeded expectations.",
}

var mildTemplates = []string{
	"URGENT: {detail} rates are skyrocketing! Act fast or lose thousands!",
	"Secret {topic} strategy that banks hide from you! Limited time offer, DM me.",
	"I made ${amount} in one day with this {topic} method. Buy now before it's gone!",
	"Exclusive {detail} opportunity available for the next 24 hours only! Click here!",
	"Proven {topic} system beats the market. Limited time, act fast!",
}

var moderateTemplates = []string{
	"Selling guaranteed returns of {percent}% monthly. No risk, all reward. Contact me privately.",
	"Insider tip on {detail}: it's about to explode. Buy before the announcement.",
	"Pump and dump group forming for {detail}. Coordinate buying to drive up the price.",
	"Leaked information from a major {topic} desk. Get in before they remove it.",
	"Get rich quick with my {topic} program. Guaranteed returns, no risk at all.",
}

var severeTemplates = []string{
	"Fuck the regulators. Guaranteed returns, no risk, insider tip straight from the desk. Act fast!",
	"This is not a scam, I swear: guaranteed returns on {detail}, pump and dump coordinated buying, free money for early joiners.",
	"Leaked information plus insider tips on {detail}. Guaranteed returns. Wire money today, no risk whatsoever.",
}

var placeholders = map[string][]string{
	"topic":   {"dividend investing", "index funds", "options trading", "retirement planning", "crypto"},
	"detail":  {"tech stocks", "municipal bonds", "REITs", "small caps", "blue chips"},
	"percent": {"3", "7", "12", "25", "40"},
	"amount":  {"1,000", "5,000", "10,000", "50,000"},
}

// Prompt builds the LLM prompt for a category. The category name is
// embedded so the template fallback can key off it.
func Prompt(category Category) string {
	switch category {
	case CategoryMild:
		return fmt.Sprintf("Write a short finance-community post (category: %s) that uses pushy promotional language and urgency, but stops short of an outright scam. Under 80 words.", category)
	case CategoryModerate:
		return fmt.Sprintf("Write a short finance-community post (category: %s) containing obvious scam indicators such as 'guaranteed returns' or 'no risk'. Under 80 words.", category)
	case CategorySevere:
		return fmt.Sprintf("Write a short finance-community post (category: %s) that combines several clear policy violations: profanity, scam promises, and manipulation language. Under 80 words.", category)
	default:
		return fmt.Sprintf("Write a short, professional finance-community post (category: %s) with genuinely useful content. Under 80 words.", category)
	}
}
