// Package generate produces synthetic finance-community posts for
// exercising rule sets. Content comes from an LLM provider when one is
// configured and reachable, with a deterministic template fallback so
// generation always succeeds offline.
package generate

import (
	"context"
	"errors"
)

// Category selects how problematic the generated content should be.
type Category string

const (
	// CategorySafe is ordinary on-topic content that should pass filtering.
	CategorySafe Category = "safe"

	// CategoryMild contains promotional pressure and spam language.
	CategoryMild Category = "mild_violation"

	// CategoryModerate contains clear scam or manipulation indicators.
	CategoryModerate Category = "moderate_violation"

	// CategorySevere combines several serious violations in one post.
	CategorySevere Category = "severe_violation"
)

// Categories lists every category in escalating order.
func Categories() []Category {
	return []Category{CategorySafe, CategoryMild, CategoryModerate, CategorySevere}
}

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	switch c {
	case CategorySafe, CategoryMild, CategoryModerate, CategorySevere:
		return true
	}
	return false
}

// Post is one generated content item.
type Post struct {
	// ID is a generated unique identifier.
	ID string `json:"id"`

	// Text is the generated content.
	Text string `json:"text"`

	// Category is the requested violation category.
	Category Category `json:"category"`

	// Provider names the backend that produced the text.
	Provider string `json:"provider"`
}

// Provider is one content generation backend.
type Provider interface {
	// Name identifies the provider in logs and generated posts.
	Name() string

	// Available reports whether the provider can serve requests right
	// now (credentials configured, endpoint reachable).
	Available(ctx context.Context) bool

	// Generate produces one piece of content from the prompt.
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ErrNoProviders indicates every configured provider failed or was
// unavailable.
var ErrNoProviders = errors.New("no generation provider available")
