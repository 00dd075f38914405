package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Config tunes the generator.
type Config struct {
	// MaxTokens bounds generated content length.
	// Default: 256
	MaxTokens int

	// RetryAttempts is retries per provider before falling through to
	// the next one.
	// Default: 3
	RetryAttempts int

	// RetryBaseDelay scales the backoff between retries.
	// Default: 500ms
	RetryBaseDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 500 * time.Millisecond
	}
	return c
}

// Generator produces posts through a priority-ordered provider chain.
// The first available provider that succeeds wins; transient failures
// retry with quadratic backoff before falling through to the next
// provider.
type Generator struct {
	providers []Provider
	cfg       Config
	logger    *slog.Logger
}

// New creates a generator over the given provider chain, in priority
// order.
func New(cfg Config, providers []Provider, logger *slog.Logger) (*Generator, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("provider chain cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		providers: providers,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}, nil
}

// Generate produces one post of the given category.
func (g *Generator) Generate(ctx context.Context, category Category) (*Post, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	prompt := Prompt(category)

	var lastErr error
	for _, provider := range g.providers {
		if !provider.Available(ctx) {
			g.logger.Debug("generation provider unavailable", "provider", provider.Name())
			continue
		}

		text, err := g.generateWithRetry(ctx, provider, prompt)
		if err != nil {
			lastErr = err
			g.logger.Warn("generation provider failed, trying next",
				"provider", provider.Name(),
				"error", err,
			)
			continue
		}

		return &Post{
			ID:       uuid.NewString(),
			Text:     text,
			Category: category,
			Provider: provider.Name(),
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrNoProviders, lastErr)
	}
	return nil, ErrNoProviders
}

// GenerateBatch produces count posts of the given category.
func (g *Generator) GenerateBatch(ctx context.Context, category Category, count int) ([]*Post, error) {
	posts := make([]*Post, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return posts, err
		}
		post, err := g.Generate(ctx, category)
		if err != nil {
			return posts, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (g *Generator) generateWithRetry(ctx context.Context, provider Provider, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt*attempt) * g.cfg.RetryBaseDelay
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := provider.Generate(ctx, prompt, g.cfg.MaxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", lastErr
}
