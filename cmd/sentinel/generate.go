package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"guardian-hq/sentinel/pkg/config"
	"guardian-hq/sentinel/pkg/filter"
	"guardian-hq/sentinel/pkg/generate"
	"guardian-hq/sentinel/pkg/moderator"
)

var generateFlags struct {
	category string
	count    int
	analyze  bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic posts for exercising the rule set",
	Long: `Generate synthetic finance-community posts in a chosen violation
category. Providers are tried in configured priority order; the
deterministic template provider guarantees output when no LLM backend
is reachable.

Categories: safe, mild_violation, moderate_violation, severe_violation.

Examples:
  # Five obvious scam posts
  sentinel generate --category moderate_violation --count 5

  # Generate and immediately run them through the filter
  sentinel generate --category severe_violation --analyze`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateFlags.category, "category", string(generate.CategorySafe), "violation category")
	generateCmd.Flags().IntVarP(&generateFlags.count, "count", "n", 1, "number of posts")
	generateCmd.Flags().BoolVar(&generateFlags.analyze, "analyze", false, "run generated posts through the filter")
}

// buildProviders assembles the generation provider chain in configured
// priority order.
func buildProviders(cfg config.GenerationConfig) ([]generate.Provider, error) {
	providers := make([]generate.Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case "openai":
			providers = append(providers, generate.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
		case "anthropic":
			providers = append(providers, generate.NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
		case "ollama":
			providers = append(providers, generate.NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model))
		case "template":
			providers = append(providers, generate.NewTemplateProvider(time.Now().UnixNano()))
		default:
			return nil, fmt.Errorf("unknown generation provider %q", name)
		}
	}
	return providers, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	category := generate.Category(generateFlags.category)
	if !category.Valid() {
		return fmt.Errorf("unknown category %q (one of: %v)", generateFlags.category, generate.Categories())
	}
	if generateFlags.count < 1 {
		return fmt.Errorf("count must be at least 1")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	providers, err := buildProviders(cfg.Generation)
	if err != nil {
		return err
	}
	gen, err := generate.New(generate.Config{
		MaxTokens:      cfg.Generation.MaxTokens,
		RetryAttempts:  cfg.Generation.RetryAttempts,
		RetryBaseDelay: cfg.Generation.RetryBaseDelay,
	}, providers, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	posts, err := gen.GenerateBatch(ctx, category, generateFlags.count)
	if err != nil {
		return err
	}

	if !generateFlags.analyze {
		return printJSON(cmd.OutOrStdout(), posts)
	}

	mod, err := moderator.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mod.Close()

	items := make([]filter.Item, len(posts))
	for i, post := range posts {
		items[i] = filter.Item{ID: post.ID, Text: post.Text}
	}
	results, err := mod.ModerateBatch(ctx, items)
	if err != nil {
		logger.Warn("some results not persisted", "error", err)
	}

	type analyzed struct {
		Post   *generate.Post `json:"post"`
		Result *filter.Result `json:"result"`
	}
	out := make([]analyzed, len(posts))
	for i := range posts {
		out[i] = analyzed{Post: posts[i], Result: results[i]}
	}
	return printJSON(cmd.OutOrStdout(), out)
}
