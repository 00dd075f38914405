package generate

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider generates content through the Anthropic messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	available bool
}

// NewAnthropicProvider creates the provider. An empty API key yields a
// provider that reports itself unavailable.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	p := &AnthropicProvider{model: model}
	if apiKey != "" {
		p.client = anthropic.NewClient(option.WithAPIKey(apiKey))
		p.available = true
	}
	return p
}

// Name identifies the provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Available reports whether the provider has credentials.
func (p *AnthropicProvider) Available(ctx context.Context) bool {
	return p.available
}

// Generate produces one piece of content from the prompt.
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !p.available {
		return "", fmt.Errorf("anthropic: no API key configured")
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	content := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return "", fmt.Errorf("anthropic messages: empty response")
	}
	return content, nil
}
