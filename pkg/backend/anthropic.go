// Package backend holds the concrete review backends. Each one renders
// the review prompt for a request, sends it to its provider, and returns
// the raw output; the review contract is enforced by the engine, not here.
package backend

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/tokens"
)

// Anthropic is the primary high-capability backend.
type Anthropic struct {
	client    anthropic.Client
	model     string
	estimator *tokens.Estimator
}

// NewAnthropic creates the Anthropic backend.
func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	client := anthropic.NewClient()
	return &Anthropic{client: client, model: model, estimator: tokens.NewEstimator()}, nil
}

// Name returns the backend identifier.
func (b *Anthropic) Name() string {
	return "anthropic"
}

// Capabilities returns the capabilities this backend declares.
func (b *Anthropic) Capabilities() []string {
	return []string{"review", "long_context"}
}

// Invoke sends the review prompt to Claude and returns the raw output.
func (b *Anthropic) Invoke(ctx context.Context, req review.Request, budget review.PassBudget) (string, error) {
	prompt := BuildPrompt(req, budget, b.estimator)

	resp, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: int64(budget.OutputTokenLimit),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return content, nil
}
