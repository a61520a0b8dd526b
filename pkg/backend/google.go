package backend

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/tokens"
)

// Google is an optional tertiary backend for Gemini models, registered
// only when a key is configured. Custom tables may route to it.
type Google struct {
	client    *genai.Client
	model     string
	estimator *tokens.Estimator
}

// NewGoogle creates the Gemini backend.
func NewGoogle(apiKey, model string) (*Google, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if model == "" {
		model = "gemini-2.0-pro"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &Google{client: client, model: model, estimator: tokens.NewEstimator()}, nil
}

// Name returns the backend identifier.
func (b *Google) Name() string {
	return "google"
}

// Capabilities returns the capabilities this backend declares.
func (b *Google) Capabilities() []string {
	return []string{"review"}
}

// Invoke sends the review prompt to Gemini and returns the raw output.
func (b *Google) Invoke(ctx context.Context, req review.Request, budget review.PassBudget) (string, error) {
	prompt := BuildPrompt(req, budget, b.estimator)

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("google API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("google returned no candidates")
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}
	return content, nil
}
