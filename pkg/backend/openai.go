package backend

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/zen-systems/reviewroute/pkg/review"
	"github.com/zen-systems/reviewroute/pkg/tokens"
)

// OpenAI is the secondary mid-capability backend.
type OpenAI struct {
	client    openai.Client
	model     string
	estimator *tokens.Estimator
}

// NewOpenAI creates the OpenAI backend.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if model == "" {
		model = "gpt-5.2-thinking"
	}

	client := openai.NewClient()
	return &OpenAI{client: client, model: model, estimator: tokens.NewEstimator()}, nil
}

// Name returns the backend identifier.
func (b *OpenAI) Name() string {
	return "openai"
}

// Capabilities returns the capabilities this backend declares.
func (b *OpenAI) Capabilities() []string {
	return []string{"review"}
}

// Invoke sends the review prompt to OpenAI and returns the raw output.
func (b *OpenAI) Invoke(ctx context.Context, req review.Request, budget review.PassBudget) (string, error) {
	prompt := BuildPrompt(req, budget, b.estimator)

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(budget.OutputTokenLimit)),
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
