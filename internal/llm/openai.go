package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/domain"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to OpenAI or any host speaking its chat completions API.
type OpenAIClient struct {
	client       *openai.Client
	extractModel string
	groundModel  string
}

func NewOpenAIClient(apiKey string, opts Options) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		extractModel: pick(opts.ExtractModel, openai.GPT4o),
		groundModel:  pick(opts.GroundModel, openai.GPT4oMini),
	}
}

func (c *OpenAIClient) complete(ctx context.Context, model, prompt string, jsonObject bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	}
	if jsonObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) Extract(ctx context.Context, req domain.ExtractRequest) ([]domain.Candidate, error) {
	result, err := c.complete(ctx, c.extractModel, buildExtractPrompt(req), false)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return parseCandidates(result)
}

func (c *OpenAIClient) Ground(ctx context.Context, fact, evidence string) (bool, error) {
	result, err := c.complete(ctx, c.groundModel, buildGroundPrompt(fact, evidence), true)
	if err != nil {
		return false, fmt.Errorf("ground: %w", err)
	}
	return parseGrounded(result), nil
}
