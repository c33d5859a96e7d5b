package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

const (
	anthropicMessagesURL  = "https://api.anthropic.com/v1/messages"
	anthropicExtractModel = "claude-3-5-sonnet-20241022"
	anthropicGroundModel  = "claude-3-5-haiku-20241022"
	anthropicVersion      = "2023-06-01"
)

type AnthropicClient struct {
	apiKey       string
	url          string
	extractModel string
	groundModel  string
	httpClient   *http.Client
}

func NewAnthropicClient(apiKey string, opts Options) *AnthropicClient {
	return &AnthropicClient{
		apiKey:       apiKey,
		url:          anthropicMessagesURL,
		extractModel: pick(opts.ExtractModel, anthropicExtractModel),
		groundModel:  pick(opts.GroundModel, anthropicGroundModel),
		httpClient:   &http.Client{},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicClient) complete(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read anthropic response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal anthropic response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", result.Error.Message)
	}

	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic API returned no content")
	}

	return strings.TrimSpace(result.Content[0].Text), nil
}

func (c *AnthropicClient) Extract(ctx context.Context, req domain.ExtractRequest) ([]domain.Candidate, error) {
	result, err := c.complete(ctx, c.extractModel, buildExtractPrompt(req), 4096)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return parseCandidates(result)
}

func (c *AnthropicClient) Ground(ctx context.Context, fact, evidence string) (bool, error) {
	result, err := c.complete(ctx, c.groundModel, buildGroundPrompt(fact, evidence), 50)
	if err != nil {
		return false, fmt.Errorf("ground: %w", err)
	}
	return parseGrounded(result), nil
}
