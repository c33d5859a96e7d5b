package llm

import (
	"fmt"

	"github.com/Harshitk-cp/factgraph/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Client extracts candidate facts from documents and grounds them against
// their evidence.
type Client interface {
	domain.Extractor
	domain.Grounder
}

// Options tune a provider. Zero values select the provider defaults.
type Options struct {
	// BaseURL points the OpenAI provider at a compatible host.
	BaseURL      string
	ExtractModel string
	GroundModel  string
}

// NewClient creates an LLM client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey string, opts Options) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(apiKey, opts), nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicClient(apiKey, opts), nil

	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiClient(apiKey, opts), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, anthropic, gemini, mock)", provider)
	}
}

func pick(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
