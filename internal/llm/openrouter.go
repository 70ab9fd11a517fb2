package llm

import "fmt"

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterProvider wraps OpenAIProvider with OpenRouter-specific defaults.
// OpenRouter exposes an OpenAI-compatible API, so the underlying SDK is reused.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
func NewOpenRouterProvider(cfg ModelConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: %w", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterBaseURL
	}

	inner, err := NewOpenAIProvider(cfg)
	if err != nil {
		return nil, err
	}
	// Model IDs are passed through untouched; OpenRouter uses vendor/model.
	inner.model = cfg.Model

	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}
