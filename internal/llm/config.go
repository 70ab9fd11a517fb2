package llm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// placeholderKey is the value shipped in sample .env files. It is treated
// the same as an unset key.
const placeholderKey = "your-openai-api-key-here"

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "openai", "anthropic", "gemini", "openrouter", "mock"
	Provider string

	OpenAI     ModelConfig
	Anthropic  ModelConfig
	Gemini     ModelConfig
	OpenRouter ModelConfig
	Retry      RetryConfig

	// Timeout bounds a single Generate call including retries and the
	// fallback attempt.
	Timeout time.Duration
}

// ModelConfig holds the per-provider credentials and model selection.
type ModelConfig struct {
	APIKey string
	Model  string

	// FallbackModel is tried once when Model is rate limited.
	// Empty, or equal to Model, disables the fallback.
	FallbackModel string

	// BaseURL overrides the API endpoint (OpenAI-compatible providers only).
	BaseURL string
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with the models the service was tuned on.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		OpenAI: ModelConfig{
			Model:         "gpt-4o",
			FallbackModel: "gpt-3.5-turbo",
		},
		Anthropic: ModelConfig{
			Model:         "claude-sonnet",
			FallbackModel: "claude-haiku",
		},
		Gemini: ModelConfig{
			Model:         "gemini-pro",
			FallbackModel: "gemini-flash",
		},
		OpenRouter: ModelConfig{
			Model:   "openai/gpt-4o",
			BaseURL: defaultOpenRouterBaseURL,
		},
		Retry: RetryConfig{
			MaxAttempts: 2,
			InitialWait: 1 * time.Second,
			MaxWait:     8 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 90 * time.Second,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values. When LUNA_LLM_PROVIDER is not set the first
// provider with an API key wins, OpenAI first.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.OpenAI.APIKey = apiKeyEnv("OPENAI_API_KEY")
	cfg.Anthropic.APIKey = apiKeyEnv("ANTHROPIC_API_KEY")
	cfg.Gemini.APIKey = apiKeyEnv("GEMINI_API_KEY")
	cfg.OpenRouter.APIKey = apiKeyEnv("OPENROUTER_API_KEY")

	overrideModel(&cfg.OpenAI, "OPENAI")
	overrideModel(&cfg.Anthropic, "ANTHROPIC")
	overrideModel(&cfg.Gemini, "GEMINI")
	overrideModel(&cfg.OpenRouter, "OPENROUTER")

	if p := os.Getenv("LUNA_LLM_PROVIDER"); p != "" {
		cfg.Provider = strings.ToLower(p)
	} else {
		switch {
		case cfg.OpenAI.APIKey != "":
			cfg.Provider = "openai"
		case cfg.Anthropic.APIKey != "":
			cfg.Provider = "anthropic"
		case cfg.Gemini.APIKey != "":
			cfg.Provider = "gemini"
		case cfg.OpenRouter.APIKey != "":
			cfg.Provider = "openrouter"
		}
	}

	if v := os.Getenv("LUNA_LLM_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("LUNA_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	return cfg
}

func apiKeyEnv(name string) string {
	k := strings.TrimSpace(os.Getenv(name))
	if k == placeholderKey {
		return ""
	}
	return k
}

func overrideModel(mc *ModelConfig, prefix string) {
	if m := os.Getenv("LUNA_" + prefix + "_MODEL"); m != "" {
		mc.Model = m
	}
	if m, ok := os.LookupEnv("LUNA_" + prefix + "_FALLBACK_MODEL"); ok {
		mc.FallbackModel = m
	}
	if u := os.Getenv("LUNA_" + prefix + "_BASE_URL"); u != "" {
		mc.BaseURL = u
	}
}

// Selected returns the ModelConfig for the configured provider.
func (c Config) Selected() ModelConfig {
	switch c.Provider {
	case "anthropic":
		return c.Anthropic
	case "gemini":
		return c.Gemini
	case "openrouter":
		return c.OpenRouter
	default:
		return c.OpenAI
	}
}

// Validate checks that the selected provider has its required API key set.
// A missing key wraps ErrNotConfigured.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic", "gemini", "openrouter":
		if c.Selected().APIKey == "" {
			return fmt.Errorf("%s: %w", c.Provider, ErrNotConfigured)
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
