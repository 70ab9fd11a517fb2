package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Deps carries the optional collaborators the middleware chain uses.
type Deps struct {
	Events  EventSink
	Logger  *slog.Logger
	Metrics *Metrics
}

// NewProvider creates a Provider from configuration.
//
// The returned chain is: caller → timeout → fallback → retry → metrics →
// logging → base. The fallback leg gets its own metrics and logging but no
// retry, so a rate-limited request costs at most one extra call.
func NewProvider(ctx context.Context, cfg Config, deps Deps) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == "mock" {
		return NewDemoProvider(), nil
	}

	mc := cfg.Selected()

	base, err := newBase(ctx, cfg.Provider, mc)
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}
	primary := WithRetry(instrument(base, cfg.Provider, deps), cfg.Retry)

	var fallback Provider
	if mc.FallbackModel != "" && mc.FallbackModel != mc.Model {
		fmc := mc
		fmc.Model = mc.FallbackModel
		fb, err := newBase(ctx, cfg.Provider, fmc)
		if err != nil {
			return nil, fmt.Errorf("initializing %s fallback provider: %w", cfg.Provider, err)
		}
		fallback = instrument(fb, cfg.Provider, deps)
	}

	return WithTimeout(WithFallback(primary, fallback, deps.Logger), cfg.Timeout), nil
}

func newBase(ctx context.Context, provider string, mc ModelConfig) (Provider, error) {
	switch provider {
	case "openai":
		return NewOpenAIProvider(mc)
	case "anthropic":
		return NewAnthropicProvider(mc)
	case "gemini":
		return NewGeminiProvider(ctx, mc)
	case "openrouter":
		return NewOpenRouterProvider(mc)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
}

func instrument(p Provider, providerName string, deps Deps) Provider {
	return WithMetrics(WithLogging(p, providerName, deps.Events, deps.Logger), deps.Metrics)
}

// TimeoutProvider bounds every Generate call with a deadline.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps p so each call is bounded by d. Zero disables it.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &TimeoutProvider{inner: p, timeout: d}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *TimeoutProvider) ModelID() string {
	return t.inner.ModelID()
}

// UnconfiguredProvider fails every call with the configuration error it was
// built from, so the server can run without an API key.
type UnconfiguredProvider struct {
	err error
}

// Unconfigured wraps a configuration error as a Provider.
func Unconfigured(err error) Provider {
	return &UnconfiguredProvider{err: err}
}

func (u *UnconfiguredProvider) Generate(context.Context, Request) (*Response, error) {
	return nil, u.err
}

func (u *UnconfiguredProvider) ModelID() string {
	return "unconfigured"
}
