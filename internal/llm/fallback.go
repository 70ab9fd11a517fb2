package llm

import (
	"context"
	"fmt"
	"log/slog"
)

// FallbackProvider sends a request to a secondary model exactly once when
// the primary model is rate limited. Any other primary failure is returned
// unchanged.
type FallbackProvider struct {
	primary  Provider
	fallback Provider
	logger   *slog.Logger
}

// WithFallback wraps primary with a single-shot fallback. A nil fallback, or
// one serving the same model as primary, returns primary unwrapped.
func WithFallback(primary, fallback Provider, logger *slog.Logger) Provider {
	if fallback == nil || fallback.ModelID() == primary.ModelID() {
		return primary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{primary: primary, fallback: fallback, logger: logger}
}

func (f *FallbackProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := f.primary.Generate(ctx, req)
	if err == nil || !IsRateLimit(err) {
		return resp, err
	}

	f.logger.WarnContext(ctx, "rate limited, trying fallback model",
		"model", f.primary.ModelID(),
		"fallback", f.fallback.ModelID(),
	)

	resp, ferr := f.fallback.Generate(ctx, req)
	if ferr != nil {
		return nil, fmt.Errorf("fallback model also failed: %w", ferr)
	}
	return resp, nil
}

// ModelID reports the primary model.
func (f *FallbackProvider) ModelID() string {
	return f.primary.ModelID()
}
