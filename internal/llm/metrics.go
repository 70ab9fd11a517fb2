package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for LLM traffic.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunareading",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM requests by model, purpose and outcome.",
		}, []string{"model", "purpose", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lunareading",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM request latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"model", "purpose"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunareading",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens consumed by direction.",
		}, []string{"model", "direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.latency, m.tokens)
	}
	return m
}

// MetricsProvider is a decorator that records request counts, latency and
// token usage.
type MetricsProvider struct {
	inner   Provider
	metrics *Metrics
}

// WithMetrics wraps a Provider with Prometheus instrumentation.
func WithMetrics(p Provider, m *Metrics) Provider {
	if m == nil {
		return p
	}
	return &MetricsProvider{inner: p, metrics: m}
}

func (p *MetricsProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := p.inner.Generate(ctx, req)

	model := p.inner.ModelID()
	purpose := PurposeFrom(ctx)

	p.metrics.latency.WithLabelValues(model, purpose).Observe(time.Since(start).Seconds())
	p.metrics.requests.WithLabelValues(model, purpose, outcome(err)).Inc()
	if resp != nil {
		p.metrics.tokens.WithLabelValues(model, "input").Add(float64(resp.Usage.InputTokens))
		p.metrics.tokens.WithLabelValues(model, "output").Add(float64(resp.Usage.OutputTokens))
	}

	return resp, err
}

func (p *MetricsProvider) ModelID() string {
	return p.inner.ModelID()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var inv *ErrInvalidResponse
	var maxTok *ErrMaxTokensExceeded
	switch {
	case IsRateLimit(err):
		return "rate_limited"
	case errors.As(err, &inv):
		return "invalid"
	case errors.As(err, &maxTok):
		return "truncated"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
