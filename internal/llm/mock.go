package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MockProvider is a deterministic Provider for tests and local runs
// without an API key. It returns canned responses in FIFO order and
// records all requests.
type MockProvider struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	Calls     []Request

	// fallback answers requests once the queue is empty. Nil means an
	// empty queue is an error.
	fallback func(context.Context, Request) (json.RawMessage, error)
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{model: "mock", responses: responses}
}

// NewNamedMockProvider creates a MockProvider reporting the given model ID.
func NewNamedMockProvider(model string, responses ...MockResponse) *MockProvider {
	return &MockProvider{model: model, responses: responses}
}

// Generate returns the next canned response. With an empty queue it uses
// the fallback responder, or fails with ErrProviderUnavailable.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		if m.fallback == nil {
			return nil, &ErrProviderUnavailable{}
		}
		content, err := m.fallback(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Response{Content: content, Model: m.model, StopReason: "end"}, nil
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      m.model,
		StopReason: "end",
	}, nil
}

// ModelID returns the configured model name.
func (m *MockProvider) ModelID() string {
	return m.model
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// AddJSON queues a successful response with the given JSON body.
func (m *MockProvider) AddJSON(body string) {
	m.AddResponse(MockResponse{Content: json.RawMessage(body)})
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or the zero Request.
func (m *MockProvider) LastCall() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}
	}
	return m.Calls[len(m.Calls)-1]
}
