package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// MockResponse is one scripted reply. A non-nil Err is returned instead
// of a response.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

var errScriptExhausted = errors.New("mock script exhausted")

// MockProvider replays scripted responses in order and records requests.
// It is the "mock" backend, used by tests and for running without a key.
// Content is returned as given, without schema validation.
type MockProvider struct {
	mu     sync.Mutex
	script []MockResponse
	Calls  []Request
}

func NewMockProvider(script ...MockResponse) *MockProvider {
	return &MockProvider{script: script}
}

func (m *MockProvider) Name() string    { return "mock" }
func (m *MockProvider) ModelID() string { return "mock" }

func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	if len(m.script) == 0 {
		return nil, &Error{Kind: KindUnavailable, Provider: "mock", Err: errScriptExhausted}
	}
	next := m.script[0]
	m.script = m.script[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: next.Content, Usage: next.Usage, Model: "mock", StopReason: StopEnd}, nil
}

// AddResponse appends to the script.
func (m *MockProvider) AddResponse(r MockResponse) {
	m.mu.Lock()
	m.script = append(m.script, r)
	m.mu.Unlock()
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
