// Package mock provides a scripted AI provider for tests and offline use.
package mock

import (
	"context"
	"sync"

	"github.com/GoCodeAlone/sitetrack/provider"
)

const defaultResponse = "1. Review drawings\n2. Order materials\n3. Schedule inspection"

// MockProvider implements provider.Provider with scripted responses.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	idx       int
	err       error
	calls     [][]provider.Message
}

// New creates a MockProvider that cycles through the given responses.
func New(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// Failing creates a MockProvider whose Chat always returns err.
func Failing(err error) *MockProvider {
	return &MockProvider{err: err}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Chat returns the next scripted response, cycling through the queue.
func (m *MockProvider) Chat(ctx context.Context, messages []provider.Message) (*provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]provider.Message(nil), messages...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &provider.Response{Content: defaultResponse}, nil
	}
	resp := m.responses[m.idx%len(m.responses)]
	m.idx++
	return &provider.Response{Content: resp}, nil
}

// Calls returns the conversations received so far.
func (m *MockProvider) Calls() [][]provider.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]provider.Message(nil), m.calls...)
}
