package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// MockSandbox is a scripted SandboxGateway for tests
type MockSandbox struct {
	mu       sync.Mutex
	results  []*output.SandboxResult
	err      error
	requests []output.SandboxRequest
}

// NewMockSandbox creates an empty mock sandbox; with no scripted
// results every execution reports a clean exit
func NewMockSandbox() *MockSandbox {
	return &MockSandbox{}
}

// ScriptResult queues one execution result
func (m *MockSandbox) ScriptResult(res *output.SandboxResult) *MockSandbox {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return m
}

// SetError makes every execution fail with err
func (m *MockSandbox) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns a copy of every request seen
func (m *MockSandbox) Requests() []output.SandboxRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]output.SandboxRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Execute serves the next scripted result
func (m *MockSandbox) Execute(ctx context.Context, req output.SandboxRequest) (*output.SandboxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.err != nil {
		return nil, m.err
	}

	if len(m.results) > 0 {
		res := m.results[0]
		m.results = m.results[1:]
		return res, nil
	}

	return &output.SandboxResult{
		ExitStatus: 0,
		Output:     "ok",
		Duration:   time.Millisecond,
	}, nil
}
