package model

import (
	"context"
	"sync"
	"time"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// MockGateway is a scripted ModelGateway for tests and offline use.
// Responses are served in FIFO order per stage key; when a script runs
// out, the fallback function (if any) answers.
type MockGateway struct {
	mu       sync.Mutex
	scripts  map[string][]scriptedReply
	fallback func(req output.GenerateRequest) (string, error)
	calls    []output.GenerateRequest
}

type scriptedReply struct {
	out string
	err error
}

// NewMockGateway creates an empty mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{scripts: map[string][]scriptedReply{}}
}

// Script queues a reply for requests whose metadata "agent" matches key
func (m *MockGateway) Script(key, out string) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[key] = append(m.scripts[key], scriptedReply{out: out})
	return m
}

// ScriptError queues an error reply for the key
func (m *MockGateway) ScriptError(key string, err error) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[key] = append(m.scripts[key], scriptedReply{err: err})
	return m
}

// SetFallback installs a function answering unscripted requests
func (m *MockGateway) SetFallback(fn func(req output.GenerateRequest) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

// Calls returns a copy of every request seen so far
func (m *MockGateway) Calls() []output.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]output.GenerateRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate serves the next scripted reply for the request's agent key
func (m *MockGateway) Generate(ctx context.Context, req output.GenerateRequest) (*output.GenerateResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &output.GatewayError{Kind: output.ErrorKindOther, Err: err}
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	key := req.Metadata["agent"]
	queue := m.scripts[key]
	var reply *scriptedReply
	if len(queue) > 0 {
		reply = &queue[0]
		m.scripts[key] = queue[1:]
	}
	fallback := m.fallback
	m.mu.Unlock()

	if reply == nil {
		if fallback != nil {
			out, err := fallback(req)
			if err != nil {
				return nil, err
			}
			return &output.GenerateResponse{Output: out, Model: "mock", Duration: time.Millisecond}, nil
		}
		return &output.GenerateResponse{Output: "{}", Model: "mock", Duration: time.Millisecond}, nil
	}

	if reply.err != nil {
		return nil, reply.err
	}
	return &output.GenerateResponse{
		Output:     reply.out,
		Model:      "mock",
		TokensUsed: len(req.Prompt) / 4,
		Duration:   time.Millisecond,
	}, nil
}

// Capability returns the mock's metadata
func (m *MockGateway) Capability() output.ModelCapability {
	return output.ModelCapability{
		Backend:       "mock",
		Models:        []string{"mock"},
		MaxPromptSize: 32000,
		SupportsJSON:  true,
	}
}

// HealthCheck always succeeds for the mock
func (m *MockGateway) HealthCheck(ctx context.Context) error {
	return nil
}
