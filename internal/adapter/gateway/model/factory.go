package model

import (
	"context"
	"fmt"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// NewModelGateway creates a model gateway for the configured backend.
// Supported backends: gemini, mock.
func NewModelGateway(ctx context.Context, backend, defaultModel string) (output.ModelGateway, error) {
	switch backend {
	case "gemini":
		return NewGeminiGateway(ctx, defaultModel)
	case "mock":
		return NewMockGateway(), nil
	default:
		return nil, fmt.Errorf("unknown model backend: %s (supported: gemini, mock)", backend)
	}
}
