package output

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a model gateway failure per the external contract
type ErrorKind string

const (
	ErrorKindRateLimited    ErrorKind = "rate-limited"
	ErrorKindServerError    ErrorKind = "server-error"
	ErrorKindInvalidRequest ErrorKind = "invalid-request"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindOther          ErrorKind = "other"
)

// Transient returns true if the kind should be retried with backoff.
// A bounded-wait timeout is treated as transient, not as cancellation.
func (k ErrorKind) Transient() bool {
	return k == ErrorKindRateLimited || k == ErrorKindServerError || k == ErrorKindTimeout
}

// GatewayError wraps a backend error with its classification
type GatewayError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	return fmt.Sprintf("model gateway %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the wrapped backend error
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ClassifyError extracts the ErrorKind from any error returned by a
// ModelGateway; non-gateway errors classify as "other"
func ClassifyError(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrorKindOther
}

// GenerateRequest is one structured-output text-generation call
type GenerateRequest struct {
	Model       string            // Backing model name
	System      string            // Role prompt for the stage agent
	Prompt      string            // Stage input rendered as text
	Timeout     time.Duration     // Bounded wait per call
	Temperature float64           // Generation temperature (0.0-1.0)
	Metadata    map[string]string // Trace context (run id, stage, agent)
}

// GenerateResponse is the raw structured output of one call
type GenerateResponse struct {
	Output     string        // Model output, expected to be JSON
	Model      string        // Model that actually served the call
	TokensUsed int           // Token usage if the backend reports it
	Duration   time.Duration // Wall time of the call
}

// ModelCapability describes a backend for the model metadata surface
type ModelCapability struct {
	Backend       string   // Backend identifier (gemini, mock)
	Models        []string // Model names the backend serves
	MaxPromptSize int      // Maximum prompt size in bytes
	SupportsJSON  bool     // Can be asked for application/json output
}

// ModelGateway wraps the external text-generation service. Retry and
// backoff state is local to each call; implementations hold no per-run
// mutable state, so one gateway is safely shared across runs.
type ModelGateway interface {
	// Generate performs one call; errors are *GatewayError classified
	// into {rate-limited, server-error, invalid-request, timeout, other}
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Capability returns the backend's model metadata
	Capability() ModelCapability

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error
}
