package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// GeminiGateway implements ModelGateway against the Gemini API via the
// official genai client. It is stateless per call: retry and backoff
// live in the stage agent, not here, so one gateway instance is safely
// shared across concurrent runs.
type GeminiGateway struct {
	cli          *genai.Client
	defaultModel string
}

// NewGeminiGateway creates a Gemini-backed model gateway. The genai
// client reads GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiGateway(ctx context.Context, defaultModel string) (*GeminiGateway, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.5-flash"
	}
	return &GeminiGateway{cli: cli, defaultModel: defaultModel}, nil
}

// Generate performs one structured-output call with a bounded wait
func (g *GeminiGateway) Generate(ctx context.Context, req output.GenerateRequest) (*output.GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + req.Prompt
	}

	cctx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.cli.Models.GenerateContent(cctx, model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		generateConfig(req),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, &output.GatewayError{Kind: output.ErrorKindTimeout, Err: err}
		}
		return nil, &output.GatewayError{Kind: classifyBackendError(err), Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &output.GatewayError{
			Kind: output.ErrorKindOther,
			Err:  fmt.Errorf("empty response from model %s", model),
		}
	}

	return &output.GenerateResponse{
		Output:   resp.Candidates[0].Content.Parts[0].Text,
		Model:    model,
		Duration: time.Since(start),
	}, nil
}

// Capability returns the backend's model metadata
func (g *GeminiGateway) Capability() output.ModelCapability {
	return output.ModelCapability{
		Backend:       "gemini",
		Models:        []string{"gemini-2.5-flash", "gemini-2.5-pro"},
		MaxPromptSize: 200000,
		SupportsJSON:  true,
	}
}

// HealthCheck verifies the backend is reachable
func (g *GeminiGateway) HealthCheck(ctx context.Context) error {
	_, err := g.Generate(ctx, output.GenerateRequest{
		Prompt:  `Reply with the JSON object {"ok": true}`,
		Timeout: 15 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}
	return nil
}

// generateConfig builds the per-call generation settings; the role's
// temperature is forwarded when set
func generateConfig(req output.GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		cfg.Temperature = &temp
	}
	return cfg
}

// classifyBackendError maps a genai error into the external contract's
// error kinds {rate-limited, server-error, invalid-request, other}
func classifyBackendError(err error) output.ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota"):
		return output.ErrorKindRateLimited
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") || strings.Contains(msg, "503") || strings.Contains(msg, "504") || strings.Contains(msg, "internal") || strings.Contains(msg, "unavailable"):
		return output.ErrorKindServerError
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid_argument") || strings.Contains(msg, "invalid request"):
		return output.ErrorKindInvalidRequest
	default:
		return output.ErrorKindOther
	}
}
