// Package agent implements the pipeline's closed set of stage agents.
// Every agent shares one call discipline: the run-level call budget is
// checked before each model call, transient gateway errors are retried
// with exponential backoff, and structurally invalid output earns
// exactly one corrective retry before the stage fails.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agentfoundry/agentfactory/internal/app"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
)

// Options bound every agent's calls; values come from configuration
type Options struct {
	Model          string        // Default backing model
	CallTimeout    time.Duration // Bounded wait per model call
	RetryAttempts  int           // Max attempts per call on transient errors
	RetryBaseDelay time.Duration // Backoff base; doubles per attempt
	MaxAPICalls    int           // Run-level ceiling; 0 means unlimited
}

// Base carries the shared call machinery of all stage agents
type Base struct {
	role    Role
	profile Profile
	gw      output.ModelGateway
	trace   output.TraceWriter
	opts    Options
}

// NewBase wires the shared machinery for one role within one run
func NewBase(role Role, profiles Profiles, gw output.ModelGateway, trace output.TraceWriter, opts Options) Base {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	return Base{
		role:    role,
		profile: profiles.Get(role),
		gw:      gw,
		trace:   trace,
		opts:    opts,
	}
}

// generate performs one budgeted, retried model call for the run
func (b *Base) generate(ctx context.Context, rn *run.Run, prompt string) (string, error) {
	if !rn.ConsumeAPICall(b.opts.MaxAPICalls) {
		return "", &run.Failure{
			Kind:   run.FailureQuotaExceeded,
			Reason: fmt.Sprintf("api call budget of %d exhausted", b.opts.MaxAPICalls),
			Stage:  rn.Stage,
		}
	}

	req := output.GenerateRequest{
		Model:       b.opts.Model,
		System:      b.profile.System,
		Prompt:      prompt,
		Timeout:     b.opts.CallTimeout,
		Temperature: b.profile.Temperature,
		Metadata: map[string]string{
			"run_id": rn.ID,
			"stage":  rn.Stage.String(),
			"agent":  string(b.role),
		},
	}

	var lastErr error
	delay := b.opts.RetryBaseDelay

	for attempt := 1; attempt <= b.opts.RetryAttempts; attempt++ {
		start := time.Now()
		resp, err := b.gw.Generate(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			b.traceCall(ctx, rn, attempt, elapsed, resp.TokensUsed, "")
			return resp.Output, nil
		}

		kind := output.ClassifyError(err)
		b.traceCall(ctx, rn, attempt, elapsed, 0, string(kind))
		lastErr = err

		if !kind.Transient() {
			break
		}
		if attempt == b.opts.RetryAttempts {
			break
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
	}

	return "", &run.Failure{
		Kind:   run.FailureTransientExternal,
		Reason: fmt.Sprintf("%s call failed after %d attempt(s): %v", b.role, b.opts.RetryAttempts, lastErr),
		Stage:  rn.Stage,
	}
}

// generateJSON calls the model and decodes its output into target,
// granting one corrective retry when the output fails to decode or
// validate. validate may be nil.
func (b *Base) generateJSON(ctx context.Context, rn *run.Run, prompt string, target interface{}, validate func() error) error {
	raw, err := b.generate(ctx, rn, prompt)
	if err != nil {
		return err
	}

	decodeErr := decodeStrict(raw, target, validate)
	if decodeErr == nil {
		return nil
	}

	corrective := fmt.Sprintf(
		"%s\n\nYour previous reply was rejected: %v\nPrevious reply:\n%s\n\nReply again with only the corrected JSON object.",
		prompt, decodeErr, raw,
	)
	raw, err = b.generate(ctx, rn, corrective)
	if err != nil {
		return err
	}

	if decodeErr = decodeStrict(raw, target, validate); decodeErr != nil {
		return &run.Failure{
			Kind:   run.FailureInvalidOutput,
			Reason: fmt.Sprintf("%s output invalid after corrective retry: %v", b.role, decodeErr),
			Stage:  rn.Stage,
		}
	}
	return nil
}

func decodeStrict(raw string, target interface{}, validate func() error) error {
	if err := json.Unmarshal([]byte(stripFences(raw)), target); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	if validate != nil {
		return validate()
	}
	return nil
}

// stripFences removes a markdown code fence some models wrap around
// JSON output despite the response MIME type
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (b *Base) traceCall(ctx context.Context, rn *run.Run, attempt int, elapsed time.Duration, tokens int, errKind string) {
	payload := map[string]interface{}{
		"agent":   string(b.role),
		"model":   b.opts.Model,
		"attempt": attempt,
	}
	if tokens > 0 {
		payload["tokens"] = tokens
	}
	summary := fmt.Sprintf("%s model call", b.role)
	if errKind != "" {
		payload["error_kind"] = errKind
		summary = fmt.Sprintf("%s model call failed (%s)", b.role, errKind)
	}

	// Trace failures never fail the run
	if err := b.trace.Record(ctx, &output.TraceRecord{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     rn.ID,
		Stage:     rn.Stage.String(),
		Kind:      output.EventModelCall,
		Summary:   summary,
		ElapsedMs: elapsed.Milliseconds(),
		Payload:   payload,
	}); err != nil {
		app.GetLogger().Warn("trace record failed: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
