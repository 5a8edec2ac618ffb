package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// LocalSandbox runs a generated code artifact with a local interpreter
// under a bounded timeout. A non-zero exit from the artifact is a
// result, not an error; errors mean the sandbox itself could not run.
type LocalSandbox struct {
	Bin     string        // Interpreter binary (e.g., python3)
	Timeout time.Duration // Default bound when the request has none
}

// NewLocalSandbox creates a sandbox backed by a local interpreter
func NewLocalSandbox(bin string, timeout time.Duration) *LocalSandbox {
	if bin == "" {
		bin = "python3"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LocalSandbox{Bin: bin, Timeout: timeout}
}

// Execute runs the artifact and captures combined output
func (s *LocalSandbox) Execute(ctx context.Context, req output.SandboxRequest) (*output.SandboxResult, error) {
	if req.ArtifactPath == "" {
		return nil, fmt.Errorf("sandbox: artifact path is empty")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.Timeout
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, s.Bin, req.ArtifactPath)
	cmd.Dir = filepath.Dir(req.ArtifactPath)

	start := time.Now()
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	result := &output.SandboxResult{
		Output:   string(out),
		Duration: elapsed,
	}

	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			result.ExitStatus = -1
			result.ErrorText = fmt.Sprintf("execution timed out after %s", timeout)
			return result, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitStatus = exitErr.ExitCode()
			result.ErrorText = err.Error()
			return result, nil
		}
		// Interpreter missing or not startable
		return nil, fmt.Errorf("sandbox execution failed: %w (output: %s)", err, string(out))
	}

	return result, nil
}
