package output

import (
	"context"
	"time"
)

// SandboxGateway executes a generated code artifact in isolation.
// The sandboxing mechanism is external and swappable; the orchestrator
// only depends on this contract.
type SandboxGateway interface {
	// Execute runs the artifact and reports exit status, captured
	// output, and error text. A non-zero exit is not an error return;
	// errors are reserved for the sandbox itself failing.
	Execute(ctx context.Context, req SandboxRequest) (*SandboxResult, error)
}

// SandboxRequest identifies the artifact to execute
type SandboxRequest struct {
	ArtifactPath string        // Path to the code file in the workspace
	Timeout      time.Duration // Bounded execution time
}

// SandboxResult is the captured outcome of one execution
type SandboxResult struct {
	ExitStatus int           // Process exit status
	Output     string        // Combined captured output
	ErrorText  string        // Error text when the run failed
	Duration   time.Duration // Wall time of the execution
}
