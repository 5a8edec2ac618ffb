package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentfoundry/agentfactory/internal/app"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
	"github.com/agentfoundry/agentfactory/internal/domain/model/blueprint"
	"github.com/agentfoundry/agentfactory/internal/domain/model/run"
	"github.com/agentfoundry/agentfactory/internal/domain/model/validation"
)

// QALead validates the generated workflow: every agent's code is
// executed in the sandbox, then the model summarizes the results into
// the final report. The report fails if any execution fails, whatever
// the model's summary says.
type QALead struct {
	Base
	sandbox        output.SandboxGateway
	sandboxTimeout time.Duration
}

// NewQALead creates the QA Lead agent for one run
func NewQALead(profiles Profiles, gw output.ModelGateway, sandbox output.SandboxGateway, trace output.TraceWriter, opts Options, sandboxTimeout time.Duration) *QALead {
	return &QALead{
		Base:           NewBase(RoleQALead, profiles, gw, trace, opts),
		sandbox:        sandbox,
		sandboxTimeout: sandboxTimeout,
	}
}

// Validate executes each agent's artifact and produces the run report.
// codePaths maps agent name to the artifact's local path.
func (q *QALead) Validate(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint, codePaths map[string]string) (*validation.Report, error) {
	report := &validation.Report{}

	for _, def := range bp.Agents {
		path, ok := codePaths[def.Name]
		if !ok {
			report.Merge(validation.AgentResult{
				AgentName: def.Name,
				Passed:    false,
				Error:     "no code artifact produced",
			})
			continue
		}

		result := q.execute(ctx, rn, def.Name, path)
		report.Merge(result)
	}

	verdict, err := q.summarize(ctx, rn, bp, report)
	if err != nil {
		return nil, err
	}

	report.Passed = report.Passed && verdict.Passed
	if verdict.Diagnostics != "" {
		report.Diagnostics = verdict.Diagnostics
	}
	return report, nil
}

func (q *QALead) execute(ctx context.Context, rn *run.Run, agentName, path string) validation.AgentResult {
	start := time.Now()
	res, err := q.sandbox.Execute(ctx, output.SandboxRequest{
		ArtifactPath: path,
		Timeout:      q.sandboxTimeout,
	})
	elapsed := time.Since(start)

	if traceErr := q.trace.Record(ctx, &output.TraceRecord{
		TS:        time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     rn.ID,
		Stage:     rn.Stage.String(),
		Kind:      output.EventToolCall,
		Summary:   fmt.Sprintf("sandbox execution of %s", agentName),
		ElapsedMs: elapsed.Milliseconds(),
		Payload:   map[string]interface{}{"agent": agentName, "path": path},
	}); traceErr != nil {
		app.GetLogger().Warn("trace record failed: %v", traceErr)
	}

	if err != nil {
		return validation.AgentResult{
			AgentName: agentName,
			Passed:    false,
			Error:     fmt.Sprintf("sandbox failed: %v", err),
		}
	}

	return validation.AgentResult{
		AgentName:  agentName,
		Passed:     res.ExitStatus == 0 && res.ErrorText == "",
		ExitStatus: res.ExitStatus,
		Output:     res.Output,
		Error:      res.ErrorText,
	}
}

type qaVerdict struct {
	Passed      bool   `json:"passed"`
	Diagnostics string `json:"diagnostics"`
}

func (q *QALead) summarize(ctx context.Context, rn *run.Run, bp *blueprint.Blueprint, report *validation.Report) (*qaVerdict, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow context:\n%s\n\nExecution results:\n", bp.EndToEndContext)
	for _, ar := range report.Agents {
		status := "passed"
		if !ar.Passed {
			status = "failed"
		}
		fmt.Fprintf(&sb, "- %s: %s (exit %d)\n", ar.AgentName, status, ar.ExitStatus)
		if ar.Error != "" {
			fmt.Fprintf(&sb, "  error: %s\n", ar.Error)
		}
		if out := strings.TrimSpace(ar.Output); out != "" {
			fmt.Fprintf(&sb, "  output: %s\n", truncate(out, 2000))
		}
	}

	var verdict qaVerdict
	validate := func() error {
		if verdict.Diagnostics == "" && !verdict.Passed {
			return fmt.Errorf("a failing verdict requires diagnostics")
		}
		return nil
	}
	if err := q.generateJSON(ctx, rn, sb.String(), &verdict, validate); err != nil {
		return nil, err
	}
	return &verdict, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
