// Package validation models the QA Lead's output: a pass/fail result
// with diagnostics, tied 1:1 to a run.
package validation

import (
	"encoding/json"
	"fmt"
)

// Report is the QA Lead's validation result for a run's generated code
type Report struct {
	Passed      bool          `json:"passed"`
	Diagnostics string        `json:"diagnostics"`
	Agents      []AgentResult `json:"agents,omitempty"`
}

// AgentResult is the per-agent detail of a validation run
type AgentResult struct {
	AgentName  string `json:"agent_name"`
	Passed     bool   `json:"passed"`
	ExitStatus int    `json:"exit_status"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Merge folds one agent result into the report; the report passes only
// if every agent passes
func (r *Report) Merge(ar AgentResult) {
	r.Agents = append(r.Agents, ar)
	if len(r.Agents) == 1 {
		r.Passed = ar.Passed
	} else {
		r.Passed = r.Passed && ar.Passed
	}
	if !ar.Passed {
		if r.Diagnostics != "" {
			r.Diagnostics += "; "
		}
		r.Diagnostics += fmt.Sprintf("%s: %s", ar.AgentName, ar.Error)
	}
}

// Marshal encodes the report as indented JSON for the artifact bundle
func (r *Report) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
