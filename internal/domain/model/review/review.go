// Package review models one pass of the Engineer/Auditor loop and the
// loop's aggregate outcome.
package review

import "fmt"

// Decision is the Auditor's verdict on a code candidate
type Decision string

const (
	DecisionPending Decision = "PENDING"
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// IsValid returns true if the decision is a known value
func (d Decision) IsValid() bool {
	switch d {
	case DecisionPending, DecisionApprove, DecisionReject:
		return true
	default:
		return false
	}
}

// Verdict carries the Auditor's decision plus feedback text
type Verdict struct {
	Decision Decision `json:"decision"`
	Feedback string   `json:"feedback"`
}

// Approved returns true if the auditor signed off on the candidate
func (v Verdict) Approved() bool {
	return v.Decision == DecisionApprove
}

// Iteration records one Engineer-then-Auditor pass. Iterations are
// 1-indexed; insertion order is iteration order.
type Iteration struct {
	Seq       int     `json:"seq"`
	AgentName string  `json:"agent_name"`
	Filename  string  `json:"filename"`
	Code      string  `json:"code"`
	Verdict   Verdict `json:"verdict"`
	ElapsedMs int64   `json:"elapsed_ms"`
}

// Outcome is the review loop's result for one agent definition. Loop
// exhaustion without approval is a normal, reportable outcome, not an
// error: Approved is false and Exhausted is true.
type Outcome struct {
	AgentName  string
	Iterations []Iteration
	Approved   bool
	Exhausted  bool
}

// Candidate returns the latest iteration, which carries the code that
// is carried forward. Nil if the loop never ran.
func (o *Outcome) Candidate() *Iteration {
	if len(o.Iterations) == 0 {
		return nil
	}
	return &o.Iterations[len(o.Iterations)-1]
}

// LastFeedback returns the most recent auditor feedback text
func (o *Outcome) LastFeedback() string {
	c := o.Candidate()
	if c == nil {
		return ""
	}
	return c.Verdict.Feedback
}

// Summary renders a one-line human-readable result
func (o *Outcome) Summary() string {
	if o.Approved {
		return fmt.Sprintf("approved after %d iteration(s)", len(o.Iterations))
	}
	return fmt.Sprintf("not approved — exhausted after %d iteration(s)", len(o.Iterations))
}
