package run

// FailureKind classifies why a run (or a single stage call) failed
type FailureKind string

const (
	// FailureTransientExternal is a rate limit or server error from the
	// model service; retried with backoff before it ever reaches a Run
	FailureTransientExternal FailureKind = "transient-external"
	// FailureInvalidOutput means model output failed schema validation
	// after the corrective retry
	FailureInvalidOutput FailureKind = "invalid-output"
	// FailureQuotaExceeded means the run-level API call ceiling was hit
	FailureQuotaExceeded FailureKind = "quota-exceeded"
	// FailureReviewExhausted means the review loop hit max iterations
	// without auditor approval
	FailureReviewExhausted FailureKind = "review-exhausted"
	// FailureValidationFailed means the QA Lead reported failure
	FailureValidationFailed FailureKind = "validation-failed"
	// FailureHumanRejected is the interactive-mode rejection; non-fatal,
	// the run loops back to the Architect
	FailureHumanRejected FailureKind = "human-rejected"
	// FailureRearchitectExhausted means the bounded re-architecture budget
	// was spent without an approved blueprint
	FailureRearchitectExhausted FailureKind = "rearchitect-exhausted"
)

// String returns the string representation of the failure kind
func (k FailureKind) String() string {
	return string(k)
}

// Fatal returns true if the kind terminates a run
func (k FailureKind) Fatal() bool {
	return k != FailureHumanRejected
}

// Failure captures a terminal run failure: the kind, a human-readable
// reason, and the stage at which it occurred
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
	Stage  Stage       `json:"stage"`
}

// Error implements the error interface
func (f *Failure) Error() string {
	return string(f.Kind) + " at " + string(f.Stage) + ": " + f.Reason
}
