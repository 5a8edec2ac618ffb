package output

import "context"

// EventKind tags one trace record
type EventKind string

const (
	EventRunCreated      EventKind = "run_created"
	EventStageTransition EventKind = "stage_transition"
	EventModelCall       EventKind = "model_call"
	EventToolCall        EventKind = "tool_call"
	EventApprovalWait    EventKind = "approval_wait"
	EventApproval        EventKind = "approval"
	EventRejection       EventKind = "rejection"
	EventRunTerminal     EventKind = "run_terminal"
)

// TraceRecord is one entry in a run's append-only trace
type TraceRecord struct {
	TS        string                 `json:"ts"`
	RunID     string                 `json:"run_id"`
	Stage     string                 `json:"stage"`
	Kind      EventKind              `json:"kind"`
	Summary   string                 `json:"summary,omitempty"`
	ElapsedMs int64                  `json:"elapsed_ms,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// TraceWriter is the per-run append-only trace sink. Within one run,
// records land in the exact order events occur. Callers treat append
// failures as non-fatal: the implementation reports them to the
// operational log and the pipeline continues.
type TraceWriter interface {
	// Record appends one entry to the run's stream for the given stage
	Record(ctx context.Context, rec *TraceRecord) error

	// Close flushes and releases the run's streams
	Close() error
}

// TraceWriterFactory opens one TraceWriter per run, keyed by slug
type TraceWriterFactory interface {
	ForRun(slug string) TraceWriter
}
