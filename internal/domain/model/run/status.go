package run

// Status represents the high-level lifecycle status of a Run
type Status string

const (
	StatusPending   Status = "PENDING"   // Created, not yet started
	StatusRunning   Status = "RUNNING"   // Pipeline is executing
	StatusPaused    Status = "PAUSED"    // Suspended awaiting blueprint approval
	StatusSucceeded Status = "SUCCEEDED" // All stages completed, QA passed
	StatusFailed    Status = "FAILED"    // Terminal failure (see FailureKind)
	StatusAborted   Status = "ABORTED"   // Explicitly aborted by the caller
	StatusUnknown   Status = "UNKNOWN"   // Unknown status
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusAborted
}

// IsActive returns true if the run is still in flight
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning || s == StatusPaused
}

// IsPaused returns true if the run is suspended awaiting approval
func (s Status) IsPaused() bool {
	return s == StatusPaused
}

// IsValid returns true if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusPaused, StatusSucceeded, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if transition to another status is allowed
func (s Status) CanTransitionTo(next Status) bool {
	validTransitions := map[Status][]Status{
		StatusPending:   {StatusRunning, StatusAborted},
		StatusRunning:   {StatusPaused, StatusSucceeded, StatusFailed, StatusAborted},
		StatusPaused:    {StatusRunning, StatusAborted},
		StatusSucceeded: {},
		StatusFailed:    {},
		StatusAborted:   {},
	}

	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}

	for _, validNext := range allowed {
		if validNext == next {
			return true
		}
	}

	return false
}
