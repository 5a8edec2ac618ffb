package run

// Stage represents the pipeline stage a Run is currently in.
// Stages always advance in order: Architect -> Review Loop -> QA Lead -> Done.
// The only backward transition is ReviewLoop -> Architect after a human
// blueprint rejection in interactive mode.
type Stage string

const (
	StageArchitect  Stage = "ARCHITECT"   // Blueprint design
	StageReviewLoop Stage = "REVIEW_LOOP" // Engineer/Auditor iteration
	StageQALead     Stage = "QA_LEAD"     // Final validation
	StageDone       Stage = "DONE"        // Terminal
)

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// Next returns the stage that follows s in pipeline order
func (s Stage) Next() Stage {
	switch s {
	case StageArchitect:
		return StageReviewLoop
	case StageReviewLoop:
		return StageQALead
	case StageQALead:
		return StageDone
	default:
		return StageDone
	}
}

// CanTransitionTo checks if transition to another stage is allowed
func (s Stage) CanTransitionTo(next Stage) bool {
	switch s {
	case StageArchitect:
		return next == StageReviewLoop
	case StageReviewLoop:
		// Backward edge: human rejection returns the run to the Architect
		return next == StageQALead || next == StageArchitect
	case StageQALead:
		return next == StageDone
	default:
		return false
	}
}

// IsValid returns true if the stage is a known value
func (s Stage) IsValid() bool {
	switch s {
	case StageArchitect, StageReviewLoop, StageQALead, StageDone:
		return true
	default:
		return false
	}
}
