package run

import "fmt"

// Mode selects how the pipeline treats the blueprint approval point
type Mode string

const (
	// ModeAutonomous runs all stages to completion without external input
	ModeAutonomous Mode = "autonomous"
	// ModeInteractive suspends the run after the Architect stage until an
	// explicit approve or reject decision arrives
	ModeInteractive Mode = "interactive"
)

// ParseMode validates and converts a string into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAutonomous:
		return ModeAutonomous, nil
	case ModeInteractive:
		return ModeInteractive, nil
	default:
		return "", fmt.Errorf("unknown mode: %s (supported: autonomous, interactive)", s)
	}
}

// String returns the string representation of the mode
func (m Mode) String() string {
	return string(m)
}

// IsInteractive returns true if the run pauses for blueprint approval
func (m Mode) IsInteractive() bool {
	return m == ModeInteractive
}
