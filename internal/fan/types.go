// Package fan contains the actuator state machine for the cave fan.
// This package has NO hardware dependencies; the physical line is reached
// only through the Output interface.
package fan

import "errors"

// State represents the logical state of the fan.
type State string

const (
	StateOff    State = "Off"
	StateOn     State = "On"
	StateFailed State = "Failed"
)

// Outcome is the result of a transition request.
type Outcome int

const (
	// OutcomeApplied means the requested state is now current.
	OutcomeApplied Outcome = iota
	// OutcomeInvalidParameter means the label was not a legal target. No state change.
	OutcomeInvalidParameter
	// OutcomeActuatorFailed means the fan is in (or just entered) the Failed state.
	OutcomeActuatorFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "Applied"
	case OutcomeInvalidParameter:
		return "InvalidParameter"
	case OutcomeActuatorFailed:
		return "ActuatorFailed"
	default:
		return "Unknown"
	}
}

// Output drives the physical fan line.
type Output interface {
	// Write sets the line high (fan running) or low (fan stopped).
	Write(high bool) error
}

// ErrOutput wraps a physical output failure that tripped the fan into Failed.
var ErrOutput = errors.New("fan output write failed")
