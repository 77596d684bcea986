package fan

import (
	"fmt"
	"sync"
)

// ParseTarget converts a caller-supplied label into a target state.
// Only "On" and "Off" are legal targets; matching is case-sensitive.
func ParseTarget(label string) (State, bool) {
	switch State(label) {
	case StateOn:
		return StateOn, true
	case StateOff:
		return StateOff, true
	default:
		return "", false
	}
}

// Transition is the pure transition function. It returns the state that
// should become current and the outcome of the request.
func Transition(current State, label string) (State, Outcome) {
	if current == StateFailed {
		return StateFailed, OutcomeActuatorFailed
	}
	target, ok := ParseTarget(label)
	if !ok {
		return current, OutcomeInvalidParameter
	}
	return target, OutcomeApplied
}

// Machine owns the process-wide fan state. All reads and writes go through
// its mutex, and the physical output is written while the lock is held so
// that a snapshot never observes a state the line has not been driven to.
type Machine struct {
	mu    sync.Mutex
	state State
	out   Output
	fault error
}

// NewMachine creates a Machine in the Off state. The output is assumed to be
// already driven low; NewMachine does not write to it.
func NewMachine(out Output) *Machine {
	return &Machine{
		state: StateOff,
		out:   out,
	}
}

// Apply requests a transition to the state named by label.
// It returns the state after the request and the outcome.
//
// If the output write fails the machine enters Failed and the request is
// reported as OutcomeActuatorFailed.
func (m *Machine) Apply(label string) (State, Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, outcome := Transition(m.state, label)
	if outcome != OutcomeApplied {
		return m.state, outcome
	}

	if m.out != nil {
		if err := m.out.Write(next == StateOn); err != nil {
			m.state = StateFailed
			m.fault = fmt.Errorf("%w: %v", ErrOutput, err)
			return m.state, OutcomeActuatorFailed
		}
	}

	m.state = next
	return next, OutcomeApplied
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Trip forces the machine into Failed. There is no way back short of a restart.
// Tripping an already failed machine keeps the first recorded fault.
func (m *Machine) Trip(reason error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateFailed {
		return
	}
	m.state = StateFailed
	m.fault = reason
}

// Status returns the state and fault together, read under one lock so a
// Failed state is never seen without its fault or the reverse.
func (m *Machine) Status() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.fault
}

// Fault returns the reason the machine failed, or nil.
func (m *Machine) Fault() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fault
}
