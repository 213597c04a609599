// Package workflow implements the self-healing restart state machine that
// drives solver attempts to convergence or a terminal failure.
package workflow

import (
	"fmt"

	"github.com/TheFermiSea/crystalmath/internal/domain"
)

// State is a phase of the restart state machine.
type State string

const (
	StateValidating  State = "validating"
	StateSubmitted   State = "submitted"
	StateInspecting  State = "inspecting"
	StateRemediating State = "remediating"
	StateSucceeded   State = "succeeded"
	StateExhausted   State = "exhausted_retries"
	StateFatal       State = "fatal"
)

// validTransitions defines the legal state transitions.
// Each key is a source state, and the value is the set of valid targets.
var validTransitions = map[State]map[State]bool{
	StateValidating:  {StateSubmitted: true, StateFatal: true},
	StateSubmitted:   {StateInspecting: true, StateFatal: true},
	StateInspecting:  {StateRemediating: true, StateSucceeded: true, StateExhausted: true, StateFatal: true},
	StateRemediating: {StateSubmitted: true, StateFatal: true},
}

// IsValidTransition checks if a state transition is legal.
func IsValidTransition(from, to State) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether the state ends the session.
func IsTerminal(s State) bool {
	return s == StateSucceeded || s == StateExhausted || s == StateFatal
}

// advance moves the machine to the next state, guarding against programming
// errors that would skip a phase.
func advance(current *State, to State) error {
	if !IsValidTransition(*current, to) {
		return domain.NewEngineError(
			domain.ErrInvalidTransition.Code,
			fmt.Sprintf("illegal transition %s -> %s", *current, to),
		)
	}
	*current = to
	return nil
}
