package approval

import "errors"

// ErrTerminalState indicates a transition was attempted from a terminal
// status. The attempt is rejected locally; callers audit it as a denied
// precondition rather than propagating a hard failure.
var ErrTerminalState = errors.New("approval: request is in a terminal state")

// ErrInvalidTransition indicates the requested transition is not in the
// state machine.
var ErrInvalidTransition = errors.New("approval: invalid transition")

// transitions is the full state machine. Terminal states have no outgoing
// edges.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled, StatusEscalated, StatusExpired},
	StatusEscalated: {StatusApproved, StatusRejected, StatusEscalated, StatusExpired},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition distinguishes the terminal-state case from a merely
// illegal edge, so callers can audit the former precisely.
func checkTransition(from, to Status) error {
	if from.Terminal() {
		return ErrTerminalState
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
