// Package mfa drives the multi-factor settings screen as an explicit state
// machine: disabled, setup pending, verifying and enabled.
package mfa

import (
	"errors"
	"fmt"
)

// State is a node of the MFA settings machine.
type State string

const (
	StateDisabled     State = "disabled"
	StateSetupPending State = "setup_pending"
	StateVerifying    State = "verifying"
	StateEnabled      State = "enabled"
)

// Event is a named transition trigger.
type Event string

const (
	EventBeginSetup      Event = "begin_setup"
	EventSubmitCode      Event = "submit_code"
	EventVerifySucceeded Event = "verify_succeeded"
	EventVerifyFailed    Event = "verify_failed"
	EventCancel          Event = "cancel"
	EventDisable         Event = "disable"
	EventBackendEnabled  Event = "backend_enabled"
	EventBackendDisabled Event = "backend_disabled"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("mfa: invalid transition")

var transitions = map[State]map[Event]State{
	StateDisabled: {
		EventBeginSetup:      StateSetupPending,
		EventBackendEnabled:  StateEnabled,
		EventBackendDisabled: StateDisabled,
	},
	StateSetupPending: {
		EventBeginSetup:      StateSetupPending,
		EventSubmitCode:      StateVerifying,
		EventCancel:          StateDisabled,
		EventBackendEnabled:  StateEnabled,
		EventBackendDisabled: StateSetupPending,
	},
	StateVerifying: {
		EventSubmitCode:      StateVerifying,
		EventVerifySucceeded: StateEnabled,
		EventVerifyFailed:    StateSetupPending,
		EventCancel:          StateDisabled,
		EventBackendEnabled:  StateEnabled,
		EventBackendDisabled: StateVerifying,
	},
	StateEnabled: {
		EventDisable:         StateDisabled,
		EventBackendEnabled:  StateEnabled,
		EventBackendDisabled: StateDisabled,
	},
}

// Next returns the state reached from s on e.
func (s State) Next(e Event) (State, error) {
	next, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
	}
	return next, nil
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}
