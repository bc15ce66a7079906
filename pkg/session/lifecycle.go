package session

import "fmt"

// State is a lifecycle state of the Store.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
	StateSigningOut    State = "signing_out"
)

func (s State) String() string {
	return string(s)
}

// Event drives a lifecycle transition.
type Event string

const (
	EventInitialize Event = "initialize"
	EventSignIn     Event = "sign_in"
	EventResolve    Event = "resolve"
	EventReject     Event = "reject"
	EventExpire     Event = "expire"
	EventSignOut    Event = "sign_out"
	EventSignedOut  Event = "signed_out"
)

type transition struct {
	from  State
	event Event
	to    State
}

var transitions = []transition{
	{StateUninitialized, EventInitialize, StateInitializing},
	{StateAnonymous, EventInitialize, StateInitializing},
	{StateAuthenticated, EventInitialize, StateInitializing},

	{StateUninitialized, EventSignIn, StateInitializing},
	{StateAnonymous, EventSignIn, StateInitializing},
	{StateAuthenticated, EventSignIn, StateInitializing},

	{StateInitializing, EventResolve, StateAuthenticated},
	{StateInitializing, EventReject, StateAnonymous},

	{StateAuthenticated, EventExpire, StateAnonymous},

	{StateUninitialized, EventSignOut, StateSigningOut},
	{StateInitializing, EventSignOut, StateSigningOut},
	{StateAuthenticated, EventSignOut, StateSigningOut},
	{StateAnonymous, EventSignOut, StateSigningOut},
	{StateSigningOut, EventSignedOut, StateAnonymous},
}

// next returns the state event leads to from, or an error when the event
// is not allowed there.
func next(from State, event Event) (State, error) {
	for _, t := range transitions {
		if t.from == from && t.event == event {
			return t.to, nil
		}
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
}

// CanFire reports whether event is allowed in state.
func CanFire(state State, event Event) bool {
	_, err := next(state, event)
	return err == nil
}
