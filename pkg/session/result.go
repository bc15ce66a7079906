package session

// Human readable failure reasons.
const (
	ReasonNoSession          = "No saved session"
	ReasonSessionExpired     = "Your session has expired. Please sign in again."
	ReasonNotAuthenticated   = "You need to sign in first"
	ReasonNotAuthorized      = "You are not authorized to perform this action"
	ReasonBusy               = "Another sign-in is already in progress"
	ReasonInvalidEmail       = "Enter a valid email address"
	ReasonInvalidRole        = "Unknown role"
	ReasonInvitationRequired = "An invitation is required to sign up with this email address"
	ReasonInvitationMismatch = "This invitation was issued for a different email address"
	ReasonInvitationExpired  = "This invitation has expired or was already used"
	ReasonNoRelay            = "No credentials were handed over"
)

// Result is the outcome of a Store operation.
type Result struct {
	OK     bool
	State  State
	Reason string
	Err    error
}

func succeeded(state State) Result {
	return Result{OK: true, State: state}
}

func failed(state State, reason string, err error) Result {
	return Result{State: state, Reason: reason, Err: err}
}
