package session

import "errors"

var (
	ErrInvalidTransition  = errors.New("session.invalid_transition")
	ErrNoSession          = errors.New("session.no_session")
	ErrSessionExpired     = errors.New("session.expired")
	ErrNotAuthenticated   = errors.New("session.not_authenticated")
	ErrNotAuthorized      = errors.New("session.not_authorized")
	ErrInvalidEmail       = errors.New("session.invalid_email")
	ErrInvalidRole        = errors.New("session.invalid_role")
	ErrInvitationRequired = errors.New("session.invitation_required")
	ErrInvitationMismatch = errors.New("session.invitation_mismatch")
	ErrInvitationExpired  = errors.New("session.invitation_expired")
	ErrNoRelay            = errors.New("session.no_relay")
)
