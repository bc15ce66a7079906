package session

import (
	"context"
	"strings"

	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
)

// CreateInvitation invites email to the effective organization with role.
// Only admins may invite; the check is repeated by the backend.
func (s *Store) CreateInvitation(ctx context.Context, email string, role identity.Role) (identity.Invitation, Result) {
	snap := s.Snapshot()
	if !snap.Authenticated() || snap.User == nil {
		return identity.Invitation{}, failed(snap.State, ReasonNotAuthenticated, ErrNotAuthenticated)
	}
	if !snap.User.IsAdmin() {
		return identity.Invitation{}, failed(snap.State, ReasonNotAuthorized, ErrNotAuthorized)
	}
	if !role.Valid() || role.IsSuperuser() {
		return identity.Invitation{}, failed(snap.State, ReasonInvalidRole, ErrInvalidRole)
	}
	email = strings.TrimSpace(email)
	if _, ok := emailDomain(email); !ok {
		return identity.Invitation{}, failed(snap.State, ReasonInvalidEmail, ErrInvalidEmail)
	}
	orgID, ok := snap.EffectiveOrganizationID()
	if !ok {
		return identity.Invitation{}, failed(snap.State, ReasonNotAuthorized, ErrNotAuthorized)
	}

	var inv identity.Invitation
	err := s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
		var err error
		inv, err = c.CreateInvitation(ctx, gateway.CreateInvitationParams{
			Email:          email,
			OrganizationID: orgID,
			Role:           role,
			ExpiresAt:      s.now().Add(s.cfg.InviteTTL),
		})
		return err
	})
	if err != nil {
		return identity.Invitation{}, failed(s.State(), gateway.Reason(err), err)
	}
	return inv, succeeded(s.State())
}
