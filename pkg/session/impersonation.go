package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
)

// Impersonate lets a superuser act within another organization. Non
// superusers are refused without contacting the backend.
func (s *Store) Impersonate(ctx context.Context, orgID uuid.UUID) Result {
	snap := s.Snapshot()
	if !snap.Authenticated() || snap.User == nil {
		return failed(snap.State, ReasonNotAuthenticated, ErrNotAuthenticated)
	}
	if !snap.Impersonation.IsSuperuser {
		return failed(snap.State, ReasonNotAuthorized, ErrNotAuthorized)
	}

	var org identity.Organization
	err := s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
		var err error
		org, err = c.StartImpersonation(ctx, orgID)
		return err
	})
	if err != nil {
		return failed(s.State(), gateway.Reason(err), err)
	}

	id, name := org.ID, org.Name
	if err := s.apply("", func() {
		s.imp = identity.ImpersonationState{
			IsSuperuser:     true,
			IsImpersonating: true,
			TargetOrgID:     &id,
			TargetOrgName:   &name,
		}
	}); err != nil {
		return failed(s.State(), ReasonBusy, err)
	}

	s.logger.Info("impersonation started", logger.UserID(snap.User.ID), logger.OrganizationID(id))
	return succeeded(s.State())
}

// EndImpersonation returns to the superuser's own organization. Local state
// is cleared even if the backend call fails; the failure is reported in Err
// of an otherwise successful result.
func (s *Store) EndImpersonation(ctx context.Context) Result {
	snap := s.Snapshot()
	if !snap.Impersonation.IsImpersonating {
		return succeeded(snap.State)
	}

	err := s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
		return c.StopImpersonation(ctx)
	})

	_ = s.apply("", func() {
		s.imp = identity.ImpersonationState{IsSuperuser: s.imp.IsSuperuser}
	})

	res := succeeded(s.State())
	if err != nil {
		s.logger.Warn("backend did not end impersonation", logger.Error(err))
		res.Err = err
	}
	return res
}
