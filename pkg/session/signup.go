package session

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/slug"
)

// SignUpParams describes a new account.
type SignUpParams struct {
	Email       string
	Password    string
	DisplayName string
	// InviteToken joins the invitation's organization instead of the one
	// derived from the email domain.
	InviteToken string
}

// SignUp creates an account, signs it in and joins an organization.
//
// Without an invitation the email domain must be allowed. The user joins the
// organization registered for the domain, or creates it and becomes its
// owner. With an invitation the email must match the invited one.
func (s *Store) SignUp(ctx context.Context, p SignUpParams) Result {
	prev := s.State()

	email := strings.TrimSpace(p.Email)
	domain, ok := emailDomain(email)
	if !ok {
		return failed(prev, ReasonInvalidEmail, ErrInvalidEmail)
	}

	var inv *identity.Invitation
	if token := strings.TrimSpace(p.InviteToken); token != "" {
		found, res, ok := s.checkInvitation(ctx, token, email)
		if !ok {
			return res
		}
		inv = &found
	} else if !s.domainAllowed(domain) {
		return failed(prev, ReasonInvitationRequired, ErrInvitationRequired)
	}

	if err := s.apply(EventSignIn, nil); err != nil {
		return failed(s.State(), ReasonBusy, err)
	}

	var sess identity.Session
	err := s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
		var err error
		sess, err = c.SignUp(ctx, gateway.SignUpParams{
			Email:       email,
			Password:    p.Password,
			DisplayName: strings.TrimSpace(p.DisplayName),
		})
		return err
	})
	if err != nil {
		s.logger.Info("sign-up failed", logger.Error(err))
		return s.restore(prev, gateway.Reason(err), err)
	}

	s.conn.Current().SetSession(sess)
	joinErr := s.join(ctx, domain, inv)
	if joinErr != nil {
		s.logger.Warn("organization not joined", logger.Error(joinErr))
	}

	res := s.establish(ctx, sess)
	if res.OK && joinErr != nil {
		return failed(res.State, gateway.Reason(joinErr), joinErr)
	}
	return res
}

func (s *Store) checkInvitation(ctx context.Context, token, email string) (identity.Invitation, Result, bool) {
	var inv identity.Invitation
	err := s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
		var err error
		inv, err = c.ValidateInvitation(ctx, token)
		return err
	})
	state := s.State()
	switch {
	case err != nil && gateway.IsNotFound(err):
		return inv, failed(state, ReasonInvitationExpired, errors.Join(ErrInvitationExpired, err)), false
	case err != nil:
		var gerr *gateway.Error
		if errors.As(err, &gerr) && gerr.Status == http.StatusGone {
			return inv, failed(state, ReasonInvitationExpired, errors.Join(ErrInvitationExpired, err)), false
		}
		return inv, failed(state, gateway.Reason(err), err), false
	case !inv.Usable(s.now()):
		return inv, failed(state, ReasonInvitationExpired, ErrInvitationExpired), false
	case !sameEmail(inv.Email, email):
		return inv, failed(state, ReasonInvitationMismatch, ErrInvitationMismatch), false
	}
	return inv, Result{}, true
}

// join attaches the freshly signed-up user to an organization.
func (s *Store) join(ctx context.Context, domain string, inv *identity.Invitation) error {
	if inv != nil {
		return s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
			_, err := c.AcceptInvitation(ctx, inv.Token)
			return err
		})
	}

	return s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
		me, err := c.GetUser(ctx)
		if err != nil {
			return err
		}

		role := identity.RoleMember
		org, err := c.FindOrganizationByDomain(ctx, domain)
		if errors.Is(err, gateway.ErrNotFound) {
			role = identity.RoleOwner
			org, err = c.CreateOrganization(ctx, identity.Organization{
				Name:   slug.OrganizationName(domain),
				Slug:   slug.FromDomain(domain),
				Domain: domain,
			})
		}
		if err != nil {
			return err
		}

		s.logger.Info("joining organization",
			logger.UserID(me.ID),
			logger.OrganizationID(org.ID),
			logger.State(string(role)),
		)
		return c.AddMembership(ctx, gateway.Membership{
			UserID:         me.ID,
			OrganizationID: org.ID,
			Role:           role,
		})
	})
}
