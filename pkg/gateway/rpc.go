package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/identity"
)

// Resource and procedure names understood by the backend.
const (
	ResourceOrganizations = "organizations"
	ResourceMemberships   = "memberships"

	RPCValidateInvitation = "validate_invitation"
	RPCAcceptInvitation   = "accept_invitation"
	RPCCreateInvitation   = "create_invitation"
	RPCStartImpersonation = "start_impersonation"
	RPCStopImpersonation  = "stop_impersonation"
)

// CreateInvitationParams describes a new invitation.
type CreateInvitationParams struct {
	Email          string        `json:"email"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	Role           identity.Role `json:"role"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

// Membership links a user to an organization with a role.
type Membership struct {
	UserID         uuid.UUID     `json:"user_id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	Role           identity.Role `json:"role"`
}

type tokenArgs struct {
	Token string `json:"token"`
}

type orgArgs struct {
	OrganizationID uuid.UUID `json:"organization_id"`
}

// ValidateInvitation looks an invitation up by its token. It does not
// consume it.
func (c *Client) ValidateInvitation(ctx context.Context, token string) (identity.Invitation, error) {
	var inv identity.Invitation
	err := c.RPC(ctx, RPCValidateInvitation, tokenArgs{Token: token}, &inv)
	return inv, err
}

// AcceptInvitation consumes an invitation for the signed-in user, joining
// its organization with its role.
func (c *Client) AcceptInvitation(ctx context.Context, token string) (identity.Invitation, error) {
	var inv identity.Invitation
	err := c.RPC(ctx, RPCAcceptInvitation, tokenArgs{Token: token}, &inv)
	return inv, err
}

// CreateInvitation issues an invitation. The backend rejects non-admins.
func (c *Client) CreateInvitation(ctx context.Context, p CreateInvitationParams) (identity.Invitation, error) {
	var inv identity.Invitation
	err := c.RPC(ctx, RPCCreateInvitation, p, &inv)
	return inv, err
}

// StartImpersonation begins a superuser view of another organization and
// returns that organization.
func (c *Client) StartImpersonation(ctx context.Context, orgID uuid.UUID) (identity.Organization, error) {
	var org identity.Organization
	err := c.RPC(ctx, RPCStartImpersonation, orgArgs{OrganizationID: orgID}, &org)
	return org, err
}

// StopImpersonation ends the superuser view.
func (c *Client) StopImpersonation(ctx context.Context) error {
	return c.RPC(ctx, RPCStopImpersonation, nil, nil)
}

// GetOrganization loads one organization by id.
func (c *Client) GetOrganization(ctx context.Context, id uuid.UUID) (identity.Organization, error) {
	return c.findOrganization(ctx, Eq("id", id))
}

// FindOrganizationByDomain loads the organization registered for an email
// domain. It returns ErrNotFound when there is none.
func (c *Client) FindOrganizationByDomain(ctx context.Context, domain string) (identity.Organization, error) {
	return c.findOrganization(ctx, Eq("domain", domain))
}

// CreateOrganization inserts an organization and returns the stored row.
func (c *Client) CreateOrganization(ctx context.Context, org identity.Organization) (identity.Organization, error) {
	var rows []identity.Organization
	if err := c.Insert(ctx, ResourceOrganizations, org, &rows); err != nil {
		return identity.Organization{}, err
	}
	if len(rows) == 0 {
		return org, nil
	}
	return rows[0], nil
}

// AddMembership joins a user to an organization.
func (c *Client) AddMembership(ctx context.Context, m Membership) error {
	return c.Insert(ctx, ResourceMemberships, m, nil)
}

func (c *Client) findOrganization(ctx context.Context, f Filter) (identity.Organization, error) {
	var rows []identity.Organization
	if err := c.Select(ctx, ResourceOrganizations, Query{Filters: []Filter{f}, Limit: 1}, &rows); err != nil {
		return identity.Organization{}, err
	}
	if len(rows) == 0 {
		return identity.Organization{}, ErrNotFound
	}
	return rows[0], nil
}
