package identity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role is a membership role inside an organization.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleMember     Role = "member"
	RoleViewer     Role = "viewer"
	RoleSuperAdmin Role = "superadmin"
)

// IsAdmin reports whether the role grants administrative actions.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsSuperuser reports whether the role may impersonate other organizations.
func (r Role) IsSuperuser() bool {
	return r == RoleSuperAdmin
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Identity is the resolved profile behind a valid session.
type Identity struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"display_name,omitempty"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           Role      `json:"role"`
}

// IsAdmin derives from Role; it is never stored.
func (i Identity) IsAdmin() bool {
	return i.Role.IsAdmin()
}

// IsSuperuser derives from Role; it is never stored.
func (i Identity) IsSuperuser() bool {
	return i.Role.IsSuperuser()
}

// Organization is a tenant. Identities reference it by id.
type Organization struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Domain   string          `json:"domain,omitempty"`
	Settings json.RawMessage `json:"settings,omitempty"`
	Limits   json.RawMessage `json:"limits,omitempty"`
}

// Invitation grants an email address a role in an organization.
type Invitation struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Role           Role       `json:"role"`
	Token          string     `json:"token"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
}

// Usable reports whether the invitation can still be consumed at now.
func (i Invitation) Usable(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}

// ImpersonationState is the superuser view redirection. When active it takes
// precedence over the real organization.
type ImpersonationState struct {
	IsSuperuser     bool       `json:"is_superuser"`
	IsImpersonating bool       `json:"is_impersonating"`
	TargetOrgID     *uuid.UUID `json:"target_org_id,omitempty"`
	TargetOrgName   *string    `json:"target_org_name,omitempty"`
}

// EffectiveOrganizationID resolves the organization the UI should act on.
func EffectiveOrganizationID(imp ImpersonationState, org *Organization) (uuid.UUID, bool) {
	if imp.IsImpersonating && imp.TargetOrgID != nil {
		return *imp.TargetOrgID, true
	}
	if org != nil && org.ID != uuid.Nil {
		return org.ID, true
	}
	return uuid.Nil, false
}
