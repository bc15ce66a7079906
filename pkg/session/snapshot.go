package session

import (
	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/identity"
)

// Snapshot is an immutable view of the store.
type Snapshot struct {
	State State
	// Provisional marks an Authenticated state that could not be verified
	// because the backend was unreachable.
	Provisional   bool
	User          *identity.Identity
	Organization  *identity.Organization
	Impersonation identity.ImpersonationState
}

// Authenticated reports whether the snapshot is in the Authenticated state.
func (s Snapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

// EffectiveOrganizationID prefers the impersonation target over the real
// organization.
func (s Snapshot) EffectiveOrganizationID() (uuid.UUID, bool) {
	return identity.EffectiveOrganizationID(s.Impersonation, s.Organization)
}

// Persisted is the projection saved locally and rehydrated at startup.
type Persisted struct {
	User          *identity.Identity          `json:"user,omitempty"`
	Organization  *identity.Organization      `json:"organization,omitempty"`
	Impersonation identity.ImpersonationState `json:"impersonation"`
}

// Empty reports whether there is nothing worth saving.
func (p Persisted) Empty() bool {
	return p.User == nil && p.Organization == nil && !p.Impersonation.IsImpersonating
}

// ToPersisted selects the fields that survive a restart.
func (s Snapshot) ToPersisted() Persisted {
	return Persisted{
		User:          s.User,
		Organization:  s.Organization,
		Impersonation: s.Impersonation,
	}
}

func cloneIdentity(id *identity.Identity) *identity.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneOrganization(org *identity.Organization) *identity.Organization {
	if org == nil {
		return nil
	}
	c := *org
	c.Settings = append([]byte(nil), org.Settings...)
	c.Limits = append([]byte(nil), org.Limits...)
	return &c
}

func cloneImpersonation(imp identity.ImpersonationState) identity.ImpersonationState {
	out := identity.ImpersonationState{IsSuperuser: imp.IsSuperuser, IsImpersonating: imp.IsImpersonating}
	if imp.TargetOrgID != nil {
		id := *imp.TargetOrgID
		out.TargetOrgID = &id
	}
	if imp.TargetOrgName != nil {
		name := *imp.TargetOrgName
		out.TargetOrgName = &name
	}
	return out
}
