package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/gateway/gatewaytest"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/session"
)

func TestImpersonate_RequiresSuperuser(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	srv.AddUser("jane@example.com", password)
	target := srv.AddOrganization(identity.Organization{Name: "Initech", Slug: "initech"})

	a := newApp(t, srv, env{})
	signedIn(t, a, "jane@example.com")

	res := a.store.Impersonate(context.Background(), target.ID)
	assert.False(t, res.OK)
	assert.Equal(t, session.ReasonNotAuthorized, res.Reason)
	assert.ErrorIs(t, res.Err, session.ErrNotAuthorized)
	assert.Equal(t, 0, srv.Calls("POST /rest/v1/rpc/start_impersonation"))
	assert.False(t, a.store.Snapshot().Impersonation.IsImpersonating)
}

func TestImpersonate_RequiresSignIn(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	a := newApp(t, srv, env{})

	res := a.store.Impersonate(context.Background(), uuid.New())
	assert.ErrorIs(t, res.Err, session.ErrNotAuthenticated)
}

func TestImpersonate_Lifecycle(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	root := srv.AddUser("root@example.com", password)
	srv.SetSuperuser("root@example.com", true)
	home := srv.AddOrganization(identity.Organization{Name: "Ops", Slug: "ops"})
	srv.AddMembership(root.ID, home.ID, identity.RoleOwner)
	target := srv.AddOrganization(identity.Organization{Name: "Initech", Slug: "initech"})

	a := newApp(t, srv, env{})
	signedIn(t, a, "root@example.com")

	snap := a.store.Snapshot()
	assert.True(t, snap.Impersonation.IsSuperuser)
	orgID, ok := a.store.EffectiveOrganizationID()
	require.True(t, ok)
	assert.Equal(t, home.ID, orgID)

	res := a.store.Impersonate(context.Background(), target.ID)
	require.True(t, res.OK, "%s %v", res.Reason, res.Err)

	snap = a.store.Snapshot()
	assert.True(t, snap.Impersonation.IsImpersonating)
	require.NotNil(t, snap.Impersonation.TargetOrgName)
	assert.Equal(t, "Initech", *snap.Impersonation.TargetOrgName)
	orgID, _ = a.store.EffectiveOrganizationID()
	assert.Equal(t, target.ID, orgID)

	onServer, ok := srv.Impersonating(root.ID)
	require.True(t, ok)
	assert.Equal(t, target.ID, onServer)

	reloaded := newApp(t, srv, env{Local: a.local})
	assert.True(t, reloaded.store.Snapshot().Impersonation.IsImpersonating, "impersonation survives a reload")
	require.True(t, reloaded.store.Initialize(context.Background()).OK)
	assert.True(t, reloaded.store.Snapshot().Impersonation.IsImpersonating, "verification keeps impersonation")

	res = a.store.EndImpersonation(context.Background())
	assert.True(t, res.OK)
	assert.NoError(t, res.Err)

	snap = a.store.Snapshot()
	assert.False(t, snap.Impersonation.IsImpersonating)
	assert.Nil(t, snap.Impersonation.TargetOrgID)
	assert.True(t, snap.Impersonation.IsSuperuser)
	orgID, _ = a.store.EffectiveOrganizationID()
	assert.Equal(t, home.ID, orgID)

	_, ok = srv.Impersonating(root.ID)
	assert.False(t, ok)
}

func TestEndImpersonation_ClearsLocallyWhenBackendFails(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	srv.AddUser("root@example.com", password)
	srv.SetSuperuser("root@example.com", true)
	target := srv.AddOrganization(identity.Organization{Name: "Initech", Slug: "initech"})

	a := newApp(t, srv, env{})
	signedIn(t, a, "root@example.com")
	require.True(t, a.store.Impersonate(context.Background(), target.ID).OK)

	srv.SetDown(true)
	res := a.store.EndImpersonation(context.Background())
	assert.True(t, res.OK)
	assert.Error(t, res.Err)
	assert.False(t, a.store.Snapshot().Impersonation.IsImpersonating)
}

func TestCreateInvitation(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	admin := srv.AddUser("admin@acme.com", password)
	member := srv.AddUser("member@acme.com", password)
	org := srv.AddOrganization(identity.Organization{Name: "Acme", Slug: "acme", Domain: "acme.com"})
	srv.AddMembership(admin.ID, org.ID, identity.RoleAdmin)
	srv.AddMembership(member.ID, org.ID, identity.RoleMember)

	t.Run("admin invites", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, srv, env{})
		signedIn(t, a, "admin@acme.com")

		inv, res := a.store.CreateInvitation(context.Background(), "new@partner.io", identity.RoleMember)
		require.True(t, res.OK, "%s %v", res.Reason, res.Err)
		assert.Equal(t, org.ID, inv.OrganizationID)
		assert.NotEmpty(t, inv.Token)

		stored, ok := srv.Invitation(inv.Token)
		require.True(t, ok)
		assert.Equal(t, "new@partner.io", stored.Email)
		assert.WithinDuration(t, time.Now().Add(session.DefaultConfig().InviteTTL), stored.ExpiresAt, time.Minute)
	})

	t.Run("member is refused locally", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, srv, env{})
		signedIn(t, a, "member@acme.com")

		_, res := a.store.CreateInvitation(context.Background(), "new@partner.io", identity.RoleMember)
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, session.ErrNotAuthorized)
	})

	t.Run("invalid role", func(t *testing.T) {
		t.Parallel()

		a := newApp(t, srv, env{})
		signedIn(t, a, "admin@acme.com")

		_, res := a.store.CreateInvitation(context.Background(), "new@partner.io", identity.RoleSuperAdmin)
		assert.ErrorIs(t, res.Err, session.ErrInvalidRole)

		_, res = a.store.CreateInvitation(context.Background(), "new@partner.io", identity.Role("janitor"))
		assert.ErrorIs(t, res.Err, session.ErrInvalidRole)
	})
}
