// Package identity defines the data model shared by the session, gateway and
// connection packages: sessions, resolved identities, organizations,
// invitations and the impersonation state of a superuser.
package identity
