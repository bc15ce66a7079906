// Package gateway is the client for the remote identity and data backend.
//
// A Client is the connection handle that the connection package swaps on
// reconnect. It owns the current session, runs an optional background
// refresh loop and exposes three endpoint families:
//
//   - token grants (password and refresh) at /auth/v1/token, spoken through
//     golang.org/x/oauth2, plus sign-up, user lookup and sign-out;
//   - resources under /rest/v1/{resource} with PostgREST style filters;
//   - remote procedures under /rest/v1/rpc/{name} for invitations and
//     impersonation.
//
// Every non-2xx response becomes a *Error. IsTokenExpired separates the
// "JWT expired" rejection from other 401s by inspecting the body, and
// IsNetworkError reports failures where no response was received at all.
//
//	c, err := gateway.NewFromConfig(cfg, gateway.WithLogger(log))
//	sess, err := c.SignInWithPassword(ctx, "jane@example.com", "secret")
//	me, err := c.GetUser(ctx)
//
// The gatewaytest subpackage provides an in-memory backend for tests.
package gateway
