// Package session is the client-side identity store shared by every
// sub-application: it acquires, verifies, refreshes and discards sessions,
// and keeps them in sync across subdomains through the storage adapter.
//
// # Lifecycle
//
// A Store moves through these states:
//
//	Uninitialized -> Initializing -> Authenticated | Anonymous
//	Anonymous | Authenticated -> Initializing        (sign-in, sign-up, re-initialize)
//	Authenticated -> Anonymous                       (refresh rejected)
//	any -> SigningOut -> Anonymous                   (sign-out)
//
// Initialize is de-duplicated: concurrent callers while one run is pending
// all receive the result of that run.
//
// # Results
//
// Public operations never panic or return bare errors to the UI. They return
// a Result whose Reason is a human readable message and whose Err carries
// the cause for logging and errors.Is checks.
//
// # Persistence
//
// The token pair is written through the storage adapter, which mirrors it to
// the shared cookie. The identity projection (user, organization and
// impersonation flags) goes to the local tier only and is rehydrated
// synchronously by New, before Initialize completes.
package session
