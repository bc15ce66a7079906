// Package ssokit keeps users signed in across independently deployed
// applications that share a parent domain.
//
// A Kit wires the pieces from one Config:
//
//   - a storage adapter that keeps a local tier and the shared cookie in sync
//   - a connection manager that owns the backend handle and replaces it when
//     it degrades
//   - the session store with its lifecycle state machine
//   - a direct client that bypasses the managed handle
//
// Basic usage:
//
//	cfg, err := ssokit.LoadConfig()
//	if err != nil {
//		return err
//	}
//	kit, err := ssokit.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer kit.Close()
//
//	res := kit.Store.Initialize(ctx)
//	if !res.OK {
//		// show the sign-in form, res.Reason explains why
//	}
//
// Server-rendered applications mount Middleware to accept credentials
// handed over from a sibling application. It also assigns a request id that
// is forwarded to the backend and added to log records:
//
//	r := chi.NewRouter()
//	r.Use(kit.Middleware())
//
// A bypass call that discovers an expired access token signs the application
// out once; the guard is rearmed by the next successful sign-in.
package ssokit
