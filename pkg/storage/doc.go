// Package storage provides the dual-tier key-value store that keeps an
// application's local credential cache converged with the cross-subdomain
// single-sign-on cookie.
//
// An Adapter combines a fast local Tier (memory, file or Redis) with a
// SharedTier (the shared cookie). Reads prefer the local tier and fall back to
// the shared tier, filling the local cache on a hit. Writes always land in the
// local tier; values that carry a token pair are mirrored into the shared tier
// as the minimal {access, refresh} projection.
//
// Removing a key never touches the shared tier. The shared credential is deleted
// only through ClearShared, which the terminal sign-out transition calls.
// While a sign-out is draining (BeginSignOut until EndSignOut) the shared tier
// is neither read nor written, so a removed session cannot be restored from the
// cookie behind the caller's back.
//
// # Usage
//
//	cm, _ := cookie.NewFromConfig(cookie.DefaultConfig(), nil)
//	a := storage.NewAdapter(storage.NewMemoryTier(), storage.NewCookieTier(cm, "sso_session"))
//
//	a.Set("auth.session", `{"access_token":"A","refresh_token":"R"}`)
//	v, ok := a.Get("auth.session")
//
// Tiers report misses as ok == false; backend errors are logged and treated as
// misses so callers never block on a broken cache.
package storage
