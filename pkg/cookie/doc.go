// Package cookie manages the shared single-sign-on cookie from the client side.
//
// A Manager acts on behalf of one application origin (for example
// https://app.example.com) against an http.CookieJar that may be shared by
// several applications. Cookies are written with a fixed scope: the common
// parent domain on multi-subdomain deployments, host-only on single-host ones.
//
// # Usage
//
//	import "github.com/dmitrymomot/ssokit/pkg/cookie"
//
//	scope := cookie.ScopeFor("app.example.com", true, []string{"example.com"})
//	m, err := cookie.New("https://app.example.com", nil, scope...)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = m.Set("sso_session", encodedPair)
//	v, err := m.Get("sso_session")
//	m.Delete("sso_session")
//
// # Deletion semantics
//
// Cookie jars key entries by domain, path and name. Delete always reuses the
// attributes the manager was configured with, which are the attributes Set
// used. DeleteWith accepts explicit attributes; if they differ from the ones the
// cookie was written with, the jar keeps the original cookie. This mirrors
// browser behaviour and is the reason the scope is fixed per manager.
package cookie
