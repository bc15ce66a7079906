package cookie

import (
	"net/http"
	"strings"
)

// Options are the scope attributes of the shared cookie. Every application
// must write and delete the cookie with identical Domain and Path, or the
// deletion leaves the original in place.
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

// Validate rejects combinations that clients silently drop, currently
// SameSite=None without Secure.
func (o Options) Validate() error {
	if o.SameSite == http.SameSiteNoneMode && !o.Secure {
		return ErrInsecureSameSite
	}
	return nil
}

// SameScope reports whether a cookie written with o is replaced or deleted
// by one written with other.
func (o Options) SameScope(other Options) bool {
	return normalizeDomain(o.Domain) == normalizeDomain(other.Domain) && o.Path == other.Path
}

func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimPrefix(d, "."))
}

// Option overrides one scope attribute.
type Option func(*Options)

func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

// WithDomain scopes the cookie to domain and its subdomains. An empty domain
// makes the cookie host-only.
func WithDomain(domain string) Option {
	return func(o *Options) { o.Domain = domain }
}

func WithMaxAge(seconds int) Option {
	return func(o *Options) { o.MaxAge = seconds }
}

func WithSecure(secure bool) Option {
	return func(o *Options) { o.Secure = secure }
}

// WithHTTPOnly hides the cookie from page scripts. Applications that read
// the shared credential client-side must leave it off.
func WithHTTPOnly(httpOnly bool) Option {
	return func(o *Options) { o.HttpOnly = httpOnly }
}

func WithSameSite(sameSite http.SameSite) Option {
	return func(o *Options) { o.SameSite = sameSite }
}

func applyOptions(base Options, opts []Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}
