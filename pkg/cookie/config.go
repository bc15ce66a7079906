package cookie

import (
	"net/http"
	"net/url"
	"strings"
)

// Config holds the shared cookie settings. Name and encoding must match across
// every consuming application.
type Config struct {
	Name          string `env:"SSO_COOKIE_NAME" envDefault:"sso_session"`
	Origin        string `env:"SSO_ORIGIN" envDefault:"http://localhost:3000"`
	ParentDomains string `env:"SSO_PARENT_DOMAINS" envDefault:""`
	Path          string `env:"SSO_COOKIE_PATH" envDefault:"/"`
	MaxAge        int    `env:"SSO_COOKIE_MAX_AGE" envDefault:"2592000"`
}

// DefaultConfig returns default cookie configuration
func DefaultConfig() Config {
	return Config{
		Name:   "sso_session",
		Origin: "http://localhost:3000",
		Path:   "/",
		MaxAge: 30 * 24 * 60 * 60,
	}
}

// parseParents splits the comma separated parent domain list.
func (c Config) parseParents() []string {
	if c.ParentDomains == "" {
		return nil
	}
	parts := strings.Split(c.ParentDomains, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NewFromConfig creates a Manager whose scope is derived from the origin host
// and the configured parent domains.
func NewFromConfig(cfg Config, jar http.CookieJar, opts ...Option) (*Manager, error) {
	u, err := url.Parse(cfg.Origin)
	if err != nil || u.Host == "" {
		return nil, ErrInvalidOrigin
	}

	configOpts := ScopeFor(u.Host, u.Scheme == "https", cfg.parseParents())
	if cfg.Path != "" {
		configOpts = append(configOpts, WithPath(cfg.Path))
	}
	if cfg.MaxAge != 0 {
		configOpts = append(configOpts, WithMaxAge(cfg.MaxAge))
	}
	configOpts = append(configOpts, opts...)

	return New(cfg.Origin, jar, configOpts...)
}
