package cookie

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Manager reads and writes cookies in a jar on behalf of one origin.
type Manager struct {
	jar      http.CookieJar
	origin   *url.URL
	defaults Options
}

// New creates a manager for origin. A nil jar gets a fresh jar backed by the
// public suffix list so parent-domain cookies are validated like a browser does.
func New(origin string, jar http.CookieJar, opts ...Option) (*Manager, error) {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, ErrInvalidOrigin
	}

	if jar == nil {
		jar, err = NewJar()
		if err != nil {
			return nil, err
		}
	}

	defaults := applyOptions(Options{
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}, opts)
	if err := defaults.Validate(); err != nil {
		return nil, err
	}

	return &Manager{
		jar:      jar,
		origin:   &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
		defaults: defaults,
	}, nil
}

// NewJar returns a cookie jar using the public suffix list.
func NewJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// Jar exposes the underlying jar, e.g. for an http.Client.
func (m *Manager) Jar() http.CookieJar {
	return m.jar
}

// Origin returns the origin the manager acts for.
func (m *Manager) Origin() *url.URL {
	u := *m.origin
	return &u
}

// Options returns the effective scope attributes.
func (m *Manager) Options() Options {
	return m.defaults
}

func (m *Manager) Set(name, value string, opts ...Option) error {
	if name == "" {
		return ErrInvalidName
	}
	options := applyOptions(m.defaults, opts)
	if err := options.Validate(); err != nil {
		return err
	}
	m.jar.SetCookies(m.origin, []*http.Cookie{m.build(name, value, options)})
	return nil
}

func (m *Manager) Get(name string) (string, error) {
	for _, c := range m.jar.Cookies(m.origin) {
		if c.Name == name {
			return c.Value, nil
		}
	}
	return "", ErrCookieNotFound
}

// Delete expires the cookie using the manager's configured scope.
func (m *Manager) Delete(name string) {
	m.DeleteWith(name)
}

// DeleteWith expires the cookie using explicit attributes layered over the
// defaults. Attributes that differ from the ones used by Set leave the
// original cookie in place.
func (m *Manager) DeleteWith(name string, opts ...Option) {
	options := applyOptions(m.defaults, opts)
	c := m.build(name, "", options)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	m.jar.SetCookies(m.origin, []*http.Cookie{c})
}

func (m *Manager) build(name, value string, o Options) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		Secure:   o.Secure,
		HttpOnly: o.HttpOnly,
		SameSite: o.SameSite,
	}
}
