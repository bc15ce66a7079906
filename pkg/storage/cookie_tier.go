package storage

import "github.com/dmitrymomot/ssokit/pkg/cookie"

// CookieTier stores the shared credential in a single named cookie.
type CookieTier struct {
	mgr  *cookie.Manager
	name string
}

// NewCookieTier binds a cookie manager to the shared cookie name.
func NewCookieTier(mgr *cookie.Manager, name string) *CookieTier {
	return &CookieTier{mgr: mgr, name: name}
}

func (c *CookieTier) Read() (string, bool) {
	v, err := c.mgr.Get(c.name)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (c *CookieTier) Write(value string) error {
	if value == "" {
		return ErrEmptyValue
	}
	return c.mgr.Set(c.name, value)
}

// Clear deletes the cookie with the same scope attributes it was written with.
func (c *CookieTier) Clear() error {
	c.mgr.Delete(c.name)
	return nil
}
