package identity

import (
	"time"

	"github.com/dmitrymomot/ssokit/pkg/token"
)

// Session is one authenticated login: the token pair and its expiry.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether both tokens are present. A session without both is
// never persisted.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// ExpiredAt reports whether the access token is expired at now. A zero
// ExpiresAt is unknown and treated as not expired.
func (s Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires within d of now.
func (s Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !s.ExpiresAt.IsZero() && !now.Add(d).Before(s.ExpiresAt)
}

// Pair returns the minimal projection placed in the shared cookie.
func (s Session) Pair() token.Pair {
	return token.Pair{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

// SessionFromPair builds a session with unknown expiry.
func SessionFromPair(p token.Pair) Session {
	return Session{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}
