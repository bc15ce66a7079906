package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/identity"
)

// LoopHooks observe the background refresh loop of a client. Both receive
// the client id.
type LoopHooks struct {
	Started func(id uuid.UUID)
	Stopped func(id uuid.UUID)
}

// SessionListener is called after the client obtained a new session through
// a refresh, including refreshes made by the background loop.
type SessionListener func(identity.Session)

// OutcomeReporter receives the result of a round trip made outside any
// caller, such as a background refresh. connection.Manager.Report fits.
type OutcomeReporter func(err error) bool

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// so that every request carries the API key and a request id.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.base = hc
		}
	}
}

// WithAPIKey sets the project API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout bounds every round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRefreshMargin sets how close to expiry the background loop refreshes.
func WithRefreshMargin(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshMargin = d
		}
	}
}

// WithRefreshInterval sets the background loop tick.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshInterval = d
		}
	}
}

// WithClientID sets the OAuth client id used for token grants.
func WithClientID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.clientID = id
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLoopHooks registers background refresh loop observers.
func WithLoopHooks(h LoopHooks) Option {
	return func(c *Client) {
		c.hooks = h
	}
}

// WithSessionListener registers a refresh observer.
func WithSessionListener(fn SessionListener) Option {
	return func(c *Client) {
		c.onSession = fn
	}
}

// WithRefreshReporter reports the outcome of every background refresh.
func WithRefreshReporter(fn OutcomeReporter) Option {
	return func(c *Client) {
		c.onRefresh = fn
	}
}
