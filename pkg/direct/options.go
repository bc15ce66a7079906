package direct

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the project API key.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithBeaconTimeout bounds the detached beacon request.
func WithBeaconTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.beaconTimeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithReporter forwards the outcome of every round trip to fn.
func WithReporter(fn Reporter) Option {
	return func(c *Client) {
		c.reporter = fn
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

// WithConfig applies a Config.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		WithTimeout(cfg.Timeout)(c)
		WithBeaconTimeout(cfg.BeaconTimeout)(c)
	}
}
