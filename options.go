package ssokit

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/ssokit/pkg/storage"
)

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	jar        http.CookieJar
	local      storage.Tier
	httpClient *http.Client
}

// WithLogger replaces the environment-derived logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithRegisterer registers connection metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = r
	}
}

// WithCookieJar shares a cookie jar, e.g. between several Kits of one
// process or with an http.Client.
func WithCookieJar(jar http.CookieJar) Option {
	return func(o *options) {
		o.jar = jar
	}
}

// WithLocalTier replaces the local tier chosen from the storage config.
func WithLocalTier(t storage.Tier) Option {
	return func(o *options) {
		o.local = t
	}
}

// WithHTTPClient sets the HTTP client used by the gateway and the direct
// client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}
