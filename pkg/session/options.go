package session

import (
	"log/slog"
	"time"
)

// Option configures a Store.
type Option func(*Store)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Store) {
		s.cfg = cfg
	}
}

// WithKeys overrides the local-tier keys of the persisted session and of the
// identity projection.
func WithKeys(sessionKey, stateKey string) Option {
	return func(s *Store) {
		if sessionKey != "" {
			s.sessionKey = sessionKey
		}
		if stateKey != "" {
			s.stateKey = stateKey
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
