package connection

import (
	"log/slog"
	"time"
)

// Option configures a Manager.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	now              func() time.Time
	metrics          *Metrics
	record           *HealthRecord
	classify         func(error) bool
	healthTimeout    time.Duration
	quietWindow      time.Duration
	failureThreshold int
	autoRefresh      bool
}

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides time.Now for staleness decisions.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithHealthRecord shares an existing record, for example one process-wide
// record across several managers.
func WithHealthRecord(r *HealthRecord) Option {
	return func(o *options) {
		if r != nil {
			o.record = r
		}
	}
}

// WithFailureClassifier decides which errors count as connection failures.
// Errors it rejects are returned untouched and leave the record alone.
func WithFailureClassifier(fn func(error) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.classify = fn
		}
	}
}

// WithHealthTimeout bounds the health check round trip.
func WithHealthTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.healthTimeout = d
		}
	}
}

// WithQuietWindow sets the staleness threshold.
func WithQuietWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.quietWindow = d
		}
	}
}

// WithFailureThreshold sets how many consecutive failures trigger a reconnect.
func WithFailureThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.failureThreshold = n
		}
	}
}

// WithAutoRefresh controls whether handles run their background refresh loop.
func WithAutoRefresh(on bool) Option {
	return func(o *options) {
		o.autoRefresh = on
	}
}

// WithConfig applies a Config.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		WithHealthTimeout(cfg.HealthTimeout)(o)
		WithQuietWindow(cfg.QuietWindow)(o)
		WithFailureThreshold(cfg.FailureThreshold)(o)
		o.autoRefresh = cfg.AutoRefresh
	}
}
