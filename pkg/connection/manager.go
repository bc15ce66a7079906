package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
)

// Handle is a live backend connection that can be swapped as a unit. Close
// must wait for session rotations in flight.
type Handle interface {
	Ping(ctx context.Context) error
	Session() identity.Session
	SetSession(identity.Session)
	StartAutoRefresh()
	StopAutoRefresh()
	Close() error
}

// Factory builds a fresh handle.
type Factory[H Handle] func(ctx context.Context) (H, error)

// Stats is a point-in-time view of connection health.
type Stats struct {
	LastSuccessAt       time.Time
	ConsecutiveFailures int
	Reconnects          int64
}

type slot[H Handle] struct {
	handle H
}

// Manager owns the current handle. Safe for concurrent use.
type Manager[H Handle] struct {
	factory Factory[H]
	current atomic.Pointer[slot[H]]
	record  *HealthRecord

	// reconnectMu serializes reconnects; generation lets callers that queued
	// behind a reconnect reuse its outcome.
	reconnectMu   sync.Mutex
	generation    atomic.Uint64
	lastReconnect error

	reconnects atomic.Int64
	closed     atomic.Bool

	logger           *slog.Logger
	now              func() time.Time
	metrics          *Metrics
	classify         func(error) bool
	healthTimeout    time.Duration
	quietWindow      time.Duration
	failureThreshold int
	autoRefresh      bool
}

// New builds the first handle with factory and publishes it.
func New[H Handle](ctx context.Context, factory Factory[H], opts ...Option) (*Manager[H], error) {
	if factory == nil {
		return nil, ErrNilFactory
	}

	def := DefaultConfig()
	o := &options{
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:              time.Now,
		classify:         defaultClassifier,
		healthTimeout:    def.HealthTimeout,
		quietWindow:      def.QuietWindow,
		failureThreshold: def.FailureThreshold,
		autoRefresh:      def.AutoRefresh,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.record == nil {
		o.record = NewHealthRecord(o.now)
	}

	h, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHandleConstruction, err)
	}

	m := &Manager[H]{
		factory:          factory,
		record:           o.record,
		logger:           o.logger.With(logger.Component("connection")),
		now:              o.now,
		metrics:          o.metrics,
		classify:         o.classify,
		healthTimeout:    o.healthTimeout,
		quietWindow:      o.quietWindow,
		failureThreshold: o.failureThreshold,
		autoRefresh:      o.autoRefresh,
	}
	m.current.Store(&slot[H]{handle: h})
	if m.autoRefresh {
		h.StartAutoRefresh()
	}
	return m, nil
}

func defaultClassifier(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Current returns the published handle. Do not keep it across calls that
// may block; dereference again instead.
func (m *Manager[H]) Current() H {
	return m.current.Load().handle
}

// Record exposes the shared health record.
func (m *Manager[H]) Record() *HealthRecord {
	return m.record
}

// Stats returns a snapshot of connection health.
func (m *Manager[H]) Stats() Stats {
	return Stats{
		LastSuccessAt:       m.record.LastSuccess(),
		ConsecutiveFailures: m.record.ConsecutiveFailures(),
		Reconnects:          m.reconnects.Load(),
	}
}

// HealthCheck pings the current handle within timeout. Any error or timeout
// is unhealthy. A healthy result counts as a success.
func (m *Manager[H]) HealthCheck(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = m.healthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.Current().Ping(ctx)
	m.metrics.healthCheck(err == nil)
	if err != nil {
		m.logger.Debug("health check failed", logger.Error(err))
		return false
	}
	m.recordSuccess()
	return true
}

// Reconnect replaces the current handle. When several callers ask at once
// only the first performs the swap; the others receive its outcome.
func (m *Manager[H]) Reconnect(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}

	gen := m.generation.Load()
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()

	if m.generation.Load() != gen {
		return m.lastReconnect
	}

	err := m.reconnect(ctx)
	m.lastReconnect = err
	m.generation.Add(1)
	return err
}

func (m *Manager[H]) reconnect(ctx context.Context) error {
	start := m.now()
	old := m.Current()

	// The old loop must be gone before the new handle can start its own.
	old.StopAutoRefresh()
	snapshot := old.Session()

	next, err := m.factory(ctx)
	if err != nil {
		if m.autoRefresh {
			old.StartAutoRefresh()
		}
		m.metrics.reconnect(false, m.now().Sub(start).Seconds())
		m.logger.Error("reconnect failed to build handle", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrHandleConstruction, err)
	}

	if snapshot.Valid() {
		next.SetSession(snapshot)
	}

	m.current.Store(&slot[H]{handle: next})
	m.reconnects.Add(1)

	if err := old.Close(); err != nil {
		m.logger.Debug("closing replaced handle", logger.Error(err))
	}
	// A rotation that landed on the old handle after the snapshot wins,
	// unless the new handle was handed a session of its own meanwhile.
	if latest := old.Session(); latest.Valid() && latest.RefreshToken != snapshot.RefreshToken &&
		next.Session().RefreshToken == snapshot.RefreshToken {
		next.SetSession(latest)
	}
	if m.autoRefresh {
		next.StartAutoRefresh()
	}

	healthy := m.HealthCheck(ctx, m.healthTimeout)
	m.metrics.reconnect(healthy, m.now().Sub(start).Seconds())

	if !healthy {
		m.logger.Warn("reconnected handle is unhealthy", logger.Duration(m.now().Sub(start)))
		return ErrReconnectUnhealthy
	}

	m.logger.Info("reconnected", logger.Duration(m.now().Sub(start)))
	return nil
}

// Do runs op against the current handle and reports the outcome. On the
// failure that reaches the threshold it reconnects and, if that succeeds,
// retries op exactly once on the new handle.
func (m *Manager[H]) Do(ctx context.Context, op func(context.Context, H) error) error {
	if m.closed.Load() {
		return ErrClosed
	}

	err := op(ctx, m.Current())
	if !m.report(err) {
		return err
	}
	if m.record.ConsecutiveFailures() < m.failureThreshold {
		return err
	}

	m.logger.Warn("failure threshold reached, reconnecting",
		logger.Attempt(m.record.ConsecutiveFailures()),
		logger.Error(err),
	)
	if rerr := m.Reconnect(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}

	err = op(ctx, m.Current())
	m.report(err)
	return err
}

// DoCritical is Do preceded by EnsureFresh.
func (m *Manager[H]) DoCritical(ctx context.Context, op func(context.Context, H) error) error {
	if err := m.EnsureFresh(ctx); err != nil {
		m.logger.Warn("proactive reconnect failed", logger.Error(err))
	}
	return m.Do(ctx, op)
}

// EnsureFresh health-checks the backend when nothing succeeded for the quiet
// window and reconnects if the check fails.
func (m *Manager[H]) EnsureFresh(ctx context.Context) error {
	if !m.record.Stale(m.quietWindow) {
		return nil
	}
	if m.HealthCheck(ctx, m.healthTimeout) {
		return nil
	}
	m.logger.Info("connection stale, reconnecting")
	return m.Reconnect(ctx)
}

// Report records the outcome of a call made outside Do. It returns whether
// err counted as a connection failure.
func (m *Manager[H]) Report(err error) bool {
	return m.report(err)
}

func (m *Manager[H]) report(err error) bool {
	if err == nil {
		m.recordSuccess()
		return false
	}
	if !m.classify(err) {
		return false
	}
	streak := m.record.RecordFailure()
	m.metrics.failure(streak)
	return true
}

func (m *Manager[H]) recordSuccess() {
	m.record.RecordSuccess()
	m.metrics.success()
}

// Close stops and closes the current handle.
func (m *Manager[H]) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()

	h := m.Current()
	h.StopAutoRefresh()
	return h.Close()
}
