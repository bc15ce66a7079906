package connection_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/connection"
	"github.com/dmitrymomot/ssokit/pkg/identity"
)

var errDown = errors.New("backend down")

// eventLog records loop lifecycle events across handles in order.
type eventLog struct {
	mu      sync.Mutex
	events  []string
	running int
	maxLive int
}

func (l *eventLog) add(event string, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	l.running += delta
	if l.running > l.maxLive {
		l.maxLive = l.running
	}
}

func (l *eventLog) snapshot() ([]string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...), l.maxLive
}

type fakeHandle struct {
	id      int
	log     *eventLog
	onClose func(*fakeHandle)

	pingErr atomic.Pointer[error]

	mu      sync.Mutex
	session identity.Session
	running bool
	closed  bool
}

func (h *fakeHandle) Ping(ctx context.Context) error {
	if p := h.pingErr.Load(); p != nil {
		return *p
	}
	return ctx.Err()
}

func (h *fakeHandle) Session() identity.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

func (h *fakeHandle) SetSession(s identity.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.session = s
}

func (h *fakeHandle) StartAutoRefresh() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.log.add(fmt.Sprintf("start:%d", h.id), 1)
}

func (h *fakeHandle) StopAutoRefresh() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	h.log.add(fmt.Sprintf("stop:%d", h.id), -1)
}

func (h *fakeHandle) Close() error {
	if h.onClose != nil {
		h.onClose(h)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// fakeFactory builds numbered handles; new handles inherit pingErr.
type fakeFactory struct {
	log     *eventLog
	built   atomic.Int32
	pingErr atomic.Pointer[error]
	failErr error
	gate    chan struct{} // holds every build after the first until closed
	onClose func(*fakeHandle)
}

func (f *fakeFactory) build(context.Context) (*fakeHandle, error) {
	if f.gate != nil && f.built.Load() > 0 {
		<-f.gate
	}
	if f.failErr != nil && f.built.Load() > 0 {
		return nil, f.failErr
	}
	h := &fakeHandle{id: int(f.built.Add(1)), log: f.log, onClose: f.onClose}
	if p := f.pingErr.Load(); p != nil {
		h.pingErr.Store(p)
	}
	return h, nil
}

func (f *fakeFactory) setPingErr(err error) {
	if err == nil {
		f.pingErr.Store(nil)
		return
	}
	f.pingErr.Store(&err)
}

func newManager(t *testing.T, f *fakeFactory, opts ...connection.Option) *connection.Manager[*fakeHandle] {
	t.Helper()
	m, err := connection.New(context.Background(), f.build, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := connection.New[*fakeHandle](context.Background(), nil)
	assert.ErrorIs(t, err, connection.ErrNilFactory)

	_, err = connection.New(context.Background(), func(context.Context) (*fakeHandle, error) {
		return nil, errDown
	})
	assert.ErrorIs(t, err, connection.ErrHandleConstruction)
	assert.ErrorIs(t, err, errDown)

	f := &fakeFactory{log: &eventLog{}}
	m := newManager(t, f)
	assert.Equal(t, 1, m.Current().id)
	events, _ := f.log.snapshot()
	assert.Equal(t, []string{"start:1"}, events)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	f := &fakeFactory{log: &eventLog{}}
	m := newManager(t, f)

	assert.True(t, m.HealthCheck(context.Background(), time.Second))

	err := errDown
	m.Current().pingErr.Store(&err)
	assert.False(t, m.HealthCheck(context.Background(), time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Current().pingErr.Store(nil)
	assert.False(t, m.HealthCheck(ctx, time.Second))
}

func TestReconnect(t *testing.T) {
	t.Parallel()

	t.Run("migrates session and swaps handle", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)
		old := m.Current()
		sess := identity.Session{AccessToken: "A", RefreshToken: "R"}
		old.SetSession(sess)

		require.NoError(t, m.Reconnect(context.Background()))

		cur := m.Current()
		assert.Equal(t, 2, cur.id)
		assert.Equal(t, sess, cur.Session())
		assert.True(t, old.isClosed())
		assert.Equal(t, int64(1), m.Stats().Reconnects)
	})

	t.Run("old loop stops before new loop starts", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)

		require.NoError(t, m.Reconnect(context.Background()))
		require.NoError(t, m.Reconnect(context.Background()))

		events, maxLive := f.log.snapshot()
		assert.Equal(t, []string{"start:1", "stop:1", "start:2", "stop:2", "start:3"}, events)
		assert.Equal(t, 1, maxLive)
	})

	t.Run("concurrent callers share one reconnect", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}, gate: make(chan struct{})}
		m := newManager(t, f)

		var ready, wg sync.WaitGroup
		for range 8 {
			ready.Add(1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				ready.Done()
				assert.NoError(t, m.Reconnect(context.Background()))
			}()
		}
		ready.Wait()
		// Let every caller queue behind the reconnect held in the factory.
		time.Sleep(50 * time.Millisecond)
		close(f.gate)
		wg.Wait()

		_, maxLive := f.log.snapshot()
		assert.Equal(t, 1, maxLive)
		assert.Equal(t, int64(1), m.Stats().Reconnects)
		assert.Equal(t, int32(2), f.built.Load())
		assert.Equal(t, 2, m.Current().id)
	})

	t.Run("rotation landing during close moves to the new handle", func(t *testing.T) {
		t.Parallel()

		rotated := identity.Session{AccessToken: "at2", RefreshToken: "rt2", ExpiresAt: time.Now().Add(time.Hour)}
		f := &fakeFactory{log: &eventLog{}, onClose: func(h *fakeHandle) { h.SetSession(rotated) }}
		m := newManager(t, f)
		m.Current().SetSession(identity.Session{AccessToken: "at1", RefreshToken: "rt1", ExpiresAt: time.Now().Add(time.Hour)})

		require.NoError(t, m.Reconnect(context.Background()))
		assert.Equal(t, 2, m.Current().id)
		assert.Equal(t, "rt2", m.Current().Session().RefreshToken)
	})

	t.Run("unhealthy new handle stays published", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)
		f.setPingErr(errDown)

		err := m.Reconnect(context.Background())
		assert.ErrorIs(t, err, connection.ErrReconnectUnhealthy)
		assert.Equal(t, 2, m.Current().id)
	})

	t.Run("factory failure keeps old handle running", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}, failErr: errDown}
		m := newManager(t, f)

		err := m.Reconnect(context.Background())
		assert.ErrorIs(t, err, connection.ErrHandleConstruction)
		assert.Equal(t, 1, m.Current().id)

		events, _ := f.log.snapshot()
		assert.Equal(t, []string{"start:1", "stop:1", "start:1"}, events)
	})
}

func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("success resets the streak", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)
		m.Record().RecordFailure()

		require.NoError(t, m.Do(context.Background(), func(context.Context, *fakeHandle) error { return nil }))
		assert.Equal(t, 0, m.Stats().ConsecutiveFailures)
	})

	t.Run("second consecutive failure reconnects once and retries once", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)

		var calls []int
		op := func(_ context.Context, h *fakeHandle) error {
			calls = append(calls, h.id)
			if h.id == 1 {
				return errDown
			}
			return nil
		}

		assert.ErrorIs(t, m.Do(context.Background(), op), errDown)
		assert.Equal(t, int64(0), m.Stats().Reconnects)

		assert.NoError(t, m.Do(context.Background(), op))
		assert.Equal(t, int64(1), m.Stats().Reconnects)
		assert.Equal(t, []int{1, 1, 2}, calls)
		assert.Equal(t, 0, m.Stats().ConsecutiveFailures)
	})

	t.Run("bounded when reconnect keeps failing", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)
		f.setPingErr(errDown)

		var calls atomic.Int32
		op := func(context.Context, *fakeHandle) error {
			calls.Add(1)
			return errDown
		}

		for range 3 {
			assert.ErrorIs(t, m.Do(context.Background(), op), errDown)
		}

		assert.Equal(t, int32(3), calls.Load(), "no retry after a failed reconnect")
		assert.Equal(t, int64(2), m.Stats().Reconnects, "one reconnect per call at or over the threshold")
		assert.Equal(t, 3, m.Stats().ConsecutiveFailures)
	})

	t.Run("retry is not retried again", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)
		m.Record().RecordFailure()

		var calls atomic.Int32
		err := m.Do(context.Background(), func(context.Context, *fakeHandle) error {
			calls.Add(1)
			return errDown
		})
		assert.ErrorIs(t, err, errDown)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, int64(1), m.Stats().Reconnects)
	})

	t.Run("classifier filters failures", func(t *testing.T) {
		t.Parallel()

		errRejected := errors.New("rejected")
		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f, connection.WithFailureClassifier(func(err error) bool {
			return !errors.Is(err, errRejected)
		}))

		for range 3 {
			assert.ErrorIs(t, m.Do(context.Background(), func(context.Context, *fakeHandle) error { return errRejected }), errRejected)
		}
		assert.Equal(t, 0, m.Stats().ConsecutiveFailures)
		assert.Equal(t, int64(0), m.Stats().Reconnects)
	})

	t.Run("closed manager", func(t *testing.T) {
		t.Parallel()

		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f)
		require.NoError(t, m.Close())
		assert.ErrorIs(t, m.Do(context.Background(), func(context.Context, *fakeHandle) error { return nil }), connection.ErrClosed)
		assert.ErrorIs(t, m.Reconnect(context.Background()), connection.ErrClosed)
	})
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEnsureFresh(t *testing.T) {
	t.Parallel()

	t.Run("inside quiet window does nothing", func(t *testing.T) {
		t.Parallel()

		clk := &clock{now: time.Now()}
		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f, connection.WithClock(clk.Now))
		err := errDown
		m.Current().pingErr.Store(&err)

		clk.Advance(time.Minute)
		require.NoError(t, m.EnsureFresh(context.Background()))
		assert.Equal(t, int64(0), m.Stats().Reconnects)
	})

	t.Run("stale and healthy only checks health", func(t *testing.T) {
		t.Parallel()

		clk := &clock{now: time.Now()}
		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f, connection.WithClock(clk.Now))

		clk.Advance(3 * time.Minute)
		require.NoError(t, m.EnsureFresh(context.Background()))
		assert.Equal(t, int64(0), m.Stats().Reconnects)
		assert.Equal(t, clk.Now(), m.Stats().LastSuccessAt)
	})

	t.Run("stale and unhealthy reconnects", func(t *testing.T) {
		t.Parallel()

		clk := &clock{now: time.Now()}
		f := &fakeFactory{log: &eventLog{}}
		m := newManager(t, f, connection.WithClock(clk.Now))
		err := errDown
		m.Current().pingErr.Store(&err)

		clk.Advance(2*time.Minute + time.Second)

		var used int
		require.NoError(t, m.DoCritical(context.Background(), func(_ context.Context, h *fakeHandle) error {
			used = h.id
			return nil
		}))
		assert.Equal(t, int64(1), m.Stats().Reconnects)
		assert.Equal(t, 2, used)
	})
}

func TestHealthRecord(t *testing.T) {
	t.Parallel()

	clk := &clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := connection.NewHealthRecord(clk.Now)

	assert.Equal(t, clk.Now(), r.LastSuccess())
	assert.Equal(t, 1, r.RecordFailure())
	assert.Equal(t, 2, r.RecordFailure())
	assert.Equal(t, 2, r.ConsecutiveFailures())

	clk.Advance(2 * time.Minute)
	assert.False(t, r.Stale(2*time.Minute))
	clk.Advance(time.Second)
	assert.True(t, r.Stale(2*time.Minute))

	r.RecordSuccess()
	assert.Equal(t, 0, r.ConsecutiveFailures())
	assert.False(t, r.Stale(2*time.Minute))
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := connection.NewMetrics(reg)

	f := &fakeFactory{log: &eventLog{}}
	m := newManager(t, f, connection.WithMetrics(metrics))

	op := func(context.Context, *fakeHandle) error { return errDown }
	_ = m.Do(context.Background(), op)
	_ = m.Do(context.Background(), op)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Reconnects.WithLabelValues("success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.Failures))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ConsecutiveFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HealthChecks.WithLabelValues("success")))
}
