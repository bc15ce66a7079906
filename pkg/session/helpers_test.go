package session_test

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/connection"
	"github.com/dmitrymomot/ssokit/pkg/cookie"
	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/gateway/gatewaytest"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/session"
	"github.com/dmitrymomot/ssokit/pkg/storage"
)

const (
	cookieName = "sso_session"
	password   = "secret1"
)

// env describes where an application instance runs. A nil Jar disables the
// shared cookie; a nil Local gets a fresh tier. Conn is appended to the
// connection options.
type env struct {
	Origin string
	Jar    http.CookieJar
	Local  *storage.MemoryTier
	Conn   []connection.Option
}

type app struct {
	store   *session.Store
	local   *storage.MemoryTier
	adapter *storage.Adapter
	conn    *session.Connection
	cookies *cookie.Manager
}

func newApp(t *testing.T, srv *gatewaytest.Server, e env, opts ...session.Option) *app {
	t.Helper()

	if e.Local == nil {
		e.Local = storage.NewMemoryTier()
	}

	a := &app{local: e.Local}

	var shared storage.SharedTier
	if e.Jar != nil {
		u, err := url.Parse(e.Origin)
		require.NoError(t, err)
		a.cookies, err = cookie.New(e.Origin, e.Jar, cookie.ScopeFor(u.Host, u.Scheme == "https", nil)...)
		require.NoError(t, err)
		shared = storage.NewCookieTier(a.cookies, cookieName)
	}
	a.adapter = storage.NewAdapter(e.Local, shared)

	var ref atomic.Pointer[session.Store]
	factory := func(context.Context) (*gateway.Client, error) {
		return gateway.New(srv.URL,
			gateway.WithTimeout(time.Second),
			gateway.WithSessionListener(func(s identity.Session) {
				if st := ref.Load(); st != nil {
					st.SessionRefreshed(s)
				}
			}),
		)
	}

	connOpts := append([]connection.Option{
		connection.WithFailureClassifier(gateway.Retryable),
		connection.WithAutoRefresh(false),
	}, e.Conn...)
	conn, err := connection.New(context.Background(), factory, connOpts...)
	require.NoError(t, err)
	a.conn = conn

	a.store = session.New(a.adapter, conn, opts...)
	ref.Store(a.store)

	t.Cleanup(func() {
		a.store.Wait()
		_ = conn.Close()
	})
	return a
}

func (a *app) storedSession(t *testing.T) (string, bool) {
	t.Helper()
	return a.local.Get(storage.DefaultConfig().SessionKey)
}

func (a *app) sharedCookie() (string, bool) {
	if a.cookies == nil {
		return "", false
	}
	v, err := a.cookies.Get(cookieName)
	return v, err == nil && v != ""
}

func signedIn(t *testing.T, a *app, email string) {
	t.Helper()
	res := a.store.SignIn(context.Background(), email, password)
	require.True(t, res.OK, "sign in %s: %s %v", email, res.Reason, res.Err)
	require.Equal(t, session.StateAuthenticated, res.State)
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
