package ssokit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit"
	"github.com/dmitrymomot/ssokit/pkg/config"
	"github.com/dmitrymomot/ssokit/pkg/cookie"
	"github.com/dmitrymomot/ssokit/pkg/direct"
	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/gateway/gatewaytest"
	"github.com/dmitrymomot/ssokit/pkg/relay"
	"github.com/dmitrymomot/ssokit/pkg/requestid"
	"github.com/dmitrymomot/ssokit/pkg/session"
	"github.com/dmitrymomot/ssokit/pkg/token"
)

func newKit(t *testing.T, srv *gatewaytest.Server, origin string, opts ...ssokit.Option) *ssokit.Kit {
	t.Helper()

	cfg := ssokit.DefaultConfig()
	cfg.Gateway.URL = srv.URL
	cfg.Gateway.Timeout = time.Second
	cfg.Cookie.Origin = origin
	cfg.Connection.AutoRefresh = false

	kit, err := ssokit.New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kit.Close() })
	return kit
}

func TestNew(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	kit := newKit(t, srv, "https://app.example.com", ssokit.WithRegisterer(prometheus.NewRegistry()))

	assert.Equal(t, session.StateUninitialized, kit.Store.State())
	assert.NotNil(t, kit.Metrics)
	assert.NoError(t, kit.Healthcheck(context.Background()))

	srv.SetDown(true)
	assert.ErrorIs(t, kit.Healthcheck(context.Background()), ssokit.ErrUnhealthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := ssokit.DefaultConfig()
	cfg.Cookie.Origin = "not a url"
	_, err := ssokit.New(context.Background(), cfg)
	assert.ErrorIs(t, err, ssokit.ErrInvalidConfig)
}

func TestKit_SingleSignOnAcrossSubdomains(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	srv.AddUser("jane@example.com", "secret1")
	jar, err := cookie.NewJar()
	require.NoError(t, err)

	app := newKit(t, srv, "https://app.example.com", ssokit.WithCookieJar(jar))
	admin := newKit(t, srv, "https://admin.example.com", ssokit.WithCookieJar(jar))

	require.True(t, app.Store.SignIn(context.Background(), "jane@example.com", "secret1").OK)

	res := admin.Store.Initialize(context.Background())
	require.True(t, res.OK, "%s %v", res.Reason, res.Err)
	assert.Equal(t, "jane@example.com", admin.Store.Snapshot().User.Email)
}

func TestKit_ExpiredTokenOnBypassSignsOutOnce(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	srv.AddUser("jane@example.com", "secret1")
	kit := newKit(t, srv, "https://app.example.com")

	var signOuts int
	kit.Store.Subscribe(func(s session.Snapshot) {
		if s.State == session.StateSigningOut {
			signOuts++
		}
	})

	require.True(t, kit.Store.SignIn(context.Background(), "jane@example.com", "secret1").OK)
	srv.ExpireAccessTokens()

	_, err := kit.Direct.Select(context.Background(), "notes", gateway.Query{})
	assert.ErrorIs(t, err, direct.ErrTokenExpired)
	assert.Equal(t, session.StateAnonymous, kit.Store.State())
	assert.Equal(t, 1, signOuts)

	require.True(t, kit.Store.SignIn(context.Background(), "jane@example.com", "secret1").OK)
	srv.ExpireAccessTokens()

	_, err = kit.Direct.Select(context.Background(), "notes", gateway.Query{})
	assert.ErrorIs(t, err, direct.ErrTokenExpired)
	assert.Equal(t, session.StateAnonymous, kit.Store.State())
	assert.Equal(t, 2, signOuts, "a new sign-in rearms the bypass guard")
}

func TestKit_BypassCallsUpdateConnectionHealth(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	srv.AddUser("jane@example.com", "secret1")
	kit := newKit(t, srv, "https://app.example.com")
	require.True(t, kit.Store.SignIn(context.Background(), "jane@example.com", "secret1").OK)

	srv.SetDown(true)
	_, err := kit.Direct.Select(context.Background(), "notes", gateway.Query{})
	assert.ErrorIs(t, err, direct.ErrRequestFailed)
	assert.Equal(t, 1, kit.Conn.Stats().ConsecutiveFailures)

	srv.SetDown(false)
	_, err = kit.Direct.Select(context.Background(), "notes", gateway.Query{})
	require.NoError(t, err)
	assert.Zero(t, kit.Conn.Stats().ConsecutiveFailures)
}

func TestKit_RelayMiddleware(t *testing.T) {
	t.Parallel()

	srv := gatewaytest.New(t)
	srv.AddUser("jane@example.com", "secret1")
	sess := srv.IssueSession("jane@example.com")
	kit := newKit(t, srv, "https://reports.example.net")

	r := chi.NewRouter()
	r.Use(kit.Middleware())
	r.Get("/dashboard", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	encoded, err := token.EncodePair(sess.Pair())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/dashboard?tab=1&"+relay.DefaultParam+"="+encoded, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard?tab=1", rec.Header().Get("Location"))
	assert.Equal(t, session.StateAuthenticated, kit.Store.State())

	id := rec.Header().Get(requestid.Header)
	require.NotEmpty(t, id)
	assert.Equal(t, id, srv.LastRequestID("GET /auth/v1/user"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoadConfig(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	t.Setenv("GATEWAY_URL", "https://backend.example.com")
	t.Setenv("SIGNUP_ALLOWED_DOMAINS", "acme.com,globex.io")
	t.Setenv("CONNECTION_QUIET_WINDOW", "90s")
	t.Setenv("SSO_PARENT_DOMAINS", "example.com")

	cfg, err := ssokit.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://backend.example.com", cfg.Gateway.URL)
	assert.Equal(t, []string{"acme.com", "globex.io"}, cfg.Session.AllowedDomains)
	assert.Equal(t, 90*time.Second, cfg.Connection.QuietWindow)
	assert.Equal(t, 2, cfg.Connection.FailureThreshold)
	assert.Equal(t, "example.com", cfg.Cookie.ParentDomains)
	assert.Equal(t, 3800, cfg.Storage.MaxCookieBytes)
	assert.Equal(t, "sso", cfg.Session.RelayParam)
}
