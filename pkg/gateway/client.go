package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/requestid"
)

// RequestIDHeader carries the caller's request id to the backend.
const RequestIDHeader = requestid.Header

const maxResponseBytes = 1 << 20

// Client is one live connection to the backend. It is safe for concurrent
// use. Zero value is not usable; use New.
type Client struct {
	id      uuid.UUID
	baseURL *url.URL
	apiKey  string

	clientID string
	base     *http.Client
	http     *http.Client
	oauth    *oauth2.Config

	timeout         time.Duration
	refreshMargin   time.Duration
	refreshInterval time.Duration

	logger    *slog.Logger
	now       func() time.Time
	hooks     LoopHooks
	onSession SessionListener
	onRefresh OutcomeReporter

	mu         sync.RWMutex
	session    identity.Session
	sessionGen uint64 // bumped on every replacement

	refreshGroup singleflight.Group
	grantMu      sync.RWMutex // held shared by grants in flight, exclusively by Close

	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	closed atomic.Bool
}

// New creates a client for the backend at rawURL.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	def := DefaultConfig()
	c := &Client{
		id:              uuid.New(),
		baseURL:         u,
		clientID:        def.ClientID,
		base:            &http.Client{},
		timeout:         def.Timeout,
		refreshMargin:   def.RefreshMargin,
		refreshInterval: def.RefreshInterval,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := c.base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.http = &http.Client{
		Transport:     &headerTransport{next: transport, apiKey: c.apiKey},
		CheckRedirect: c.base.CheckRedirect,
		Jar:           c.base.Jar,
	}

	c.oauth = &oauth2.Config{
		ClientID: c.clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  u.JoinPath("auth/v1/token").String(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	c.logger = c.logger.With(logger.Component("gateway"), slog.String("handle", c.id.String()))
	return c, nil
}

// NewFromConfig creates a client from Config. Options are applied after the
// configuration.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	base := []Option{
		WithAPIKey(cfg.APIKey),
		WithClientID(cfg.ClientID),
		WithTimeout(cfg.Timeout),
		WithRefreshMargin(cfg.RefreshMargin),
		WithRefreshInterval(cfg.RefreshInterval),
	}
	return New(cfg.URL, append(base, opts...)...)
}

// ID identifies this handle.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// BaseURL returns a copy of the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Session returns a snapshot of the current session.
func (c *Client) Session() identity.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession installs s without a round trip. It is how a reconnect moves a
// session from the old handle to the new one.
func (c *Client) SetSession(s identity.Session) {
	c.mu.Lock()
	c.session = s
	c.sessionGen++
	c.mu.Unlock()
}

func (c *Client) sessionAt() (identity.Session, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.sessionGen
}

// replaceSession installs s only if nothing replaced the session since gen.
func (c *Client) replaceSession(gen uint64, s identity.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionGen != gen {
		return false
	}
	c.session = s
	c.sessionGen++
	return true
}

// ClearSession forgets the current session locally.
func (c *Client) ClearSession() {
	c.SetSession(identity.Session{})
}

// Ping performs the minimal round trip used for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodGet, path: "auth/v1/health"}, nil)
}

// Close stops the refresh loop, waits for token grants in flight and
// releases idle connections. A closed client refuses further requests.
func (c *Client) Close() error {
	c.StopAutoRefresh()
	if c.closed.CompareAndSwap(false, true) {
		c.grantMu.Lock()
		c.http.CloseIdleConnections()
		c.grantMu.Unlock()
	}
	return nil
}

// Closed reports whether Close was called.
func (c *Client) Closed() bool {
	return c.closed.Load()
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	prefer string
	// bearer overrides the session access token.
	bearer string
	// requireAuth fails fast with ErrNoSession when there is no access token.
	requireAuth bool
}

func (c *Client) do(ctx context.Context, r request, dst any) error {
	if c.closed.Load() {
		return ErrClosed
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("gateway: marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	at := r.bearer
	if at == "" {
		at = c.Session().AccessToken
	}
	if at != "" {
		req.Header.Set("Authorization", "Bearer "+at)
	} else if r.requireAuth {
		return ErrNoSession
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("request failed",
			slog.String("method", r.method),
			slog.String("path", r.path),
			logger.Duration(c.now().Sub(start)),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, r.method, r.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseError(resp.StatusCode, data)
	}

	if dst == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}
	return nil
}

// headerTransport stamps every outgoing request, including the ones made
// by the oauth2 package, with the API key and a request id.
type headerTransport struct {
	next   http.RoundTripper
	apiKey string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.apiKey != "" {
		req.Header.Set("apikey", t.apiKey)
	}
	requestid.Stamp(req)
	return t.next.RoundTrip(req)
}

func (t *headerTransport) CloseIdleConnections() {
	if ci, ok := t.next.(interface{ CloseIdleConnections() }); ok {
		ci.CloseIdleConnections()
	}
}
