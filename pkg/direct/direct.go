package direct

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/requestid"
)

// TokenSource returns the access token to send, or "" for none.
type TokenSource func() string

// Reporter receives the outcome of every round trip in the gateway error
// taxonomy: nil when the backend answered below 500, a *gateway.Error for a
// 5xx, and an error wrapping gateway.ErrNetwork when no answer arrived.
// connection.Manager.Report fits.
type Reporter func(err error) bool

// Client is the bypass client. Safe for concurrent use.
type Client struct {
	baseURL       *url.URL
	apiKey        string
	http          *http.Client
	timeout       time.Duration
	beaconTimeout time.Duration
	token         TokenSource
	reporter      Reporter
	logger        *slog.Logger

	mu        sync.RWMutex
	onExpired func()
	fired     atomic.Bool

	beacons sync.WaitGroup
}

// New creates a bypass client for the backend at rawURL.
func New(rawURL string, token TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if token == nil {
		token = func() string { return "" }
	}

	def := DefaultConfig()
	c := &Client{
		baseURL:       u,
		http:          &http.Client{},
		timeout:       def.Timeout,
		beaconTimeout: def.BeaconTimeout,
		token:         token,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("direct"))
	return c, nil
}

// OnTokenExpired registers the handler fired when a call discovers that the
// access token expired.
func (c *Client) OnTokenExpired(fn func()) {
	c.mu.Lock()
	c.onExpired = fn
	c.mu.Unlock()
}

// Rearm allows the expiry handler to fire again, typically after a new
// sign-in.
func (c *Client) Rearm() {
	c.fired.Store(false)
}

// Select reads rows of resource and returns the raw JSON array.
func (c *Client) Select(ctx context.Context, resource string, q gateway.Query) (json.RawMessage, error) {
	return c.send(ctx, c.timeout, http.MethodGet, resource, q.Values(), nil)
}

// Insert creates a row and returns the stored representation.
func (c *Client) Insert(ctx context.Context, resource string, row any) (json.RawMessage, error) {
	return c.send(ctx, c.timeout, http.MethodPost, resource, nil, row)
}

// Update patches the rows matching filters.
func (c *Client) Update(ctx context.Context, resource string, filters []gateway.Filter, patch any) (json.RawMessage, error) {
	if len(filters) == 0 {
		return nil, ErrUnfilteredWrite
	}
	return c.send(ctx, c.timeout, http.MethodPatch, resource, gateway.EncodeFilters(filters), patch)
}

// Delete removes the rows matching filters.
func (c *Client) Delete(ctx context.Context, resource string, filters []gateway.Filter) error {
	if len(filters) == 0 {
		return ErrUnfilteredWrite
	}
	_, err := c.send(ctx, c.timeout, http.MethodDelete, resource, gateway.EncodeFilters(filters), nil)
	return err
}

// SelectInto is Select decoding into a slice of T.
func SelectInto[T any](ctx context.Context, c *Client, resource string, q gateway.Query) ([]T, error) {
	raw, err := c.Select(ctx, resource, q)
	if err != nil {
		return nil, err
	}
	var out []T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrRequestFailed, err)
	}
	return out, nil
}

// Beacon sends a patch and returns immediately. The request outlives ctx's
// cancellation but keeps its values, and is bounded by the beacon timeout.
// There is no delivery guarantee.
func (c *Client) Beacon(ctx context.Context, resource string, filters []gateway.Filter, patch any) {
	if len(filters) == 0 {
		c.logger.Warn("beacon without filters dropped", logger.Resource(resource))
		return
	}

	detached := context.WithoutCancel(ctx)
	query := gateway.EncodeFilters(filters)

	c.beacons.Add(1)
	go func() {
		defer c.beacons.Done()
		if _, err := c.send(detached, c.beaconTimeout, http.MethodPatch, resource, query, patch); err != nil {
			c.logger.Debug("beacon not delivered", logger.Resource(resource), logger.Error(err))
		}
	}()
}

// Wait blocks until every in-flight beacon finished.
func (c *Client) Wait() {
	c.beacons.Wait()
}

func (c *Client) send(ctx context.Context, timeout time.Duration, method, resource string, query url.Values, body any) (json.RawMessage, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL.JoinPath(gateway.ResourcePath(resource))
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("direct: marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("direct: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	requestid.Stamp(req)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			c.report(fmt.Errorf("%w: %w", gateway.ErrNetwork, reqCtx.Err()))
			return nil, fmt.Errorf("%w: %s %s after %s", ErrTimeout, method, resource, time.Since(start).Round(time.Millisecond))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.report(fmt.Errorf("%w: %w", gateway.ErrNetwork, err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, resource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.report(fmt.Errorf("%w: read response: %w", gateway.ErrNetwork, err))
		return nil, fmt.Errorf("%w: %s %s: read response: %w", ErrRequestFailed, method, resource, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.report(gateway.ParseError(resp.StatusCode, data))
	} else {
		c.report(nil)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.RawMessage(data), nil
	}

	if gateway.TokenExpiredResponse(resp.StatusCode, data) {
		c.fireExpired()
		return nil, fmt.Errorf("%w: %s %s", ErrTokenExpired, method, resource)
	}

	c.logger.Debug("request rejected",
		slog.String("method", method),
		logger.Resource(resource),
		logger.Status(resp.StatusCode),
	)
	return nil, fmt.Errorf("%w: %s %s returned status %d", ErrRequestFailed, method, resource, resp.StatusCode)
}

func (c *Client) report(err error) {
	if c.reporter != nil {
		c.reporter(err)
	}
}

func (c *Client) fireExpired() {
	if !c.fired.CompareAndSwap(false, true) {
		return
	}
	c.mu.RLock()
	fn := c.onExpired
	c.mu.RUnlock()

	c.logger.Warn("access token expired on bypass path")
	if fn != nil {
		fn()
	}
}
