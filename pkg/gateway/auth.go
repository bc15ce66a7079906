package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
)

// SignUpParams describes a new account.
type SignUpParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SignInWithPassword exchanges credentials for a session via the OAuth
// password grant and installs it on the client.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (identity.Session, error) {
	c.grantMu.RLock()
	defer c.grantMu.RUnlock()
	if c.closed.Load() {
		return identity.Session{}, ErrClosed
	}

	ctx, cancel := c.grantContext(ctx)
	defer cancel()

	tok, err := c.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		return identity.Session{}, c.grantError(ctx, err)
	}

	s := sessionFromToken(tok)
	c.SetSession(s)
	return s, nil
}

// SignUp registers an account and installs the returned session.
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (identity.Session, error) {
	var tr tokenResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "auth/v1/signup", body: p}, &tr)
	if err != nil {
		return identity.Session{}, err
	}

	s := identity.Session{AccessToken: tr.AccessToken, RefreshToken: tr.RefreshToken}
	if tr.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	c.SetSession(s)
	return s, nil
}

// GetUser resolves the identity behind the current access token.
func (c *Client) GetUser(ctx context.Context) (identity.Identity, error) {
	var id identity.Identity
	err := c.do(ctx, request{method: http.MethodGet, path: "auth/v1/user", requireAuth: true}, &id)
	return id, err
}

// SignOut revokes the session on the backend. The local session is
// forgotten whatever the outcome.
func (c *Client) SignOut(ctx context.Context) error {
	at := c.Session().AccessToken
	c.ClearSession()
	return c.RevokeSession(ctx, at)
}

// RevokeSession revokes the session behind accessToken without touching the
// client's own session.
func (c *Client) RevokeSession(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrNoSession
	}
	return c.do(ctx, request{method: http.MethodPost, path: "auth/v1/logout", bearer: accessToken}, nil)
}

// Refresh exchanges the current refresh token for a new session.
// Concurrent calls share one round trip.
func (c *Client) Refresh(ctx context.Context) (identity.Session, error) {
	v, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return identity.Session{}, err
	}
	if shared {
		c.logger.Debug("joined in-flight refresh")
	}
	return v.(identity.Session), nil
}

func (c *Client) refresh(ctx context.Context) (identity.Session, error) {
	c.grantMu.RLock()
	defer c.grantMu.RUnlock()
	if c.closed.Load() {
		return identity.Session{}, ErrClosed
	}
	cur, gen := c.sessionAt()
	if cur.RefreshToken == "" {
		return identity.Session{}, ErrNoSession
	}

	ctx, cancel := c.grantContext(ctx)
	defer cancel()

	tok, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cur.RefreshToken}).Token()
	if err != nil {
		return identity.Session{}, c.grantError(ctx, err)
	}

	s := sessionFromToken(tok)
	if !c.replaceSession(gen, s) {
		// Signed out or handed a different session while the grant was in
		// flight.
		c.logger.Debug("discarding overtaken refresh", logger.Event("refresh"))
		return identity.Session{}, ErrSessionReplaced
	}
	c.logger.Info("session refreshed", logger.Event("refresh"), slog.Time("expires_at", s.ExpiresAt))

	if c.onSession != nil {
		c.onSession(s)
	}
	return s, nil
}

func (c *Client) grantContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, c.http), cancel
}

// grantError maps oauth2 failures onto the gateway error taxonomy.
func (c *Client) grantError(ctx context.Context, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := http.StatusBadRequest
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return ParseError(status, re.Body)
	}

	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: token grant: %w", ErrNetwork, err)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: token grant: %w", ErrNetwork, ctx.Err())
	}
	return fmt.Errorf("gateway: token grant: %w", err)
}

func sessionFromToken(tok *oauth2.Token) identity.Session {
	return identity.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}
