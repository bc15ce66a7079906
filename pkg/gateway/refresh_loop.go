package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/ssokit/pkg/logger"
)

// StartAutoRefresh starts the background loop that refreshes the session
// shortly before it expires. Calling it on a running or closed client is a
// no-op.
func (c *Client) StartAutoRefresh() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.loopCancel != nil || c.closed.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.loopCancel, c.loopDone = cancel, done

	if c.hooks.Started != nil {
		c.hooks.Started(c.id)
	}
	go c.refreshLoop(ctx, done)
}

// StopAutoRefresh stops the loop and waits for it to exit.
func (c *Client) StopAutoRefresh() {
	c.loopMu.Lock()
	cancel, done := c.loopCancel, c.loopDone
	c.loopCancel, c.loopDone = nil, nil
	c.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if c.hooks.Stopped != nil {
		c.hooks.Stopped(c.id)
	}
}

// AutoRefreshRunning reports whether the loop is running.
func (c *Client) AutoRefreshRunning() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.loopCancel != nil
}

func (c *Client) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshIfDue(ctx)
		}
	}
}

func (c *Client) refreshIfDue(ctx context.Context) {
	s := c.Session()
	if !s.Valid() || !s.ExpiresWithin(c.now(), c.refreshMargin) {
		return
	}
	_, err := c.Refresh(ctx)
	if ctx.Err() != nil || errors.Is(err, ErrSessionReplaced) {
		return
	}
	if c.onRefresh != nil {
		c.onRefresh(err)
	}
	if err != nil {
		c.logger.Warn("background refresh failed", logger.Event("refresh"), logger.Error(err))
	}
}
