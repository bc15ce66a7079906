package storage

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/token"
)

// DefaultMaxCookieBytes keeps the shared cookie safely under the 4 KB
// per-cookie limit enforced by browsers.
const DefaultMaxCookieBytes = 3800

// Adapter is the dual-tier store. All methods are safe for concurrent use.
type Adapter struct {
	local  Tier
	shared SharedTier

	maxCookieBytes int
	logger         *slog.Logger

	signingOut atomic.Bool

	mu         sync.Mutex
	lastHash   uint64
	hashCached bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMaxCookieBytes overrides the shared cookie size ceiling.
func WithMaxCookieBytes(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxCookieBytes = n
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter combines a local tier with an optional shared tier. A nil shared
// tier turns the adapter into a plain local store.
func NewAdapter(local Tier, shared SharedTier, opts ...Option) *Adapter {
	if local == nil {
		panic("storage: local tier is required")
	}
	a := &Adapter{
		local:          local,
		shared:         shared,
		maxCookieBytes: DefaultMaxCookieBytes,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Local returns the local tier for values that must never reach the cookie.
func (a *Adapter) Local() Tier {
	return a.local
}

// Get reads the local tier first, then the shared tier. A valid shared
// credential is written through to the local tier before it is returned.
func (a *Adapter) Get(key string) (string, bool) {
	if v, ok := a.local.Get(key); ok {
		return v, true
	}

	if a.shared == nil || a.signingOut.Load() {
		return "", false
	}

	raw, ok := a.shared.Read()
	if !ok {
		return "", false
	}

	pair, err := token.DecodePair(raw)
	if err != nil {
		a.logger.Debug("ignoring malformed shared credential", logger.Component("storage"), logger.Error(err))
		return "", false
	}

	value := token.MarshalStored(pair)
	if err := a.local.Set(key, value); err != nil {
		a.logger.Warn("local tier cache fill failed", logger.Component("storage"), logger.Error(err))
	}

	a.rememberHash(raw)
	return value, true
}

// Set always writes the local tier and mirrors token pairs into the shared
// tier, skipping identical, oversized or mid-sign-out writes.
func (a *Adapter) Set(key, value string) {
	if err := a.local.Set(key, value); err != nil {
		a.logger.Warn("local tier write failed", logger.Component("storage"), logger.Error(err))
	}

	if a.shared == nil || a.signingOut.Load() {
		return
	}

	pair, ok := token.ExtractPair(value)
	if !ok {
		return
	}

	encoded, err := token.EncodePair(pair)
	if err != nil {
		return
	}

	if len(encoded) > a.maxCookieBytes {
		a.logger.Warn("shared credential exceeds cookie ceiling, not mirrored",
			logger.Component("storage"),
			slog.Int("size", len(encoded)),
			slog.Int("limit", a.maxCookieBytes),
		)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	h := xxhash.Sum64String(encoded)
	if a.hashCached && a.lastHash == h {
		return
	}

	if err := a.shared.Write(encoded); err != nil {
		a.logger.Warn("shared tier write failed", logger.Component("storage"), logger.Error(err))
		return
	}
	a.lastHash, a.hashCached = h, true
}

// Remove clears the local tier only. The shared credential survives; see
// ClearShared.
func (a *Adapter) Remove(key string) {
	if err := a.local.Delete(key); err != nil {
		a.logger.Warn("local tier delete failed", logger.Component("storage"), logger.Error(err))
	}
}

// ClearShared deletes the shared credential. Only the terminal sign-out
// transition may call it.
func (a *Adapter) ClearShared() {
	if a.shared == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.shared.Clear(); err != nil {
		a.logger.Warn("shared tier clear failed", logger.Component("storage"), logger.Error(err))
	}
	a.hashCached = false
}

// BeginSignOut suppresses all shared-tier access until EndSignOut.
func (a *Adapter) BeginSignOut() {
	a.signingOut.Store(true)
}

// EndSignOut lifts the sign-out guard. Call it only after a successful sign-in.
func (a *Adapter) EndSignOut() {
	a.signingOut.Store(false)
}

// SigningOut reports whether the sign-out guard is active.
func (a *Adapter) SigningOut() bool {
	return a.signingOut.Load()
}

func (a *Adapter) rememberHash(encoded string) {
	a.mu.Lock()
	a.lastHash, a.hashCached = xxhash.Sum64String(encoded), true
	a.mu.Unlock()
}
