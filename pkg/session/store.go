package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ssokit/pkg/async"
	"github.com/dmitrymomot/ssokit/pkg/connection"
	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/storage"
)

// Connection is the managed backend connection the store talks through.
type Connection = connection.Manager[*gateway.Client]

// Store owns the authentication lifecycle of one application instance.
// All methods are safe for concurrent use.
type Store struct {
	storage    *storage.Adapter
	conn       *Connection
	cfg        Config
	sessionKey string
	stateKey   string
	logger     *slog.Logger
	now        func() time.Time

	initRun    async.Inflight[Result]
	background sync.WaitGroup

	mu          sync.RWMutex
	state       State
	provisional bool
	importing   bool // relayed pair on the connection only, not yet persisted
	user        *identity.Identity
	org         *identity.Organization
	imp         identity.ImpersonationState

	subMu  sync.Mutex
	subs   map[uint64]func(Snapshot)
	nextID uint64
}

// New creates a store in the Uninitialized state and rehydrates the
// persisted identity projection, so the last known user is available before
// Initialize verifies it.
func New(adapter *storage.Adapter, conn *Connection, opts ...Option) *Store {
	if adapter == nil {
		panic("session: storage adapter is required")
	}
	if conn == nil {
		panic("session: connection manager is required")
	}

	keys := storage.DefaultConfig()
	s := &Store{
		storage:    adapter,
		conn:       conn,
		cfg:        DefaultConfig(),
		sessionKey: keys.SessionKey,
		stateKey:   keys.StateKey,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		state:      StateUninitialized,
		subs:       make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("session"))

	s.Rehydrate()
	return s
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// EffectiveOrganizationID is the impersonated organization when
// impersonating, otherwise the user's own.
func (s *Store) EffectiveOrganizationID() (uuid.UUID, bool) {
	return s.Snapshot().EffectiveOrganizationID()
}

// Subscribe registers fn for every state change. fn runs synchronously on
// the goroutine that made the change and must not block. The returned
// function unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Rehydrate loads the persisted identity projection. It only applies before
// the first Initialize and reports whether anything was loaded.
func (s *Store) Rehydrate() bool {
	raw, ok := s.storage.Local().Get(s.stateKey)
	if !ok {
		return false
	}

	var p Persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.logger.Debug("ignoring malformed persisted state", logger.Error(err))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return false
	}
	s.user = cloneIdentity(p.User)
	s.org = cloneOrganization(p.Organization)
	s.imp = cloneImpersonation(p.Impersonation)
	return !p.Empty()
}

// Initialize verifies the persisted session against the backend. Concurrent
// callers share one verification; ctx only bounds the caller's wait.
func (s *Store) Initialize(ctx context.Context) Result {
	res, err := s.initRun.Do(ctx, s.bootstrap)
	if err != nil {
		return failed(s.State(), "", err)
	}
	return res
}

func (s *Store) bootstrap(ctx context.Context) (Result, error) {
	if err := s.apply(EventInitialize, nil); err != nil {
		return failed(s.State(), ReasonBusy, err), nil
	}
	return s.verify(ctx, true), nil
}

// verify resolves an Initializing store. A rejected session is refreshed at
// most once when mayRefresh is set.
func (s *Store) verify(ctx context.Context, mayRefresh bool) Result {
	sess, ok := s.loadSession()
	if !ok {
		return s.reject(ReasonNoSession, ErrNoSession)
	}
	s.conn.Current().SetSession(sess)

	id, err := s.fetchIdentity(ctx, mayRefresh)
	switch {
	case err == nil:
		return s.resolve(ctx, id)
	case gateway.Retryable(err):
		return s.resolveProvisional(err)
	case mayRefresh && sess.RefreshToken != "" && gateway.IsAuthError(err):
		s.logger.Debug("stored session rejected, refreshing", logger.Error(err))
		if rerr := s.refreshSession(ctx, false); rerr != nil {
			if gateway.Retryable(rerr) {
				return s.resolveProvisional(rerr)
			}
			s.discardSession()
			return s.reject(ReasonSessionExpired, errors.Join(ErrSessionExpired, rerr))
		}
		return s.verify(ctx, false)
	default:
		s.discardSession()
		return s.reject(ReasonSessionExpired, errors.Join(ErrSessionExpired, err))
	}
}

// SignIn authenticates with email and password. It is refused while another
// sign-in, initialization or sign-out is running.
func (s *Store) SignIn(ctx context.Context, email, password string) Result {
	prev := s.State()
	if err := s.apply(EventSignIn, nil); err != nil {
		return failed(s.State(), ReasonBusy, err)
	}

	var sess identity.Session
	err := s.conn.DoCritical(ctx, func(ctx context.Context, c *gateway.Client) error {
		var err error
		sess, err = c.SignInWithPassword(ctx, email, password)
		return err
	})
	if err != nil {
		s.logger.Info("sign-in failed", logger.Error(err))
		return s.restore(prev, gateway.Reason(err), err)
	}
	return s.establish(ctx, sess)
}

// establish adopts a freshly issued session. The session is persisted before
// the identity is fetched so a reload in between keeps it.
func (s *Store) establish(ctx context.Context, sess identity.Session) Result {
	s.mu.RLock()
	if s.state != StateInitializing {
		s.mu.RUnlock()
		// Signed out while the credentials were in flight.
		s.conn.Current().ClearSession()
		return failed(s.State(), ReasonBusy, ErrInvalidTransition)
	}
	s.storage.EndSignOut()
	s.persistSession(sess)
	s.mu.RUnlock()
	s.conn.Current().SetSession(sess)

	id, err := s.fetchIdentity(ctx, false)
	switch {
	case err == nil:
		return s.resolve(ctx, id)
	case gateway.Retryable(err):
		return s.resolveProvisional(err)
	default:
		return s.reject(gateway.Reason(err), err)
	}
}

// SignOut ends the session. Memory is cleared first, then local storage and
// the shared cookie, synchronously. The backend is told in the background
// and its answer is ignored.
func (s *Store) SignOut(ctx context.Context) Result {
	if err := s.apply(EventSignOut, func() {
		s.user, s.org, s.imp, s.provisional = nil, nil, identity.ImpersonationState{}, false
		s.importing = false
	}); err != nil {
		return succeeded(s.State())
	}

	s.storage.BeginSignOut()
	s.storage.Remove(s.sessionKey)
	s.storage.Remove(s.stateKey)
	s.storage.ClearShared()

	handle := s.conn.Current()
	accessToken := handle.Session().AccessToken
	handle.ClearSession()

	if accessToken != "" {
		detached := context.WithoutCancel(ctx)
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			ctx, cancel := context.WithTimeout(detached, s.cfg.SignOutTimeout)
			defer cancel()
			err := handle.RevokeSession(ctx, accessToken)
			s.conn.Report(err)
			if err != nil {
				s.logger.Debug("backend sign-out failed", logger.Error(err))
			}
		}()
	}

	_ = s.apply(EventSignedOut, nil)
	s.logger.Info("signed out")
	return succeeded(StateAnonymous)
}

// Refresh exchanges the refresh token for a new session. A rejected refresh
// ends the session.
func (s *Store) Refresh(ctx context.Context) Result {
	if st := s.State(); st != StateAuthenticated {
		return failed(st, ReasonNotAuthenticated, ErrNotAuthenticated)
	}

	err := s.refreshSession(ctx, true)
	switch {
	case err == nil:
		return succeeded(StateAuthenticated)
	case gateway.IsAuthError(err) || errors.Is(err, gateway.ErrNoSession):
		s.expire()
		return failed(StateAnonymous, ReasonSessionExpired, errors.Join(ErrSessionExpired, err))
	default:
		return failed(s.State(), gateway.Reason(err), err)
	}
}

// SessionRefreshed persists a session refreshed outside the store, such as
// by the auto-refresh loop. It is ignored unless a session is active.
func (s *Store) SessionRefreshed(sess identity.Session) {
	s.storeRefreshed(sess)
}

// Wait blocks until background work such as backend sign-out finished.
func (s *Store) Wait() {
	s.background.Wait()
}

func (s *Store) expire() {
	s.discardSession()
	s.conn.Current().ClearSession()
	err := s.apply(EventExpire, func() {
		s.user, s.org, s.imp, s.provisional = nil, nil, identity.ImpersonationState{}, false
	})
	if err == nil {
		s.logger.Info("session expired")
	}
}

// call runs op on the current handle. A critical call first makes sure a
// connection that has been quiet for too long is still alive.
func (s *Store) call(ctx context.Context, critical bool, op func(context.Context, *gateway.Client) error) error {
	if critical {
		return s.conn.DoCritical(ctx, op)
	}
	return s.conn.Do(ctx, op)
}

func (s *Store) fetchIdentity(ctx context.Context, critical bool) (identity.Identity, error) {
	var id identity.Identity
	err := s.call(ctx, critical, func(ctx context.Context, c *gateway.Client) error {
		var err error
		id, err = c.GetUser(ctx)
		return err
	})
	return id, err
}

func (s *Store) refreshSession(ctx context.Context, critical bool) error {
	var sess identity.Session
	err := s.call(ctx, critical, func(ctx context.Context, c *gateway.Client) error {
		var err error
		sess, err = c.Refresh(ctx)
		return err
	})
	if err != nil {
		return err
	}
	s.storeRefreshed(sess)
	return nil
}

// storeRefreshed holds the read lock so that a concurrent sign-out either
// runs before the check or removes the session after the write.
func (s *Store) storeRefreshed(sess identity.Session) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.importing || (s.state != StateAuthenticated && s.state != StateInitializing) {
		return
	}
	s.persistSession(sess)
}

// resolve moves an Initializing store to Authenticated with id. The
// organization is loaded on a best-effort basis.
func (s *Store) resolve(ctx context.Context, id identity.Identity) Result {
	org := s.loadOrganization(ctx, id)

	err := s.apply(EventResolve, func() {
		if s.user != nil && s.user.ID != id.ID {
			s.imp = identity.ImpersonationState{}
		}
		s.user = &id
		if org != nil || s.org == nil || s.org.ID != id.OrganizationID {
			s.org = org
		}
		s.imp.IsSuperuser = id.IsSuperuser()
		s.provisional = false
	})
	if err != nil {
		return failed(s.State(), ReasonBusy, err)
	}
	s.logger.Info("authenticated", logger.UserID(id.ID), logger.OrganizationID(id.OrganizationID))
	return succeeded(StateAuthenticated)
}

// resolveProvisional keeps the rehydrated identity when the backend could
// not be reached.
func (s *Store) resolveProvisional(cause error) Result {
	err := s.apply(EventResolve, func() {
		s.provisional = true
	})
	if err != nil {
		return failed(s.State(), ReasonBusy, err)
	}
	s.logger.Warn("backend unreachable, keeping session provisionally", logger.Error(cause))
	return Result{OK: true, State: StateAuthenticated, Err: cause}
}

func (s *Store) reject(reason string, cause error) Result {
	_ = s.apply(EventReject, func() {
		s.user, s.org, s.imp, s.provisional = nil, nil, identity.ImpersonationState{}, false
		s.importing = false
	})
	return failed(s.State(), reason, cause)
}

// restore undoes a refused sign-in attempt.
func (s *Store) restore(prev State, reason string, cause error) Result {
	if prev == StateAuthenticated {
		_ = s.apply(EventResolve, nil)
		return failed(s.State(), reason, cause)
	}
	return s.reject(reason, cause)
}

func (s *Store) loadOrganization(ctx context.Context, id identity.Identity) *identity.Organization {
	if id.OrganizationID == uuid.Nil {
		return nil
	}
	var org identity.Organization
	err := s.conn.Do(ctx, func(ctx context.Context, c *gateway.Client) error {
		var err error
		org, err = c.GetOrganization(ctx, id.OrganizationID)
		return err
	})
	if err != nil {
		s.logger.Warn("organization not loaded", logger.OrganizationID(id.OrganizationID), logger.Error(err))
		return nil
	}
	return &org
}

// apply fires event (none when empty), runs mutate under the lock, persists
// the projection and notifies subscribers.
func (s *Store) apply(event Event, mutate func()) error {
	s.mu.Lock()
	from := s.state
	if event != "" {
		to, err := next(from, event)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.state = to
	}
	if mutate != nil {
		mutate()
	}
	snap := s.snapshotLocked()
	s.persistProjection(snap)
	s.mu.Unlock()

	if from != snap.State {
		s.logger.Debug("state changed",
			logger.Event(string(event)),
			logger.Transition(from.String(), snap.State.String()),
		)
	}
	s.notify(snap)
	return nil
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		State:         s.state,
		Provisional:   s.provisional,
		User:          cloneIdentity(s.user),
		Organization:  cloneOrganization(s.org),
		Impersonation: cloneImpersonation(s.imp),
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) persistProjection(snap Snapshot) {
	p := snap.ToPersisted()
	local := s.storage.Local()
	if p.Empty() {
		if err := local.Delete(s.stateKey); err != nil {
			s.logger.Warn("persisted state not removed", logger.Error(err))
		}
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := local.Set(s.stateKey, string(data)); err != nil {
		s.logger.Warn("persisted state not written", logger.Error(err))
	}
}

func (s *Store) persistSession(sess identity.Session) {
	if !sess.Valid() {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	s.storage.Set(s.sessionKey, string(data))
}

func (s *Store) loadSession() (identity.Session, bool) {
	raw, ok := s.storage.Get(s.sessionKey)
	if !ok {
		return identity.Session{}, false
	}
	var sess identity.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.logger.Debug("ignoring malformed stored session", logger.Error(err))
		return identity.Session{}, false
	}
	return sess, sess.Valid()
}

func (s *Store) discardSession() {
	s.storage.Remove(s.sessionKey)
}
