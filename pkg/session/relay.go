package session

import (
	"context"
	"errors"
	"net/url"

	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/relay"
	"github.com/dmitrymomot/ssokit/pkg/token"
)

// ConsumeRelay imports credentials handed over in u's relay parameter and
// verifies them before anything is persisted. The returned URL never carries
// the parameter and should replace u in the address bar.
func (s *Store) ConsumeRelay(ctx context.Context, u *url.URL) (*url.URL, Result) {
	pair, stripped, ok := relay.Consume(u, s.cfg.RelayParam)
	if !ok {
		return stripped, failed(s.State(), ReasonNoRelay, ErrNoRelay)
	}
	return stripped, s.ImportPair(ctx, pair)
}

// ImportPair adopts a token pair obtained from another application. The
// pair lives on the connection alone until the backend accepts it or cannot
// be reached; only then is it persisted and the sign-out guard lifted. A
// rejected pair leaves storage and the shared cookie as they were, and a
// previously signed-in user stays signed in.
func (s *Store) ImportPair(ctx context.Context, pair token.Pair) Result {
	if !pair.Complete() {
		return failed(s.State(), ReasonNoRelay, token.ErrIncompletePair)
	}

	prev := s.State()
	if err := s.apply(EventSignIn, func() { s.importing = true }); err != nil {
		return failed(s.State(), ReasonBusy, err)
	}
	before := s.conn.Current().Session()
	s.conn.Current().SetSession(identity.SessionFromPair(pair))

	id, err := s.fetchIdentity(ctx, true)
	if gateway.IsAuthError(err) {
		s.logger.Debug("relayed session rejected, refreshing", logger.Error(err))
		if err = s.refreshSession(ctx, false); err == nil {
			id, err = s.fetchIdentity(ctx, false)
		}
	}

	switch {
	case err == nil:
		if !s.adoptImported() {
			return failed(s.State(), ReasonBusy, ErrInvalidTransition)
		}
		return s.resolve(ctx, id)
	case gateway.Retryable(err):
		if !s.adoptImported() {
			return failed(s.State(), ReasonBusy, ErrInvalidTransition)
		}
		return s.resolveProvisional(err)
	default:
		s.logger.Info("relayed session rejected", logger.Error(err))
		s.dropImported(prev, before)
		return s.restore(prev, ReasonSessionExpired, errors.Join(ErrSessionExpired, err))
	}
}

// adoptImported persists the verified pair. It reports false when a
// sign-out overtook the import.
func (s *Store) adoptImported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.importing || s.state != StateInitializing {
		return false
	}
	s.importing = false
	s.storage.EndSignOut()
	s.persistSession(s.conn.Current().Session())
	return true
}

// dropImported puts back the session the connection carried before the
// import.
func (s *Store) dropImported(prev State, before identity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.importing {
		return
	}
	s.importing = false
	if prev == StateAuthenticated && before.Valid() {
		s.conn.Current().SetSession(before)
		return
	}
	s.conn.Current().ClearSession()
}

// RelayURL returns target carrying the current session for hand-over to
// another application.
func (s *Store) RelayURL(target string) (string, error) {
	if s.State() != StateAuthenticated {
		return "", ErrNotAuthenticated
	}
	sess := s.conn.Current().Session()
	if !sess.Valid() {
		return "", ErrNoSession
	}
	return relay.Attach(target, s.cfg.RelayParam, sess.Pair())
}
