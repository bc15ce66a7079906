package ssokit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/ssokit/pkg/connection"
	"github.com/dmitrymomot/ssokit/pkg/cookie"
	"github.com/dmitrymomot/ssokit/pkg/direct"
	"github.com/dmitrymomot/ssokit/pkg/environment"
	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/identity"
	"github.com/dmitrymomot/ssokit/pkg/logger"
	"github.com/dmitrymomot/ssokit/pkg/relay"
	"github.com/dmitrymomot/ssokit/pkg/requestid"
	"github.com/dmitrymomot/ssokit/pkg/session"
	"github.com/dmitrymomot/ssokit/pkg/storage"
	"github.com/dmitrymomot/ssokit/pkg/token"
)

// Kit is one application's view of the shared identity layer.
type Kit struct {
	Config  Config
	Logger  *slog.Logger
	Cookies *cookie.Manager
	Storage *storage.Adapter
	Conn    *session.Connection
	Store   *session.Store
	Direct  *direct.Client
	Metrics *connection.Metrics

	redis       *redis.Client
	health      func(context.Context) error
	unsubscribe func()
	closed      atomic.Bool
}

// New wires a Kit from cfg. The session store starts Uninitialized with the
// persisted identity rehydrated; call Store.Initialize to verify it.
func New(ctx context.Context, cfg Config, opts ...Option) (*Kit, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	k := &Kit{Config: cfg}

	k.Logger = o.logger
	if k.Logger == nil {
		k.Logger = logger.New(
			logger.WithEnvironment(environment.Parse(cfg.Environment), cfg.ServiceName),
			logger.WithExtractor(requestid.LoggerExtractor()),
		)
	}

	local, err := k.localTier(ctx, o)
	if err != nil {
		return nil, err
	}

	k.Cookies, err = cookie.NewFromConfig(cfg.Cookie, o.jar)
	if err != nil {
		k.closeRedis()
		return nil, fmt.Errorf("%w: cookie: %w", ErrInvalidConfig, err)
	}

	k.Storage = storage.NewAdapter(local, storage.NewCookieTier(k.Cookies, cfg.Cookie.Name),
		storage.WithMaxCookieBytes(cfg.Storage.MaxCookieBytes),
		storage.WithLogger(k.Logger),
	)

	if o.registerer != nil {
		k.Metrics = connection.NewMetrics(o.registerer)
	}

	// The store and the manager are created after the first handle, so
	// handles reach them through these pointers.
	var (
		store   atomic.Pointer[session.Store]
		manager atomic.Pointer[session.Connection]
	)
	factory := func(context.Context) (*gateway.Client, error) {
		return gateway.NewFromConfig(cfg.Gateway,
			gateway.WithHTTPClient(o.httpClient),
			gateway.WithLogger(k.Logger),
			gateway.WithSessionListener(func(s identity.Session) {
				if st := store.Load(); st != nil {
					st.SessionRefreshed(s)
				}
			}),
			gateway.WithRefreshReporter(func(err error) bool {
				if m := manager.Load(); m != nil {
					return m.Report(err)
				}
				return false
			}),
		)
	}

	k.Conn, err = connection.New(ctx, factory,
		connection.WithConfig(cfg.Connection),
		connection.WithFailureClassifier(gateway.Retryable),
		connection.WithMetrics(k.Metrics),
		connection.WithLogger(k.Logger),
	)
	if err != nil {
		k.closeRedis()
		return nil, fmt.Errorf("%w: gateway: %w", ErrInvalidConfig, err)
	}
	manager.Store(k.Conn)

	k.Store = session.New(k.Storage, k.Conn,
		session.WithConfig(cfg.Session),
		session.WithKeys(cfg.Storage.SessionKey, cfg.Storage.StateKey),
		session.WithLogger(k.Logger),
	)
	store.Store(k.Store)

	k.Direct, err = direct.New(cfg.Gateway.URL, k.accessToken,
		direct.WithConfig(cfg.Direct),
		direct.WithAPIKey(cfg.Gateway.APIKey),
		direct.WithHTTPClient(o.httpClient),
		direct.WithReporter(k.Conn.Report),
		direct.WithLogger(k.Logger),
	)
	if err != nil {
		_ = k.Conn.Close()
		k.closeRedis()
		return nil, fmt.Errorf("%w: direct: %w", ErrInvalidConfig, err)
	}

	k.Direct.OnTokenExpired(k.forceSignOut)
	k.unsubscribe = k.Store.Subscribe(func(s session.Snapshot) {
		if s.State == session.StateAuthenticated {
			k.Direct.Rearm()
		}
	})

	return k, nil
}

func (k *Kit) localTier(ctx context.Context, o *options) (storage.Tier, error) {
	cfg := k.Config.Storage
	switch {
	case o.local != nil:
		return o.local, nil
	case cfg.RedisURL != "":
		client, err := storage.ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		k.redis = client
		tier := storage.NewRedisTier(client,
			storage.WithRedisPrefix(cfg.RedisPrefix),
			storage.WithRedisLogger(k.Logger),
		)
		k.health = tier.Healthcheck
		return tier, nil
	case cfg.FilePath != "":
		tier, err := storage.NewFileTier(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("%w: storage: %w", ErrInvalidConfig, err)
		}
		return tier, nil
	default:
		return storage.NewMemoryTier(), nil
	}
}

// accessToken feeds the direct client from whatever handle is current.
func (k *Kit) accessToken() string {
	return k.Conn.Current().Session().AccessToken
}

func (k *Kit) forceSignOut() {
	k.Logger.Warn("access token expired, signing out")
	k.Store.SignOut(context.Background())
}

// RelayMiddleware accepts credentials handed over by a sibling application
// and redirects to the same URL without the relay parameter. Rejected
// credentials leave the store as it was; the request is not failed.
func (k *Kit) RelayMiddleware() func(http.Handler) http.Handler {
	return relay.Middleware(k.Config.Session.RelayParam, func(r *http.Request, p token.Pair) error {
		res := k.Store.ImportPair(r.Context(), p)
		if !res.OK {
			k.Logger.Info("relayed credentials not accepted",
				logger.State(res.State.String()),
				logger.Error(res.Err),
			)
		}
		return nil
	})
}

// Middleware is RelayMiddleware behind request id assignment, so backend
// calls made while handling the request carry the same id.
func (k *Kit) Middleware() func(http.Handler) http.Handler {
	relayed := k.RelayMiddleware()
	return func(next http.Handler) http.Handler {
		return requestid.Middleware(relayed(next))
	}
}

// Healthcheck pings the backend and, when used, the Redis local tier.
func (k *Kit) Healthcheck(ctx context.Context) error {
	var errs []error
	if !k.Conn.HealthCheck(ctx, k.Config.Connection.HealthTimeout) {
		errs = append(errs, fmt.Errorf("%w: backend", ErrUnhealthy))
	}
	if k.health != nil {
		if err := k.health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: redis: %w", ErrUnhealthy, err))
		}
	}
	return errors.Join(errs...)
}

// Close waits for background work and releases the connection.
func (k *Kit) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return nil
	}
	if k.unsubscribe != nil {
		k.unsubscribe()
	}
	k.Store.Wait()
	k.Direct.Wait()

	err := k.Conn.Close()
	if k.redis != nil {
		err = errors.Join(err, k.redis.Close())
	}
	return err
}

func (k *Kit) closeRedis() {
	if k.redis != nil {
		_ = k.redis.Close()
	}
}
