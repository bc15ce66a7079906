package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/ssokit/pkg/logger"
)

// RedisTier is a local tier shared by the processes of one server-rendered
// application. Keys are namespaced with a prefix.
type RedisTier struct {
	db      redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// RedisTierOption configures a RedisTier.
type RedisTierOption func(*RedisTier)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisTierOption {
	return func(t *RedisTier) {
		t.prefix = prefix
	}
}

// WithRedisTTL sets an expiration for stored values. Zero means none.
func WithRedisTTL(ttl time.Duration) RedisTierOption {
	return func(t *RedisTier) {
		t.ttl = ttl
	}
}

// WithRedisTimeout bounds each round trip.
func WithRedisTimeout(d time.Duration) RedisTierOption {
	return func(t *RedisTier) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithRedisLogger sets the logger used for swallowed read errors.
func WithRedisLogger(l *slog.Logger) RedisTierOption {
	return func(t *RedisTier) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewRedisTier wraps a go-redis client.
func NewRedisTier(client redis.UniversalClient, opts ...RedisTierOption) *RedisTier {
	t := &RedisTier{
		db:      client,
		prefix:  "ssokit:",
		timeout: 2 * time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get treats redis.Nil and backend errors alike as a miss.
func (t *RedisTier) Get(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	val, err := t.db.Get(ctx, t.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		t.logger.Warn("redis tier read failed", logger.Component("storage.redis"), logger.Error(err))
		return "", false
	}
	return val, true
}

func (t *RedisTier) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	return t.db.Set(ctx, t.prefix+key, value, t.ttl).Err()
}

func (t *RedisTier) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	return t.db.Del(ctx, t.prefix+key).Err()
}

// Healthcheck pings the backing server.
func (t *RedisTier) Healthcheck(ctx context.Context) error {
	return t.db.Ping(ctx).Err()
}

// ConnectRedis parses the URL and pings the server, retrying up to
// cfg.RedisRetryAttempts times within cfg.RedisConnectTimeout.
func ConnectRedis(ctx context.Context, cfg Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseRedisConnString, err)
	}

	attempts := max(cfg.RedisRetryAttempts, 1)
	for range attempts {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RedisRetryInterval):
		}
	}

	return nil, ErrRedisNotReady
}
