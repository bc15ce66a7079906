package storage

import "time"

// Config holds storage configuration.
type Config struct {
	// SessionKey is the local-tier key holding the persisted session.
	SessionKey string `env:"STORAGE_SESSION_KEY" envDefault:"ssokit.auth.session"`
	// StateKey is the local-tier key holding the persisted identity projection.
	StateKey string `env:"STORAGE_STATE_KEY" envDefault:"ssokit.auth.state"`

	// FilePath enables the file-backed local tier when set.
	FilePath string `env:"STORAGE_FILE_PATH" envDefault:""`

	// RedisURL enables the Redis local tier when set (takes precedence over FilePath).
	RedisURL            string        `env:"REDIS_URL" envDefault:""`
	RedisPrefix         string        `env:"REDIS_PREFIX" envDefault:"ssokit:"`
	RedisRetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RedisRetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`

	// MaxCookieBytes is the ceiling for the encoded shared cookie value.
	MaxCookieBytes int `env:"SSO_COOKIE_MAX_BYTES" envDefault:"3800"`
}

// DefaultConfig returns default storage configuration
func DefaultConfig() Config {
	return Config{
		SessionKey:          "ssokit.auth.session",
		StateKey:            "ssokit.auth.state",
		RedisPrefix:         "ssokit:",
		RedisRetryAttempts:  3,
		RedisRetryInterval:  2 * time.Second,
		RedisConnectTimeout: 10 * time.Second,
		MaxCookieBytes:      DefaultMaxCookieBytes,
	}
}
