package ssokit

import (
	"github.com/dmitrymomot/ssokit/pkg/config"
	"github.com/dmitrymomot/ssokit/pkg/connection"
	"github.com/dmitrymomot/ssokit/pkg/cookie"
	"github.com/dmitrymomot/ssokit/pkg/direct"
	"github.com/dmitrymomot/ssokit/pkg/gateway"
	"github.com/dmitrymomot/ssokit/pkg/session"
	"github.com/dmitrymomot/ssokit/pkg/storage"
)

// Config is the complete configuration of a Kit.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	ServiceName string `env:"APP_NAME" envDefault:"ssokit"`

	Storage    storage.Config
	Cookie     cookie.Config
	Gateway    gateway.Config
	Connection connection.Config
	Session    session.Config
	Direct     direct.Config
}

// DefaultConfig returns the defaults of every component.
func DefaultConfig() Config {
	return Config{
		Environment: "development",
		ServiceName: "ssokit",
		Storage:     storage.DefaultConfig(),
		Cookie:      cookie.DefaultConfig(),
		Gateway:     gateway.DefaultConfig(),
		Connection:  connection.DefaultConfig(),
		Session:     session.DefaultConfig(),
		Direct:      direct.DefaultConfig(),
	}
}

// LoadConfig reads Config from the environment and an optional .env file.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
