package connection

import "time"

// Config holds connection management configuration.
type Config struct {
	HealthTimeout    time.Duration `env:"CONNECTION_HEALTH_TIMEOUT" envDefault:"5s"`
	QuietWindow      time.Duration `env:"CONNECTION_QUIET_WINDOW" envDefault:"2m"`
	FailureThreshold int           `env:"CONNECTION_FAILURE_THRESHOLD" envDefault:"2"`
	AutoRefresh      bool          `env:"CONNECTION_AUTO_REFRESH" envDefault:"true"`
}

// DefaultConfig returns default connection configuration.
func DefaultConfig() Config {
	return Config{
		HealthTimeout:    5 * time.Second,
		QuietWindow:      2 * time.Minute,
		FailureThreshold: 2,
		AutoRefresh:      true,
	}
}
