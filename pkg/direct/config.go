package direct

import "time"

// Config holds bypass client configuration. The backend URL and API key
// come from the gateway configuration.
type Config struct {
	Timeout       time.Duration `env:"DIRECT_TIMEOUT" envDefault:"10s"`
	BeaconTimeout time.Duration `env:"DIRECT_BEACON_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns default bypass configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		BeaconTimeout: 5 * time.Second,
	}
}
