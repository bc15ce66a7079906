package gateway

import "time"

// Config holds backend client configuration.
type Config struct {
	URL      string `env:"GATEWAY_URL" envDefault:"http://localhost:54321"`
	APIKey   string `env:"GATEWAY_API_KEY"`
	ClientID string `env:"GATEWAY_CLIENT_ID" envDefault:"ssokit"`

	// Timeout bounds every single round trip.
	Timeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	// RefreshMargin is how close to expiry the background loop refreshes.
	RefreshMargin time.Duration `env:"GATEWAY_REFRESH_MARGIN" envDefault:"60s"`
	// RefreshInterval is how often the background loop checks expiry.
	RefreshInterval time.Duration `env:"GATEWAY_REFRESH_INTERVAL" envDefault:"15s"`
}

// DefaultConfig returns default gateway configuration.
func DefaultConfig() Config {
	return Config{
		URL:             "http://localhost:54321",
		ClientID:        "ssokit",
		Timeout:         10 * time.Second,
		RefreshMargin:   60 * time.Second,
		RefreshInterval: 15 * time.Second,
	}
}
