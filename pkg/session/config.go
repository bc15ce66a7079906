package session

import "time"

// Config holds session store configuration.
type Config struct {
	// AllowedDomains may sign up without an invitation.
	AllowedDomains []string `env:"SIGNUP_ALLOWED_DOMAINS" envSeparator:","`
	// OpenSignUp lets anyone sign up without an invitation. Meant for
	// development environments.
	OpenSignUp bool `env:"SIGNUP_OPEN" envDefault:"false"`

	InviteTTL time.Duration `env:"INVITE_TTL" envDefault:"168h"`

	// SignOutTimeout bounds the best-effort backend sign-out.
	SignOutTimeout time.Duration `env:"SIGNOUT_TIMEOUT" envDefault:"5s"`

	// RelayParam is the query parameter carrying handed-over credentials.
	RelayParam string `env:"SSO_RELAY_PARAM" envDefault:"sso"`
}

// DefaultConfig returns default session configuration.
func DefaultConfig() Config {
	return Config{
		InviteTTL:      7 * 24 * time.Hour,
		SignOutTimeout: 5 * time.Second,
		RelayParam:     "sso",
	}
}
