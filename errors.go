package ssokit

import "errors"

var (
	ErrInvalidConfig = errors.New("ssokit.invalid_config")
	ErrUnhealthy     = errors.New("ssokit.unhealthy")
)
