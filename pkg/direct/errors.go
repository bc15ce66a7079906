package direct

import "errors"

var (
	ErrInvalidURL      = errors.New("direct.invalid_url")
	ErrTokenExpired    = errors.New("direct.token_expired")
	ErrTimeout         = errors.New("direct.timeout")
	ErrRequestFailed   = errors.New("direct.request_failed")
	ErrUnfilteredWrite = errors.New("direct.unfiltered_write")
)
