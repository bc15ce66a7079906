package token

import "errors"

var (
	ErrInvalidToken   = errors.New("token.invalid_format")
	ErrIncompletePair = errors.New("token.incomplete_pair")
)
