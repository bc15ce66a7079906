package cookie

import "errors"

var (
	ErrInvalidOrigin    = errors.New("cookie.invalid_origin")
	ErrCookieNotFound   = errors.New("cookie.not_found")
	ErrInvalidName      = errors.New("cookie.invalid_name")
	ErrInsecureSameSite = errors.New("cookie.insecure_same_site")
)
