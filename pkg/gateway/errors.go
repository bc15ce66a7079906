package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidURL      = errors.New("gateway.invalid_url")
	ErrNetwork         = errors.New("gateway.network")
	ErrNoSession       = errors.New("gateway.no_session")
	ErrClosed          = errors.New("gateway.closed")
	ErrDecodeResponse  = errors.New("gateway.decode_response")
	ErrUnfilteredWrite = errors.New("gateway.unfiltered_write")
	ErrNotFound        = errors.New("gateway.not_found")
	ErrSessionReplaced = errors.New("gateway.session_replaced")
)

// Error is a non-2xx backend response.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: %d: %s", e.Status, e.Message)
}

// errorBody covers both the REST ({code, message}) and the OAuth
// ({error, error_description}) error shapes.
type errorBody struct {
	Code        string `json:"code"`
	ErrorCode   string `json:"error_code"`
	Err         string `json:"error"`
	Message     string `json:"message"`
	Msg         string `json:"msg"`
	Description string `json:"error_description"`
}

// ParseError builds an *Error from a response status and body.
func ParseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Code = firstNonEmpty(eb.Code, eb.ErrorCode, eb.Err)
		e.Message = firstNonEmpty(eb.Message, eb.Msg, eb.Description)
	}
	if e.Message == "" {
		e.Message = sanitizeBody(body)
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// TokenExpiredResponse reports whether a response is the "JWT expired"
// rejection rather than any other 401.
func TokenExpiredResponse(status int, body []byte) bool {
	if status != http.StatusUnauthorized {
		return false
	}
	e := ParseError(status, body)
	return expiredMarker(e.Code, e.Message)
}

func expiredMarker(code, message string) bool {
	switch strings.ToLower(code) {
	case "jwt_expired", "token_expired", "pgrst301":
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "jwt expired") ||
		strings.Contains(m, "token is expired") ||
		strings.Contains(m, "token has expired")
}

// IsTokenExpired reports whether err is an expired access token rejection.
func IsTokenExpired(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Status == http.StatusUnauthorized && expiredMarker(e.Code, e.Message)
}

// IsAuthError reports whether the backend rejected the credentials: a 401,
// a 403 or an OAuth invalid_grant.
func IsAuthError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch {
	case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden:
		return true
	case e.Status == http.StatusBadRequest && e.Code == "invalid_grant":
		return true
	default:
		return false
	}
}

// IsNetworkError reports whether no response was received.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsNotFound reports a 404 or an empty single-row lookup.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// Reason returns a human readable message for err suitable for the UI.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if IsNetworkError(err) {
		return "The service is unreachable. Check your connection and try again."
	}
	return "Unexpected error"
}

func sanitizeBody(body []byte) string {
	s := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " "))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Retryable reports failures that indicate a degraded connection rather
// than a rejected request: no response at all, or a 5xx.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsNetworkError(err) || errors.Is(err, ErrClosed) {
		return true
	}
	var e *Error
	return errors.As(err, &e) && e.Status >= http.StatusInternalServerError
}
