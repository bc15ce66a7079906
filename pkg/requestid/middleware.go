// Package requestid correlates an incoming request with the backend calls it
// causes. Middleware accepts or mints an id, Stamp copies it onto outgoing
// requests, and LoggerExtractor adds it to log records.
package requestid

import (
	"net/http"

	"github.com/google/uuid"
)

// Header is read from incoming and written to outgoing requests.
const Header = "X-Request-ID"

const maxLen = 128

// Middleware puts the caller's id, or a fresh one when it is missing or
// malformed, into the request context and echoes it in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !Valid(id) {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
	})
}

// Stamp sets Header on req from its context unless already present. Requests
// without a context id get a fresh one.
func Stamp(req *http.Request) {
	if req.Header.Get(Header) != "" {
		return
	}
	id := FromContext(req.Context())
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(Header, id)
}

// Valid accepts 1 to 128 characters from [A-Za-z0-9_-].
func Valid(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
