package relay

import (
	"net/http"

	"github.com/dmitrymomot/ssokit/pkg/token"
)

// ImportFunc receives a relayed pair. Returning an error aborts the redirect
// with 500.
type ImportFunc func(r *http.Request, p token.Pair) error

// Middleware consumes the relay parameter for server-rendered applications:
// the pair is handed to importFn and the client is redirected to the same URL
// without the parameter. Requests without the parameter pass through.
func Middleware(param string, importFn ImportFunc) func(http.Handler) http.Handler {
	if param == "" {
		param = DefaultParam
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !r.URL.Query().Has(param) {
				next.ServeHTTP(w, r)
				return
			}

			pair, stripped, ok := Consume(r.URL, param)
			if ok && importFn != nil {
				if err := importFn(r, pair); err != nil {
					http.Error(w, "relay import failed", http.StatusInternalServerError)
					return
				}
			}

			http.Redirect(w, r, stripped.RequestURI(), http.StatusSeeOther)
		})
	}
}
