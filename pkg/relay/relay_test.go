package relay_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/relay"
	"github.com/dmitrymomot/ssokit/pkg/token"
)

func TestAttachConsume(t *testing.T) {
	t.Parallel()

	pair := token.Pair{AccessToken: "A", RefreshToken: "R"}
	link, err := relay.Attach("https://reports.example.com/dash?tab=2", "", pair)
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)

	got, stripped, ok := relay.Consume(u, "")
	require.True(t, ok)
	assert.Equal(t, pair, got)
	assert.Equal(t, "tab=2", stripped.RawQuery)
	assert.Equal(t, "/dash", stripped.Path)

	// The input URL is left untouched.
	assert.True(t, u.Query().Has(relay.DefaultParam))
}

func TestConsume_StripsMalformed(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("https://app.example.com/?sso=garbage&x=1")
	_, stripped, ok := relay.Consume(u, "")
	assert.False(t, ok)
	assert.Equal(t, "x=1", stripped.RawQuery)
}

func TestConsume_Missing(t *testing.T) {
	t.Parallel()

	u, _ := url.Parse("https://app.example.com/?x=1")
	_, stripped, ok := relay.Consume(u, "")
	assert.False(t, ok)
	assert.Equal(t, "x=1", stripped.RawQuery)

	_, stripped, ok = relay.Consume(nil, "")
	assert.False(t, ok)
	assert.Nil(t, stripped)
}

func TestAttach_IncompletePair(t *testing.T) {
	t.Parallel()

	_, err := relay.Attach("https://app.example.com", "", token.Pair{AccessToken: "A"})
	assert.ErrorIs(t, err, token.ErrIncompletePair)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var imported []token.Pair
	r := chi.NewRouter()
	r.Use(relay.Middleware("", func(_ *http.Request, p token.Pair) error {
		imported = append(imported, p)
		return nil
	}))
	r.Get("/dash", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	link, err := relay.Attach("/dash?tab=1", "", token.Pair{AccessToken: "A", RefreshToken: "R"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, link, nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dash?tab=1", rec.Header().Get("Location"))
	require.Len(t, imported, 1)
	assert.Equal(t, "A", imported[0].AccessToken)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dash?tab=1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, imported, 1)
}

func TestMiddleware_ImportError(t *testing.T) {
	t.Parallel()

	h := relay.Middleware("", func(*http.Request, token.Pair) error {
		return errors.New("store unavailable")
	})(http.NotFoundHandler())

	link, _ := relay.Attach("/", "", token.Pair{AccessToken: "A", RefreshToken: "R"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, link, nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
