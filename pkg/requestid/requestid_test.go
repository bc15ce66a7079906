package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/ssokit/pkg/requestid"
)

func serve(t *testing.T, incoming string) (seen, echoed string) {
	t.Helper()

	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(requestid.Header, incoming)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec.Header().Get(requestid.Header)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"abc123", "ABC-123_xyz", "550e8400-e29b-41d4-a716-446655440000"} {
		seen, echoed := serve(t, id)
		assert.Equal(t, id, seen)
		assert.Equal(t, id, echoed)
	}

	for _, id := range []string{"", "a b", "a/b", "<script>", strings.Repeat("x", 129)} {
		seen, echoed := serve(t, id)
		require.NotEmpty(t, seen, id)
		assert.NotEqual(t, id, seen)
		assert.Equal(t, seen, echoed)
	}
}

func TestStamp(t *testing.T) {
	t.Parallel()

	ctx := requestid.WithContext(context.Background(), "req-1")
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	requestid.Stamp(req)
	assert.Equal(t, "req-1", req.Header.Get(requestid.Header))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.Header, "preset")
	requestid.Stamp(req.WithContext(ctx))
	assert.Equal(t, "preset", req.Header.Get(requestid.Header))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	requestid.Stamp(req)
	assert.True(t, requestid.Valid(req.Header.Get(requestid.Header)))
}

func TestEnsure(t *testing.T) {
	t.Parallel()

	ctx, id := requestid.Ensure(context.Background())
	require.NotEmpty(t, id)
	assert.Equal(t, id, requestid.FromContext(ctx))

	again, same := requestid.Ensure(ctx)
	assert.Equal(t, id, same)
	assert.Equal(t, ctx, again)
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := requestid.LoggerExtractor()
	_, ok := extract(context.Background())
	assert.False(t, ok)

	attr, ok := extract(requestid.WithContext(context.Background(), "req-2"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-2", attr.Value.String())
}
