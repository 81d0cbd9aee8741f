package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contesthub/contesthub-gobackend/internal/identity"
	"github.com/contesthub/contesthub-gobackend/internal/logging"
	"github.com/contesthub/contesthub-gobackend/internal/models"
)

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(_ context.Context, token string) (identity.Principal, error) {
	email, ok := f[token]
	if !ok {
		return identity.Principal{}, errors.New("bad token")
	}
	return identity.Principal{Email: email}, nil
}

type fakeRoles map[string]models.Role

func (f fakeRoles) Role(_ context.Context, email string) (models.Role, error) {
	if r, ok := f[email]; ok {
		return r, nil
	}
	return models.RoleUser, nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestRequireAuth(t *testing.T) {
	verifier := fakeVerifier{"good": "ann@x.io"}
	var seen string
	h := RequireAuth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := identity.FromContext(r.Context())
		seen = p.Email
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, serve(h, r).Code)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	assert.Equal(t, http.StatusNoContent, serve(h, r).Code)
	assert.Equal(t, "ann@x.io", seen)
}

func TestRequireRole(t *testing.T) {
	roles := fakeRoles{"admin@x.io": models.RoleAdmin, "creator@x.io": models.RoleCreator}
	h := Chain(okHandler, RequireAuth(fakeVerifier{"a": "admin@x.io", "c": "creator@x.io", "u": "user@x.io"}),
		RequireRole(roles, models.RoleAdmin))

	for token, want := range map[string]int{"a": http.StatusNoContent, "c": http.StatusForbidden, "u": http.StatusForbidden} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, want, serve(h, r).Code, token)
	}

	creators := Chain(okHandler, RequireAuth(fakeVerifier{"c": "creator@x.io"}),
		RequireRole(roles, models.RoleCreator, models.RoleAdmin))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer c")
	assert.Equal(t, http.StatusNoContent, serve(creators, r).Code)
}

func TestRequireSelf(t *testing.T) {
	h := Chain(okHandler, RequireAuth(fakeVerifier{"t": "ann@x.io"}), RequireSelf("email"))

	cases := map[string]int{
		"/?email=ann@x.io": http.StatusNoContent,
		"/?email=ANN@x.io": http.StatusNoContent,
		"/?email=bob@x.io": http.StatusForbidden,
		"/":                http.StatusBadRequest,
	}
	for target, want := range cases {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		r.Header.Set("Authorization", "Bearer t")
		assert.Equal(t, want, serve(h, r).Code, target)
	}
}

func TestRequestIDAndRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")

	router := mux.NewRouter()
	router.Use(RequestID(logger), Recovery)
	router.HandleFunc("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })
	router.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusOK)
	})

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), "panic recovered")

	r := httptest.NewRequest(http.MethodGet, "/ok", nil)
	r.Header.Set(RequestIDHeader, "req-123")
	rec = serve(router, r)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, "test:rl", 2, time.Minute)
	ctx := context.Background()
	assert.True(t, l.Allow(ctx, "user:a"))
	assert.True(t, l.Allow(ctx, "user:a"))
	assert.False(t, l.Allow(ctx, "user:a"))
	assert.True(t, l.Allow(ctx, "user:b"))

	mr.Close()
	assert.False(t, l.Allow(ctx, "user:c"))
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewLocalLimiter(1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	h := Chain(okHandler, RequireAuth(fakeVerifier{"t": "ann@x.io"}), RateLimit(l))
	req := func() int {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.Header.Set("Authorization", "Bearer t")
		return serve(h, r).Code
	}
	require.Equal(t, http.StatusNoContent, req())
	assert.Equal(t, http.StatusTooManyRequests, req())

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusNoContent, req())
}

func TestRequestLogWithoutMetrics(t *testing.T) {
	slog.SetDefault(logging.NewWithWriter(&bytes.Buffer{}, "error"))
	h := RequestLog(nil)(okHandler)
	assert.Equal(t, http.StatusNoContent, serve(h, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}
