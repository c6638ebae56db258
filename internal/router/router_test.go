package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"aakar-gateway/internal/auth"
	"aakar-gateway/internal/config"
	"aakar-gateway/internal/handler"
	"aakar-gateway/internal/middleware"
	"aakar-gateway/internal/mlclient"
	"aakar-gateway/internal/repository"
	"aakar-gateway/internal/service"
)

func newTestRouter(t *testing.T, mlURL string) http.Handler {
	t.Helper()
	return newTestRouterWithStore(t, mlURL, nil)
}

func newTestRouterWithStore(t *testing.T, mlURL string, store HealthChecker) http.Handler {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     -1,
		AuthRateLimitRPM: -1,
		MLTimeout:        5 * time.Second,
	}

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost, 2)
	require.NoError(t, err)
	tokens, err := auth.NewTokenManager("router-secret", time.Hour)
	require.NoError(t, err)

	svc := service.NewAuthService(repository.NewMemoryUserRepository(), hasher, tokens, nil)

	return New(cfg, middleware.NewAuthMiddleware(svc), Handlers{
		Auth:  handler.NewAuthHandler(svc),
		ML:    handler.NewMLHandler(mlclient.New(mlURL, cfg.MLTimeout), nil),
		Store: store,
	})
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

type stubHealth struct {
	err error
}

func (s stubHealth) Health(context.Context) error {
	return s.err
}

func TestHealth_ReportsStoreOutage(t *testing.T) {
	r := newTestRouterWithStore(t, "http://127.0.0.1:1", stubHealth{err: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "database unavailable", rec.Body.String())
}

func TestHealth_StoreReachable(t *testing.T) {
	r := newTestRouterWithStore(t, "http://127.0.0.1:1", stubHealth{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
}

func TestAuthRoutesWired(t *testing.T) {
	r := newTestRouter(t, "http://127.0.0.1:1")

	body := `{"fullName":"Jane Doe","username":"janedoe","email":"jane@x.com","password":"secret1"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMLRoutesArePublic(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	}))
	defer upstream.Close()

	r := newTestRouter(t, upstream.URL)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ml/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
