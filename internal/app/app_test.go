package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"aakar-gateway/internal/config"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		ServerPort:              "0",
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      time.Minute,
		ServerIdleTimeout:       time.Minute,
		RequestTimeout:          5 * time.Second,
		StoreDriver:             config.StoreDriverMemory,
		JWTSecret:               "app-secret",
		JWTTTL:                  time.Hour,
		BcryptCost:              bcrypt.MinCost,
		HashConcurrency:         2,
		CORSOrigins:             []string{"*"},
		RateLimitRPM:            -1,
		AuthRateLimitRPM:        -1,
		MLServiceURL:            "http://127.0.0.1:1",
		MLTimeout:               time.Second,
		AuditLogFile:            filepath.Join(t.TempDir(), "state", "audit.log"),
		LogLevel:                "info",
		LogFormat:               config.LogFormatJSON,
	}
}

func TestNew_MemoryStoreWritesAuditTrail(t *testing.T) {
	cfg := memoryConfig(t)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	body := `{"fullName":"Jane Doe","username":"janedoe","email":"jane@x.com","password":"secret1"}`
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	a.Close()

	raw, err := os.ReadFile(cfg.AuditLogFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"action":"user.signed_up"`)
}

func TestNew_RejectsBadHasherConfig(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.BcryptCost = bcrypt.MaxCost + 1

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password hasher")
}

func TestClose_IsIdempotent(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t))
	require.NoError(t, err)

	a.Close()
	a.Close()
}
