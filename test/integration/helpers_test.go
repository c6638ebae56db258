//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"aakar-gateway/internal/app"
	"aakar-gateway/internal/config"
)

const testSecret = "integration-secret"

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		ServerPort:              "0",
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      30 * time.Second,
		ServerIdleTimeout:       time.Minute,
		RequestTimeout:          10 * time.Second,
		StoreDriver:             config.StoreDriverMemory,
		JWTSecret:               testSecret,
		JWTTTL:                  7 * 24 * time.Hour,
		BcryptCost:              bcrypt.MinCost,
		HashConcurrency:         4,
		CORSOrigins:             []string{"*"},
		RateLimitRPM:            1000,
		AuthRateLimitRPM:        1000,
		MLServiceURL:            "http://127.0.0.1:1",
		MLTimeout:               5 * time.Second,
		AuditLogFile:            filepath.Join(t.TempDir(), "audit.log"),
		LogLevel:                "error",
		LogFormat:               config.LogFormatJSON,
	}
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)

	server := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		server.Close()
		a.Close()
	})
	return server
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getWithToken(t *testing.T, url string, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

type authBody struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    struct {
		ID       string `json:"id"`
		FullName string `json:"fullName"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
	Error string `json:"error"`
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func signupJane(t *testing.T, baseURL string) authBody {
	t.Helper()

	resp := postJSON(t, baseURL+"/api/signup", map[string]string{
		"fullName": "Jane Doe",
		"username": "janedoe",
		"email":    "jane@x.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[authBody](t, resp)
}
