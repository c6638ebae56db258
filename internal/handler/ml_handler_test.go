package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aakar-gateway/internal/event"
	"aakar-gateway/internal/mlclient"
	"aakar-gateway/internal/model"
)

func newMLRouter(t *testing.T, upstream http.Handler, bus event.Bus) http.Handler {
	t.Helper()

	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	h := NewMLHandler(mlclient.New(server.URL, 2*time.Second), bus)

	r := chi.NewRouter()
	r.Route("/api/ml", func(r chi.Router) {
		r.Post("/generate-house", h.GenerateHouse)
		r.Get("/examples", h.Examples)
		r.Post("/examples/{id}", h.GenerateExample)
		r.Get("/styles", h.Styles)
		r.Get("/health", h.Health)
		r.Get("/status", h.Status)
		r.Get("/download/*", h.Download)
	})
	return r
}

func serve(router http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGenerateHouse_Relays(t *testing.T) {
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	var forwarded model.GenerateRequest
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&forwarded))
		_, _ = io.WriteString(w, `{"success":true,"message":"House generated successfully","data":{"files":{},"attributes":{"style":"modern"},"processing_time":3.2}}`)
	}), bus)

	rec := serve(router, http.MethodPost, "/api/ml/generate-house", `{"description":"  A modern Indian villa with glass windows ","style":"modern"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A modern Indian villa with glass windows", forwarded.Description)
	assert.Equal(t, "modern", forwarded.Style)

	var out model.GenerationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "House generated successfully", out.Message)
	require.NotNil(t, out.Data)
	assert.JSONEq(t, `{"style":"modern"}`, string(out.Data.Attributes))

	select {
	case e := <-events:
		assert.Equal(t, event.TypeHouseGenerated, e.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a house.generated event")
	}
}

func TestGenerateHouse_MissingDescription(t *testing.T) {
	called := false
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), nil)

	rec := serve(router, http.MethodPost, "/api/ml/generate-house", `{"description":"   "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Description is required","error":"Missing 'description' in request body"}`, rec.Body.String())
	assert.False(t, called)
}

func TestGenerateHouse_UpstreamFailurePassesStatusThrough(t *testing.T) {
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"success":false,"error":"Server error: blender not found"}`)
	}), nil)

	rec := serve(router, http.MethodPost, "/api/ml/generate-house", `{"description":"villa"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"House generation failed","error":"Server error: blender not found"}`, rec.Body.String())
}

func TestGenerateHouse_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	h := NewMLHandler(mlclient.New(addr, time.Second), nil)
	r := chi.NewRouter()
	r.Post("/api/ml/generate-house", h.GenerateHouse)

	rec := serve(r, http.MethodPost, "/api/ml/generate-house", `{"description":"villa"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var out model.RelayError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, out.Success)
	assert.Equal(t, "ML service unavailable", out.Message)
}

func TestGenerateExample_UnknownID(t *testing.T) {
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate/example/igloo", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"error":"Example 'igloo' not found"}`)
	}), nil)

	rec := serve(router, http.MethodPost, "/api/ml/examples/igloo", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Example 'igloo' not found")
}

func TestRawRelays(t *testing.T) {
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate/examples":
			_, _ = io.WriteString(w, `{"success":true,"examples":[{"id":"kerala"}]}`)
		case "/styles":
			_, _ = io.WriteString(w, `{"success":true,"styles":{"modern":{}}}`)
		case "/health":
			_, _ = io.WriteString(w, `{"status":"healthy"}`)
		}
	}), nil)

	cases := map[string]string{
		"/api/ml/examples": `{"success":true,"examples":[{"id":"kerala"}]}`,
		"/api/ml/styles":   `{"success":true,"styles":{"modern":{}}}`,
		"/api/ml/health":   `{"status":"healthy"}`,
	}
	for path, want := range cases {
		rec := serve(router, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, want, rec.Body.String(), path)
	}
}

func TestDownload_StreamsFile(t *testing.T) {
	var upstreamPath string
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamPath = r.URL.Path
		w.Header().Set("Content-Type", "application/x-blender")
		w.Header().Set("Content-Disposition", `attachment; filename="house.blend"`)
		w.Header().Set("Content-Length", "100000")
		_, _ = io.WriteString(w, strings.Repeat("B", 100_000))
	}), nil)

	rec := serve(router, http.MethodGet, "/api/ml/download/20251026_013412/house.blend", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/download/20251026_013412/house.blend", upstreamPath)
	assert.Equal(t, "application/x-blender", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="house.blend"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "100000", rec.Header().Get("Content-Length"))
	assert.Equal(t, 100_000, rec.Body.Len())
	assert.True(t, rec.Flushed)
}

func TestDownload_NotFoundIsRelayed(t *testing.T) {
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"error":"File not found"}`)
	}), nil)

	rec := serve(router, http.MethodGet, "/api/ml/download/missing.blend", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Download failed","error":"File not found"}`, rec.Body.String())
}

func TestDownload_RejectsTraversal(t *testing.T) {
	called := false
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), nil)

	for _, p := range []string{"/api/ml/download/../secrets.txt", "/api/ml/download/a/./b"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = p
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, p)
	}
	assert.False(t, called)
}

func TestValidDownloadPath(t *testing.T) {
	assert.True(t, validDownloadPath("house.blend"))
	assert.True(t, validDownloadPath("20251026/house.blend"))
	assert.False(t, validDownloadPath(""))
	assert.False(t, validDownloadPath("a/../b"))
	assert.False(t, validDownloadPath("a//b"))
	assert.False(t, validDownloadPath(`a\b`))
}

func TestStatusRelay(t *testing.T) {
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		_, _ = io.WriteString(w, `{"success":true,"status":{"version":"3.0"}}`)
	}), nil)

	rec := serve(router, http.MethodGet, "/api/ml/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"status":{"version":"3.0"}}`, rec.Body.String())
}

func TestRelayUndecodableAnswerIsBadGateway(t *testing.T) {
	router := newMLRouter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>not json</html>`)
	}), nil)

	rec := serve(router, http.MethodGet, "/api/ml/styles", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

type brokenGenerator struct {
	houseGenerator
}

func (brokenGenerator) Status(context.Context) (json.RawMessage, error) {
	return nil, errors.New("encode request: unsupported value")
}

func TestRelayLocalFailureIsInternal(t *testing.T) {
	h := NewMLHandler(brokenGenerator{}, nil)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/ml/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Generation service request failed","error":"Something went wrong, please try again"}`, rec.Body.String())
}
