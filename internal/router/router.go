package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aakar-gateway/internal/config"
	"aakar-gateway/internal/handler"
	"aakar-gateway/internal/middleware"
)

// mlGrace covers the hop between the gateway and the generation service on
// top of the client timeout.
const mlGrace = 30 * time.Second

const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether a backing dependency can serve requests.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Handlers struct {
	Auth *handler.AuthHandler
	ML   *handler.MLHandler
	// Store is checked by /health when set.
	Store HealthChecker
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.RealIP(middleware.NewIPResolver(cfg.TrustedProxies)))
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if h.Store != nil {
			ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
			defer cancel()
			if err := h.Store.Health(ctx); err != nil {
				slog.Warn("health check failed", "error", err.Error())
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("database unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(short chi.Router) {
			short.Use(middleware.Timeout(cfg.RequestTimeout))

			short.Post("/signup", h.Auth.Signup)
			short.Post("/login", h.Auth.Login)
			short.With(authMiddleware.RequireAuth).Get("/profile", h.Auth.Profile)
		})

		api.Route("/ml", func(ml chi.Router) {
			ml.Use(middleware.LongRunning(cfg.MLTimeout + mlGrace))

			ml.Post("/generate-house", h.ML.GenerateHouse)
			ml.Get("/examples", h.ML.Examples)
			ml.Post("/examples/{id}", h.ML.GenerateExample)
			ml.Get("/styles", h.ML.Styles)
			ml.Get("/health", h.ML.Health)
			ml.Get("/status", h.ML.Status)
			ml.Get("/download/*", h.ML.Download)
		})
	})

	return r
}
