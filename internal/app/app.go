package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"aakar-gateway/internal/auth"
	"aakar-gateway/internal/config"
	"aakar-gateway/internal/database"
	"aakar-gateway/internal/event"
	"aakar-gateway/internal/handler"
	"aakar-gateway/internal/middleware"
	"aakar-gateway/internal/mlclient"
	"aakar-gateway/internal/repository"
	"aakar-gateway/internal/router"
	"aakar-gateway/internal/service"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	db           *database.DB
	server       *http.Server
	handler      http.Handler
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	users, err := a.openUserStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}

	auditService, err := service.NewAuditService(cfg.AuditLogFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}

	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	auditCtx, auditCancel := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		auditService.Consume(auditCtx, events)
	}()
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		// Closing the subscription lets Consume drain what is buffered.
		unsubscribe()
		<-auditDone
		auditCancel()
		if dropped := bus.Dropped(); dropped > 0 {
			slog.Warn("audit events dropped by slow subscriber", "count", dropped)
		}
	})

	authService := service.NewAuthService(users, hasher, tokens, bus)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	mlClient := mlclient.New(cfg.MLServiceURL, cfg.MLTimeout)

	handlers := router.Handlers{
		Auth: handler.NewAuthHandler(authService),
		ML:   handler.NewMLHandler(mlClient, bus),
	}
	if a.db != nil {
		handlers.Store = a.db
	}
	a.handler = router.New(cfg, authMiddleware, handlers)

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("application initialized",
		"store", cfg.StoreDriver,
		"ml_service", cfg.MLServiceURL,
		"token_ttl", cfg.JWTTTL.String())

	return a, nil
}

func (a *App) openUserStore(ctx context.Context, cfg *config.Config) (repository.UserStore, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory credential store; accounts are lost on restart")
		return repository.NewMemoryUserRepository(), nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)
	a.db = db

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	slog.Info("database ready")
	return repository.NewUserRepository(db.SQL), nil
}

// Handler exposes the routed handler for in-process servers.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests and
// releases resources.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		serveErr <- a.server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		a.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.Close()
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// Close runs cleanup functions in reverse registration order.
func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}
