// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
//   - which store backend holds the account records
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server and the background sweeper start and stop
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → Backend (sqlite.DB or redisstore.Store)
//	  → AccountService / AdminService / ModeratorService
//	  → AccountHandler / AdminHandler / ModeratorHandler
//
// This is the "composition root": every dependency is built in New, and
// nothing below this package constructs its own collaborators.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/sakif/account-gate/internal/auth"
	"github.com/sakif/account-gate/internal/classifier"
	"github.com/sakif/account-gate/internal/config"
	"github.com/sakif/account-gate/internal/handler"
	"github.com/sakif/account-gate/internal/middleware"
	"github.com/sakif/account-gate/internal/repository"
	"github.com/sakif/account-gate/internal/repository/redisstore"
	sqliteRepo "github.com/sakif/account-gate/internal/repository/sqlite"
	"github.com/sakif/account-gate/internal/service"
	"github.com/sakif/account-gate/internal/sweeper"
)

// Server owns the router, the store backend and the sweeper. The backend
// is closed when Start returns.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	backend repository.Backend
	sweeper *sweeper.Sweeper
}

// New opens the configured backend and wires everything on top of it.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	backend, err := openBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := NewWithBackend(cfg, backend, nil, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

// NewWithBackend wires a server over an existing backend. clf overrides the
// configured classifier when non-nil; tests use it to avoid the network.
func NewWithBackend(cfg *config.Config, backend repository.Backend, clf classifier.Classifier, logger *slog.Logger) (*Server, error) {
	if clf == nil {
		clf = newClassifier(cfg, logger)
	}

	policy := service.Policy{
		InactivityThreshold: cfg.Policy.InactivityThreshold,
		ReactivationWindow:  cfg.Policy.ReactivationWindow,
		EnableDeactivation:  cfg.DeactivationEnabled(),
		StoreTimeout:        cfg.Timeouts.Store,
		ClassifierTimeout:   cfg.Timeouts.Classifier,
	}

	hasher := auth.NewHasher()

	var tokens *auth.TokenService
	if cfg.Admin.KeyHash != "" {
		var err error
		tokens, err = auth.NewTokenService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("creating admin token service: %w", err)
		}
	} else {
		logger.Warn("admin.keyHash not set, admin endpoints are disabled")
	}

	accounts := service.NewAccountService(backend, backend, backend, clf, policy, logger)
	moderators := service.NewModeratorService(backend, backend, hasher, logger)
	admin := service.NewAdminService(backend, backend, backend, policy, logger)
	authn := auth.NewAdminAuthenticator(cfg.Admin.KeyHash, hasher, tokens, logger)

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		backend: backend,
		sweeper: sweeper.New(accounts, cfg.Sweeper.Interval, logger),
	}

	s.setupRoutes(routeDeps{
		accounts:   handler.NewAccountHandler(accounts, logger),
		moderators: handler.NewModeratorHandler(moderators, logger),
		admin:      handler.NewAdminHandler(admin, authn, logger),
		health:     handler.NewHealthHandler(backend, logger),
		tokens:     tokens,
	})
	return s, nil
}

func openBackend(cfg *config.Config, logger *slog.Logger) (repository.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Store)
		defer cancel()
		store, err := redisstore.Open(ctx, cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		logger.Info("using redis account store")
		return store, nil

	default:
		// os.MkdirAll is `mkdir -p`; a bare filename has Dir ".".
		dir := filepath.Dir(cfg.Store.SQLitePath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
		db, err := sqliteRepo.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		logger.Info("using sqlite account store", slog.String("path", cfg.Store.SQLitePath))
		return db, nil
	}
}

// newClassifier returns the remote classifier, or nil (allow everything)
// when none is configured.
func newClassifier(cfg *config.Config, logger *slog.Logger) classifier.Classifier {
	if cfg.Classifier.URL == "" {
		logger.Warn("classifier.url not set, security veto always passes")
		return nil
	}
	return classifier.NewHTTPClient(context.Background(), classifier.HTTPConfig{
		URL:          cfg.Classifier.URL,
		ClientID:     cfg.Classifier.ClientID,
		ClientSecret: cfg.Classifier.ClientSecret,
		TokenURL:     cfg.Classifier.TokenURL,
		Scopes:       cfg.Classifier.Scopes,
	})
}

type routeDeps struct {
	accounts   *handler.AccountHandler
	moderators *handler.ModeratorHandler
	admin      *handler.AdminHandler
	health     *handler.HealthHandler
	tokens     *auth.TokenService
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz
//	POST /api/signup                                       (rate limited)
//	POST /api/login                                        (rate limited)
//	POST /api/login/evaluate                               (rate limited)
//	POST /api/unban-requests                               (rate limited)
//	POST /api/reactivation-requests                        (rate limited)
//	POST /api/moderator-requests                           (rate limited)
//	POST /api/admin/token                                  (rate limited)
//	GET  /api/admin/unban-requests                         (admin JWT)
//	GET  /api/admin/reactivation-requests                  (admin JWT)
//	POST /api/admin/accounts/{username}/unban-review       (admin JWT)
//	POST /api/admin/accounts/{username}/reactivation-review (admin JWT)
//	POST /api/admin/accounts/{username}/status             (admin JWT)
//	POST /api/admin/accounts/{username}/ban                (admin JWT)
//	GET  /api/admin/accounts/{username}/events             (admin JWT)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print it; RealIP runs before the
// rate limiter so limits apply per client rather than per proxy.
func (s *Server) setupRoutes(d routeDeps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", d.health.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Public POSTs share a per-IP budget. 0 disables limiting.
		r.Group(func(r chi.Router) {
			if n := s.config.RateLimit.LoginPerMinute; n > 0 {
				r.Use(httprate.LimitByIP(n, time.Minute))
			}
			r.Post("/signup", d.accounts.HandleSignup)
			r.Post("/login", d.accounts.HandleLogin)
			r.Post("/login/evaluate", d.accounts.HandleEvaluate)
			r.Post("/unban-requests", d.accounts.HandleUnbanRequest)
			r.Post("/reactivation-requests", d.accounts.HandleReactivationRequest)
			r.Post("/moderator-requests", d.moderators.HandleCreate)
			r.Post("/admin/token", d.admin.HandleToken)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin(d.tokens))
			r.Get("/unban-requests", d.admin.HandleListUnbanRequests)
			r.Get("/reactivation-requests", d.admin.HandleListReactivationRequests)
			r.Route("/accounts/{username}", func(r chi.Router) {
				r.Post("/unban-review", d.admin.HandleUnbanReview)
				r.Post("/reactivation-review", d.admin.HandleReactivationReview)
				r.Post("/status", d.admin.HandleSetStatus)
				r.Post("/ban", d.admin.HandleBan)
				r.Get("/events", d.admin.HandleEvents)
			})
		})
	})
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and the sweeper until SIGINT/SIGTERM, then
// shuts both down.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections, wait up to 30s for in-flight requests.
//  2. Stop the sweeper (cancels a sweep in progress).
//  3. Close the backend.
func (s *Server) Start() error {
	defer s.backend.Close()

	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.sweeper.Start()
	defer s.sweeper.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("store", s.config.Store.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
