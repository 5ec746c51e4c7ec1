package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evanmtz/streampost/internal/accounts"
	"github.com/evanmtz/streampost/internal/login"
	"github.com/evanmtz/streampost/internal/pool"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server represents the HTTP API server
type Server struct {
	router *chi.Mux
	server *http.Server
}

// NewServer creates a new HTTP server
func NewServer(port string, broker *login.Broker, store *login.Store, ledger *accounts.Ledger, repo accounts.Repository, loadBalancer *pool.LoadBalancer) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RequestID)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	handlers := NewHandlers(broker, ledger, repo)

	// Login session routes
	router.Route("/login-sessions", func(r chi.Router) {
		r.Post("/", handlers.InitiateLogin)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.GetLoginSession)
			r.Delete("/", handlers.CancelLoginSession)
		})
	})

	// Account routes
	router.Route("/accounts", func(r chi.Router) {
		r.Post("/", handlers.CreateAccount)
		r.Get("/", handlers.ListAccounts)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.GetAccount)
			r.Post("/cookies", handlers.UpdateAccountCookies)
			r.Get("/health", handlers.GetAccountHealth)
			r.Post("/outcomes", handlers.RecordAccountOutcome)
		})
	})

	// Metrics endpoint: pool state plus live session count
	router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pool":           loadBalancer.GetMetrics(),
			"login_sessions": store.Count(),
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		router: router,
		server: server,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting HTTP server", "addr", s.server.Addr)

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	slog.Info("HTTP server stopped")
	return nil
}
