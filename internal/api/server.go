// Package api exposes the cycle trigger and read endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ACS-web2026/aste-backend/internal/config"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(cfg config.ServerConfig, h *Handlers, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(cfg.AllowedOrigins, h, logger),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

func NewRouter(allowedOrigins []string, h *Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", traceHeader},
		ExposedHeaders: []string{traceHeader},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape-all", h.ScrapeAll)
		r.Get("/health", h.Health)
		r.Get("/stats", h.Stats)
		r.Get("/listings", h.Listings)
		r.Get("/listings/{id}/history", h.ListingHistory)
	})

	return r
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting REST server", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping REST server")
	return s.httpServer.Shutdown(ctx)
}
