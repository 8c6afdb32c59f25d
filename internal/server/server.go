// Package server hosts the HTTP API: report generation, DSM-5 retrieval,
// the assistant and its supporting stores.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/clinrag/internal/assistant"
	"github.com/ziadkadry99/clinrag/internal/db"
	"github.com/ziadkadry99/clinrag/internal/logger"
	"github.com/ziadkadry99/clinrag/internal/memory"
	"github.com/ziadkadry99/clinrag/internal/report"
	"github.com/ziadkadry99/clinrag/internal/sessions"
	"github.com/ziadkadry99/clinrag/internal/suggestions"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)

	// SweepInterval is how often expired assistant replies are cleared.
	// Zero disables the sweep.
	SweepInterval time.Duration
}

// Deps are the components the routes delegate to. Nil members leave their
// routes unmounted, except Retriever, whose route answers 503.
type Deps struct {
	DB        *db.DB
	Agent     *report.Agent
	Retriever report.Retriever
	Assistant *assistant.Service
	Tools     assistant.ToolExecutor
	Memory    memory.Store
	Log       *logger.Logger
}

// Server is the clinrag HTTP API.
type Server struct {
	cfg        Config
	deps       Deps
	log        *logger.Logger
	router     chi.Router
	httpServer *http.Server
}

// New builds the server and its router.
func New(cfg Config, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{cfg: cfg, deps: deps, log: log.With("component", "server")}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// The websocket stream must not sit behind a request timeout.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))
		if s.deps.Agent != nil {
			report.RegisterRoutes(r, s.deps.Agent, s.deps.Retriever)
		}
		if s.deps.DB != nil {
			sessions.RegisterRoutes(r, sessions.NewStore(s.deps.DB))
			suggestions.RegisterRoutes(r, suggestions.NewStore(s.deps.DB))
		}
	})

	if s.deps.Assistant != nil {
		api := &assistant.API{
			Service: s.deps.Assistant,
			Tools:   s.deps.Tools,
			Memory:  s.deps.Memory,
			Log:     s.log,
		}
		if s.deps.DB != nil {
			api.Sessions = sessions.NewStore(s.deps.DB)
		}
		assistant.RegisterRoutes(r, api)
	}

	return r
}

// Router returns the chi router.
func (s *Server) Router() chi.Router { return s.router }

// Start listens on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if s.deps.Assistant != nil && s.cfg.SweepInterval > 0 {
		go s.sweep(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("clinrag server listening", "addr", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// sweep clears expired assistant replies until ctx ends.
func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.deps.Assistant.ClearExpired(ctx); n > 0 {
				s.log.Debug("cleared expired replies", "count", n)
			}
		}
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
