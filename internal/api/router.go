package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"resumecron/internal/core"
)

// Automation is the trigger surface the API drives.
type Automation interface {
	RunOnce(ctx context.Context) (*core.Summary, error)
	Running() bool
	NextRun() time.Time
	Schedule() string
}

// History is the read side of the run store.
type History interface {
	ListRuns(ctx context.Context, limit int) ([]*core.Summary, error)
	GetRun(ctx context.Context, id string) (*core.Summary, error)
}

// Server holds the HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	automation Automation
	history    History
	logger     *slog.Logger
	location   *time.Location
	authToken  string

	// runCtx parents manual runs started in the background.
	runCtx context.Context
}

// NewServer constructs the HTTP API server. Background runs started through
// the API are cancelled with runCtx.
func NewServer(runCtx context.Context, addr, authToken string, automation Automation, history History, logger *slog.Logger, location *time.Location) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	if location == nil {
		location = time.Local
	}
	s := &Server{
		router:     router,
		automation: automation,
		history:    history,
		logger:     logger,
		location:   location,
		authToken:  authToken,
		runCtx:     runCtx,
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.router.Get("/", s.handleStatus)
	s.router.Get("/metrics", s.handleMetrics)

	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Post("/cron/preview", s.handleCronPreview)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleRunNow)
			r.Get("/{runID}", s.handleGetRun)
		})
	})
}
