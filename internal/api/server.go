// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihandler "github.com/newthinker/tradeboard/internal/api/handler/api"
	"github.com/newthinker/tradeboard/internal/api/handler/web"
	"github.com/newthinker/tradeboard/internal/api/middleware"
	"github.com/newthinker/tradeboard/internal/app"
	"github.com/newthinker/tradeboard/internal/metrics"
)

// Server represents the HTTP server for tradeboard
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	APIKey       string
	TemplatesDir string
	MetricsPath  string
}

// Dependencies are the services the routes are served from. Metrics is optional.
type Dependencies struct {
	App     *app.App
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
		mux:    mux,
		deps:   deps,
	}

	// Set up routes
	if err := s.setupRoutes(cfg); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	s.httpServer.Handler = metrics.LoggingMiddleware(logger)(handler)

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) error {
	a := s.deps.App
	sessions := middleware.Sessions(a)
	writes := middleware.WriteKeyAuth(cfg.APIKey)
	guard := func(h http.HandlerFunc) http.Handler { return writes(sessions(h)) }

	// Web UI routes
	webHandler, err := web.NewHandler(cfg.TemplatesDir, a)
	if err != nil {
		return fmt.Errorf("creating web handler: %w", err)
	}
	s.mux.Handle("GET /{$}", sessions(http.HandlerFunc(webHandler.Dashboard)))

	// Dashboard API routes
	dash := apihandler.NewDashboardHandler(a)
	s.mux.Handle("GET /api/view", sessions(http.HandlerFunc(dash.View)))
	s.mux.Handle("POST /api/filters", guard(dash.Filters))
	s.mux.Handle("POST /api/selection", guard(dash.Selection))
	s.mux.Handle("POST /api/refresh", guard(dash.Refresh))
	s.mux.Handle("POST /api/generate", guard(dash.Generate))
	s.mux.Handle("GET /api/preferences", sessions(http.HandlerFunc(dash.GetPreferences)))
	s.mux.Handle("PUT /api/preferences", guard(dash.PutPreferences))

	var live apihandler.LiveObserver
	if s.deps.Metrics != nil {
		live = s.deps.Metrics
	}
	s.mux.Handle("GET /api/live", sessions(http.HandlerFunc(apihandler.NewLiveHandler(live, s.logger).Serve)))

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if s.deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}

	return nil
}

// Handler returns the server's root handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","backend_enabled":%t}`, s.deps.App.BackendEnabled())
}
