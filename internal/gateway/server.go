package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edgracilla/chikka-gateway/internal/infrastructure/config"
)

// gracefulShutdownTimeout is how long Close waits for in-flight
// requests before forcing connections closed.
const gracefulShutdownTimeout = 10 * time.Second

// Server is the inbound webhook HTTP server the aggregator posts
// device messages to.
type Server struct {
	cfg        *config.Config
	admission  *Admission
	dispatcher *Dispatcher
	logger     Logger
	version    string

	server *http.Server
}

// ServerDeps bundles the HTTP server's dependencies.
type ServerDeps struct {
	Config     *config.Config
	Admission  *Admission
	Dispatcher *Dispatcher
	Logger     Logger
	Version    string
}

// NewServer creates the webhook server.
func NewServer(deps ServerDeps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("%w: config", ErrMissingDependency)
	case deps.Admission == nil:
		return nil, fmt.Errorf("%w: admission", ErrMissingDependency)
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingDependency)
	case deps.Logger == nil:
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}

	return &Server{
		cfg:        deps.Config,
		admission:  deps.Admission,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		version:    deps.Version,
	}, nil
}

// buildRouter assembles the chi router with the middleware chain and
// the webhook route.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Post(s.cfg.Server.Path, s.handleWebhook)
	r.Get("/health", s.handleHealth)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	return r
}

// Start launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("webhook server starting", "address", s.server.Addr, "path", s.cfg.Server.Path)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("webhook server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the webhook server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("webhook server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down webhook server: %w", err)
	}
	return nil
}

// HealthCheck verifies the webhook server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("webhook health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return ErrNotStarted
	}
	return nil
}

// handleHealth reports liveness for load balancers and monitors.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck // Best effort health body
		"status":  "ok",
		"version": s.version,
	})
}

// handleNotFound answers unknown paths in the plain-text dialect the
// aggregator's operators see in delivery logs.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, fmt.Sprintf(responseNotFound, r.URL.Path))
}
