package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sundayezeilo/shortlinks/internal/account"
	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/httpx"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
	"github.com/sundayezeilo/shortlinks/internal/shortener"
)

// Handlers groups the HTTP handlers the server routes to.
type Handlers struct {
	Links    *shortener.Handler
	Accounts *account.Handler
	// Metrics is optional. When nil, /metrics is not served and routes are
	// not instrumented.
	Metrics *metrics.Recorder
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	handlers Handlers
	server   *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, handlers Handlers) *Server {
	return &Server{
		config:   cfg,
		logger:   logger,
		handlers: handlers,
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	// Listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("context cancelled, stopping server")
		return s.stop()

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.stop()
	}
}

func (s *Server) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.server.Shutdown(ctx); err != nil {
		// Force close if graceful shutdown fails
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	links := s.handlers.Links
	accounts := s.handlers.Accounts

	// Health check endpoint
	mux.HandleFunc("GET /x/health", s.healthCheckHandler)

	if s.handlers.Metrics != nil {
		mux.Handle("GET /metrics", s.handlers.Metrics.Handler())
	}

	s.handle(mux, "POST /api/users", accounts.Register)
	s.handle(mux, "GET /api/users/{id}", accounts.Get)

	s.handle(mux, "POST /api/links", links.CreateLink)
	s.handle(mux, "GET /api/links", links.ListPublic)
	s.handle(mux, "GET /api/links/mine", links.ListMine)
	s.handle(mux, "GET /api/links/top", links.TopLinks)
	s.handle(mux, "GET /api/links/most-liked", links.MostLiked)
	s.handle(mux, "GET /api/links/{slug}", links.GetLink)
	s.handle(mux, "PATCH /api/links/{slug}", links.UpdateLink)
	s.handle(mux, "DELETE /api/links/{slug}", links.DeleteLink)
	s.handle(mux, "PUT /api/links/{slug}/like", links.LikeLink)
	s.handle(mux, "DELETE /api/links/{slug}/like", links.UnlikeLink)

	s.handle(mux, "GET /{slug}", links.ResolveLink)

	return mux
}

// handle registers fn under pattern, instrumented when metrics are enabled.
func (s *Server) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	var h http.Handler = fn
	if s.handlers.Metrics != nil {
		h = s.handlers.Metrics.InstrumentHandler(pattern, h)
	}
	mux.Handle(pattern, h)
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	wrapped := httpx.Chain(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,          // Add request ID
		httpx.Logger(s.logger),   // Log requests
		httpx.CORS(nil),          // CORS headers (allow all in dev)
		httpx.UserID,             // Caller identity from X-User-ID
	)(handler)

	if s.config.Observability.Enabled {
		wrapped = otelhttp.NewHandler(wrapped, "http.server")
	}
	return wrapped
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
	})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
