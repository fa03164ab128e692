package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"updatehook/internal/config"
	"updatehook/internal/update"
	"updatehook/pkg/cmdutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// RequestTimeout is enforced by the timeout middleware. It must stay
	// below HTTPWriteTimeout or the connection is cut before it fires.
	RequestTimeout = 8 * time.Second

	// ShutdownTimeout bounds the wait for open connections and running
	// updates once a shutdown signal arrives.
	ShutdownTimeout = 30 * time.Second
)

// Updater starts update runs. Dispatch must not block on the run.
type Updater interface {
	Dispatch(t update.Trigger)
	Wait(ctx context.Context) error
}

// Server represents the webhook listener.
type Server struct {
	Config  *config.Config
	Updater Updater
	Logger  *slog.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, updater Updater, logger *slog.Logger) *Server {
	return &Server{
		Config:  cfg,
		Updater: updater,
		Logger:  logger,
	}
}

// Router creates and configures the HTTP router. Every path and every
// method reaches HandleWebhook.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Debug("http_request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	if s.Config.RateLimit > 0 {
		r.Use(NewRateLimitMiddleware(s.Config.RateLimit, s.Logger))
	}

	r.HandleFunc("/*", s.HandleWebhook)
	r.MethodNotAllowed(s.HandleWebhook)

	return r
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully and waits for running updates.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	port := s.Config.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	s.Logger.Info(fmt.Sprintf("Webhook listener started on port %d", port), "addr", ln.Addr().String())
	if command, err := s.Config.CommandLine(); err == nil {
		s.Logger.Info("Update script: " + cmdutil.FormatCommand(command))
	}
	s.Logger.Info("Log file: " + s.Config.LogFile)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.Logger.Info("Webhook listener shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.Logger.Warn("HTTP shutdown incomplete", "error", err)
	}

	if err := s.Updater.Wait(shutdownCtx); err != nil {
		s.Logger.Warn("Update still running at shutdown", "error", err)
	}

	return nil
}
