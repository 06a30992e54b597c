// Package api serves scans, raw-request analysis and stored reports over
// HTTP.
//
// Routes:
//
//	POST /api/scan/url             scan a target URL
//	POST /api/scan/raw             IDOR analysis of one explicit request
//	GET  /api/report/{id}/{format} download a stored report (json or pdf)
//	GET  /health                   liveness
//	GET  /metrics                  Prometheus metrics, when configured
//	GET  /                         banner
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/duration"
	"github.com/waftester/vulnprobe/pkg/engine"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Config configures the API server.
type Config struct {
	Engine *engine.Engine

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	engine  *engine.Engine
	metrics http.Handler
	logger  *slog.Logger
	handler http.Handler
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	s := &Server{
		engine:  cfg.Engine,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan/url", s.handleScanURL)
	mux.HandleFunc("POST /api/scan/raw", s.handleScanRaw)
	mux.HandleFunc("GET /api/report/{id}/{format}", s.handleReport)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	s.handler = s.recoveryMiddleware(s.logMiddleware(securityHeaders(mux)))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: duration.ReadHeader,
		IdleTimeout:       duration.ServerIdle,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("api listening", slog.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), duration.Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": defaults.ToolName + " security scanner is running",
		"version": defaults.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": defaults.ToolName})
}

// recoveryMiddleware turns handler panics into a 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic in HTTP handler",
					slog.Any("panic", err),
					slog.String("stack", string(debug.Stack())))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}
