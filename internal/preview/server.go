// Package preview serves an exercise bundle over loopback HTTP so the
// browser build can load its wasm engine.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/listenex/internal/bundle"
)

// Default listen settings.
const (
	DefaultBind = "127.0.0.1"
	DefaultPort = 7433
	DefaultRate = 50
)

// ErrNoBundle is returned when the server is created without a bundle.
var ErrNoBundle = errors.New("preview: no bundle to serve")

// Config holds configuration for creating a new server
type Config struct {
	Bundle        *bundle.Bundle
	Bind          string
	Port          int
	RatePerSecond int // requests per second per client, 0 for DefaultRate
}

// Server serves one bundle.
type Server struct {
	cfg     Config
	server  *http.Server
	router  *http.ServeMux
	limiter ratelimit.RateLimiter
}

// NewServer creates a preview server for cfg.Bundle.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Bundle == nil || cfg.Bundle.Document == nil || cfg.Bundle.FS == nil {
		return nil, ErrNoBundle
	}
	if cfg.Bind == "" {
		cfg.Bind = DefaultBind
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRate
	}

	s := &Server{
		cfg:    cfg,
		router: http.NewServeMux(),
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:     cfg.RatePerSecond,
			Burst:    cfg.RatePerSecond * 2,
			Interval: time.Second,
		}),
	}
	s.setupRoutes()

	handler := recoveryMiddleware(correlationIDMiddleware(loggingMiddleware(rateLimitMiddleware(s.limiter, s.router))))
	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Bind, fmt.Sprint(cfg.Port)),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/exercise", s.handleExercise)
	s.router.Handle("GET /", s.assetHandler())
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.server.Addr }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.Info("preview server starting", "addr", ln.Addr().String(), "title", s.cfg.Bundle.Document.Title)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("preview server shutting down")
	err := s.server.Shutdown(ctx)
	if cerr := s.limiter.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"title":  s.cfg.Bundle.Document.Title,
	})
}

func (s *Server) handleExercise(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.cfg.Bundle.Document)
}

// assetHandler serves the bundle FS. Known asset types get their content
// type set up front so that wasm is always served as application/wasm.
func (s *Server) assetHandler() http.Handler {
	files := http.FileServerFS(s.cfg.Bundle.FS)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ext := path.Ext(r.URL.Path); ext != "" {
			w.Header().Set("Content-Type", bundle.GuessMime(r.URL.Path))
		}
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
