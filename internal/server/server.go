// Package server exposes the composer over HTTP.
//
// Routes:
//
//	POST /v1/compose   multipart form, returns application/pdf
//	GET  /healthz      liveness probe
//
// Errors are JSON: {"error":{"code":"...","message":"..."},"requestId":"..."}.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	pdfcompose "github.com/alnah/go-pdfcompose"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultMaxUploadBytes = 32 << 20 // 32 MiB per request
	DefaultRequestTimeout = 2 * time.Minute
	DefaultShutdownGrace  = 10 * time.Second

	// multipartMemory is kept in memory before spilling parts to disk.
	multipartMemory = 8 << 20
)

// Composer runs one composition. *pdfcompose.Composer satisfies it, and
// PoolComposer adapts a ComposerPool.
type Composer interface {
	Compose(ctx context.Context, req pdfcompose.Request) (*pdfcompose.Result, error)
}

// Compile-time interface checks.
var (
	_ Composer = (*pdfcompose.Composer)(nil)
	_ Composer = (*PoolComposer)(nil)
)

// PoolComposer borrows a composer from a pool for each request.
type PoolComposer struct {
	Pool *pdfcompose.ComposerPool
}

// Compose acquires a composer, runs the request, and releases it.
func (p *PoolComposer) Compose(ctx context.Context, req pdfcompose.Request) (*pdfcompose.Result, error) {
	c, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Pool.Release(c)
	return c.Compose(ctx, req)
}

// Config holds server settings. Zero values mean defaults.
type Config struct {
	Addr           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration

	// Defaults applied to requests that do not set them.
	SignatureLabel string
	Watermark      *pdfcompose.Watermark
	Margins        *pdfcompose.Margins

	Logger *log.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg      Config
	composer Composer
	logger   *log.Logger
	router   chi.Router
	newID    func() string
}

// New creates a server around composer.
func New(composer Composer, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Server{
		cfg:      cfg,
		composer: composer,
		logger:   logger,
		newID:    newRequestID,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(api chi.Router) {
		api.With(s.bodyLimitMiddleware).Post("/compose", s.handleCompose)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("[server] listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	s.logger.Printf("[server] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
