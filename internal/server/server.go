// Package server exposes the CSV analysis service over HTTP.
package server

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/KaramelBytes/csvglance/internal/analysis"
	"github.com/KaramelBytes/csvglance/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed web/index.html
var indexHTML []byte

// Config holds the service settings.
type Config struct {
	Addr             string
	PreviewRows      int
	NumericThreshold float64
	// MaxUploadBytes caps the request body; 0 means 16 MiB.
	MaxUploadBytes int64
}

// Server answers POST /upload with a summary and preview of the file.
type Server struct {
	cfg    Config
	log    *logging.Logger
	router *chi.Mux
}

func New(cfg Config, logger *logging.Logger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 16 << 20
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{cfg: cfg, log: logger, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(requestID)
	if s.log.Level() >= logging.LevelInfo {
		s.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  log.New(s.log.Writer(), "", log.LstdFlags),
			NoColor: true,
		}))
	}
	s.router.Use(s.recoverJSON)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "404 Not Found: "+r.URL.Path, "NotFound")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "405 Method Not Allowed: "+r.Method, "MethodNotAllowed")
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/upload", s.handleUpload)
	s.router.Post("/chart", s.handleChart)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	s.log.Info("listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) payloadOptions() analysis.PayloadOptions {
	return analysis.PayloadOptions{PreviewRows: s.cfg.PreviewRows, NumericThreshold: s.cfg.NumericThreshold}
}
