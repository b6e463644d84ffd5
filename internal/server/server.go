// Package server exposes the notification processor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
	"github.com/Aman-CERP/termsearch/internal/notify"
	"github.com/Aman-CERP/termsearch/internal/store"
	"github.com/Aman-CERP/termsearch/internal/telemetry"
	"github.com/Aman-CERP/termsearch/pkg/searcher"
)

// Processor applies one notification. *notify.Processor implements it.
type Processor interface {
	Process(ctx context.Context, n *notify.Notification) error
}

// Searcher looks up indexed nodes. *searcher.NodeSearcher implements it.
type Searcher interface {
	Search(ctx context.Context, q searcher.Query) (*searcher.Result, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes caps a /notify request body. Zero means 16MB.
	MaxBodyBytes int64
}

// Deps are the collaborators behind the routes. Processor is required;
// the others switch their routes off when nil.
type Deps struct {
	Processor  Processor
	Searcher   Searcher
	History    *notify.History
	IndexStats func() *store.IndexStats
	Breaker    *termerrors.CircuitBreaker
	Metrics    *telemetry.Metrics
}

const defaultMaxBodyBytes = 16 << 20

// Server is the termsearch HTTP endpoint.
type Server struct {
	opts    Options
	deps    Deps
	started time.Time
	handler http.Handler
}

// New creates a Server.
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Processor == nil {
		return nil, errors.New("server: processor is required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{opts: opts, deps: deps, started: time.Now()}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	if s.deps.Metrics != nil {
		r.Use(metricsMiddleware(s.deps.Metrics))
	}
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	r.Post("/notify", s.handleNotify)
	r.Put("/notify", s.handleNotify)

	if s.deps.Searcher != nil {
		r.Get("/graphs/{graphID}/nodes", s.graphNodes)
	}
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	return r
}

// Run serves on opts.Addr until ctx is cancelled, then shuts down
// gracefully, letting in-flight notifications finish.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http_server_started", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("http_server_stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("http_server_stopped")
	return nil
}
