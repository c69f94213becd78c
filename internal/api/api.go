// Package api serves the optimizer over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-shah256/resume-optimizer/internal/optimizer"
	"github.com/p-shah256/resume-optimizer/internal/storage"
	"github.com/p-shah256/resume-optimizer/pkg/types"
)

const exposedHeaders = "Content-Disposition, X-Request-ID, X-Match-Score-Original, X-Match-Score-Optimized"

const shutdownTimeout = 10 * time.Second

// Optimizer is the pipeline behind the handlers.
type Optimizer interface {
	Optimize(ctx context.Context, up optimizer.Upload) (*types.OptimizeResult, error)
	Format(ctx context.Context, filename string, data []byte) ([]byte, error)
	Extract(ctx context.Context, filename string, data []byte) (*types.SectionMap, error)
	Match(ctx context.Context, filename string, data []byte, jobDescription string) (*types.MatchReport, error)
}

type Server struct {
	port      int
	svc       Optimizer
	history   storage.HistoryReader
	maxUpload int64
	rps       float64
	burst     int
}

type Option func(*Server)

// WithHistory enables GET /api/history.
func WithHistory(h storage.HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) { s.rps, s.burst = rps, burst }
}

func NewServer(port int, svc Optimizer, opts ...Option) *Server {
	s := &Server{
		port:      port,
		svc:       svc,
		maxUpload: optimizer.DefaultMaxUpload,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	limit := RateLimit(s.rps, s.burst)
	route := func(h http.HandlerFunc, methods ...string) http.HandlerFunc {
		return Chain(h, RequestID, Recover, Logger, CORS, limit, MethodChecker(methods...))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/optimize", route(s.handleOptimize, http.MethodPost))
	mux.HandleFunc("/api/format", route(s.handleFormat, http.MethodPost))
	mux.HandleFunc("/api/extract", route(s.handleExtract, http.MethodPost))
	mux.HandleFunc("/api/match", route(s.handleMatch, http.MethodPost))
	mux.HandleFunc("/api/history", route(s.handleHistory, http.MethodGet))
	mux.HandleFunc("/health", Chain(s.handleHealth, Recover, MethodChecker(http.MethodGet)))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "port", s.port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
