package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lucasnoah/reprofactory/internal/db"
	"github.com/lucasnoah/reprofactory/internal/evaluate"
)

// Evaluator produces a fresh report on every call.
type Evaluator interface {
	Evaluate(ctx context.Context) (*evaluate.Report, error)
}

// Server is the read-only JSON API server. Every request re-evaluates the
// repository; nothing is cached between requests.
type Server struct {
	eval   Evaluator
	db     *db.DB
	port   int
	logger *slog.Logger

	// streamInterval is how often /api/stream re-evaluates.
	streamInterval time.Duration
}

// NewServer creates a Server. database may be nil when no history is kept.
func NewServer(eval Evaluator, database *db.DB, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		eval:           eval,
		db:             database,
		port:           port,
		logger:         logger,
		streamInterval: 2 * time.Second,
	}
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/diff", s.handleDiff)
	mux.HandleFunc("/api/states", s.handleStates)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/issues/", s.routeIssue)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.routeHistory)
	return s.logRequests(mux)
}

// Start listens on the configured port until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("repro API listening", "url", fmt.Sprintf("http://localhost:%d", s.port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) routeIssue(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/issues/"), "/")
	if rest == "" || strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	s.handleIssue(w, r, rest)
}

func (s *Server) routeHistory(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/history/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "flaky":
		s.handleFlaky(w, r)
	case len(parts) == 1 && parts[0] == "trend":
		s.handleTrend(w, r)
	case len(parts) == 2 && parts[0] == "issues":
		s.handleIssueHistory(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "runs":
		s.handleRun(w, r, parts[1])
	default:
		http.NotFound(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
