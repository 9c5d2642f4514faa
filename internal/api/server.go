package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
	"github.com/JakeFAU/pm-internship-scraper/internal/logging"
	"github.com/JakeFAU/pm-internship-scraper/internal/metrics"
)

const (
	serviceStatus  = "PM Internship Scraper API"
	serviceVersion = "1.0"
)

var endpoints = map[string]string{
	"/scrape":  "Scrape and save internships",
	"/healthz": "Liveness probe",
	"/readyz":  "Reports whether the listing store is open",
	"/metrics": "Prometheus metrics",
}

// Scraper runs one scrape.
type Scraper interface {
	Run(ctx context.Context) (internship.Result, error)
}

// Readiness reports whether the listing store has been opened.
type Readiness interface {
	Opened() bool
}

// Options configures the Server.
type Options struct {
	// ProjectID is reported by the index route.
	ProjectID      string
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the scrape pipeline.
type Server struct {
	router  chi.Router
	scraper Scraper
	ready   Readiness
	opts    Options
	logger  *zap.Logger
}

type indexResponse struct {
	Project   string            `json:"project"`
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(scraper Scraper, ready Readiness, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	s := &Server{
		scraper: scraper,
		ready:   ready,
		opts:    opts,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/", s.index)
	r.Get("/scrape", s.scrape)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) index(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Project:   s.opts.ProjectID,
		Status:    serviceStatus,
		Version:   serviceVersion,
		Endpoints: endpoints,
	}, s.logger)
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", RequestID(r.Context())))
	result, err := s.runScrape(r.Context())
	if err != nil {
		logger.Error("scrape failed", logging.ErrorFields(err)...)
		writeJSON(w, http.StatusOK, scrapeResponse{Success: false, Error: err.Error()}, s.logger)
		return
	}
	count := result.Count
	logger.Info("scrape succeeded", zap.Int("count", count), zap.Strings("document_ids", result.DocumentIDs))
	writeJSON(w, http.StatusOK, scrapeResponse{Success: true, Count: &count}, s.logger)
}

// runScrape converts a panic in the pipeline into an error so /scrape keeps its envelope.
func (s *Server) runScrape(ctx context.Context) (result internship.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("scrape panicked",
				zap.String("request_id", RequestID(ctx)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			result, err = internship.Result{}, fmt.Errorf("scrape panicked: %v", rec)
		}
	}()
	return s.scraper.Run(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// readyz reports 200 in both cases: an unopened store is opened by the next scrape.
func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	opened := s.ready != nil && s.ready.Opened()
	status := "ready"
	if !opened {
		status = "store not yet opened"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "store_open": opened}, s.logger)
}

type requestIDKey struct{}

// RequestID returns the request ID assigned by the middleware, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", RequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", RequestID(r.Context())),
						zap.Any("panic", rec),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// timeoutMiddleware bounds the request context. Handlers observe the deadline through
// their stage errors, so /scrape keeps its JSON envelope when the budget runs out.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
