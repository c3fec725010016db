// Package api exposes the HTTP interface for the ETL service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adiwardana/idx-shareholder-etl/internal/etl"
	"github.com/adiwardana/idx-shareholder-etl/internal/logging"
)

// Pipeline triggers a run for one business date.
type Pipeline interface {
	Run(ctx context.Context, date etl.BusinessDate, phase etl.Phase) etl.RunOutcome
}

// Server wires HTTP handlers to the pipeline.
type Server struct {
	router   chi.Router
	pipeline Pipeline
	clock    etl.Clock
}

// NewServer constructs a Server with middleware and routes. The clock
// supplies the exchange-local reference time used when a trigger request
// omits an explicit date.
func NewServer(pipeline Pipeline, clock etl.Clock) *Server {
	s := &Server{
		pipeline: pipeline,
		clock:    clock,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(recoverMiddleware)
	r.Use(timeoutMiddleware(5 * time.Minute))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/run", s.triggerRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type runRequest struct {
	Date string `json:"date"`
	// Scheduled targets the previous trading session instead of the
	// current one, matching the nightly cron's view of "today's" report.
	Scheduled bool   `json:"scheduled"`
	Phase     string `json:"phase"`
}

type runResponse struct {
	RunID     string `json:"run_id"`
	Date      string `json:"date"`
	Outcome   string `json:"outcome"`
	Rows      int    `json:"rows"`
	Partition string `json:"partition,omitempty"`
	Stage     string `json:"stage,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// triggerRun runs the pipeline synchronously for the requested date, or
// for the latest scheduled business date when the body omits one. A day
// with no disclosure is a normal outcome and reports 200; only an actual
// pipeline failure reports 500.
func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	if req.Date != "" && req.Scheduled {
		writeError(w, http.StatusBadRequest, "date and scheduled are mutually exclusive")
		return
	}
	date := etl.ResolveBusinessDate(s.clock.Now())
	switch {
	case req.Date != "":
		parsed, err := etl.ParseBusinessDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", req.Date))
			return
		}
		date = parsed
	case req.Scheduled:
		date = etl.PreviousSession(s.clock.Now())
	}

	phase := etl.PhaseFull
	if req.Phase != "" {
		parsed, err := etl.ParsePhase(req.Phase)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		phase = parsed
	}

	outcome := s.pipeline.Run(r.Context(), date, phase)
	status := http.StatusOK
	if outcome.Kind == etl.OutcomeFailed {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, runResponse{
		RunID:     outcome.RunID,
		Date:      outcome.Date.String(),
		Outcome:   string(outcome.Kind),
		Rows:      outcome.Rows,
		Partition: outcome.Partition,
		Stage:     string(outcome.Stage),
		ErrorKind: outcome.ErrKind,
		Error:     outcome.Err,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		logging.L.Info("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.L.Error("Panic recovered in handler", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
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

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.L.Error("Failed to write JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
