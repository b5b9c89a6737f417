// Package api provides the HTTP transport for the points and bank bots.
// The chat platform adapter posts command invocations and view navigation
// events here and relays the JSON replies back to the user.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moose-rewards/moose/internal/app/dispatch"
	"github.com/moose-rewards/moose/internal/infra/observability"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TicketChecker decides whether a reaction opens a support ticket.
type TicketChecker interface {
	IsTicketTrigger(ctx context.Context, messageID, emoji string) (bool, error)
}

// Server is the moose HTTP API server.
type Server struct {
	points         *dispatch.Dispatcher
	bank           *dispatch.Dispatcher
	tickets        TicketChecker
	db             Pinger
	tracer         *observability.Tracer
	logger         *slog.Logger
	metricsEnabled bool
	requestTimeout time.Duration
}

// NewServer creates a new API server.
func NewServer(points, bank *dispatch.Dispatcher, tickets TicketChecker, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		points:         points,
		bank:           bank,
		tickets:        tickets,
		db:             db,
		logger:         logger.With("component", "api"),
		requestTimeout: 30 * time.Second,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetTracer exposes recent command spans at /api/spans.
func (s *Server) SetTracer(t *observability.Tracer) { s.tracer = t }

// SetRequestTimeout bounds every request.
func (s *Server) SetRequestTimeout(d time.Duration) {
	if d > 0 {
		s.requestTimeout = d
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(requestIDContext)

	r.Get("/health", s.handleHealth)

	if s.points != nil {
		r.Route("/points", func(r chi.Router) {
			r.Post("/interactions", s.handleInteraction(s.points))
			r.Post("/reactions", s.handleReaction)
		})
	}
	if s.bank != nil {
		r.Route("/bank", func(r chi.Router) {
			r.Post("/interactions", s.handleInteraction(s.bank))
			r.Post("/views/{id}/{direction}", s.handleNavigate(s.bank))
		})
	}

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if s.tracer != nil {
		r.Get("/api/spans", s.handleSpans)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": s.tracer.SpanCount(),
		"spans": s.tracer.Spans(limit),
	})
}

// requestIDContext copies chi's request ID into the span context.
func requestIDContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// ─── JSON helpers ───────────────────────────────────────────────────────────

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
