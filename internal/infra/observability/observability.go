// Package observability holds the Prometheus metrics of the bot pair and a
// small in-memory span recorder for recent command invocations.
//
// Metrics are package-level promauto collectors registered on the default
// registry and served by the API at /metrics.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Command Spans
// ═══════════════════════════════════════════════════════════════════════════

// Outcome classifies how an invocation ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected" // domain error shown to the user
	OutcomeFailed   Outcome = "failed"   // unexpected error
)

// Span is one recorded command invocation.
type Span struct {
	ID        string            `json:"id"`
	RequestID string            `json:"request_id,omitempty"`
	Variant   string            `json:"variant"`
	Command   string            `json:"command"`
	Actor     string            `json:"actor"`
	StartTime time.Time         `json:"start_time"`
	Duration  time.Duration     `json:"duration"`
	Outcome   Outcome           `json:"outcome"`
	Error     string            `json:"error,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// TracerConfig configures the span recorder.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int
}

// DefaultTracerConfig keeps the last 1000 invocations.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{Enabled: true, MaxSpans: 1000}
}

// Tracer keeps a bounded ring of recent spans for inspection.
type Tracer struct {
	mu      sync.Mutex
	spans   []Span
	next    int
	full    bool
	enabled bool
}

// NewTracer creates a span recorder.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		spans:   make([]Span, cfg.MaxSpans),
		enabled: cfg.Enabled,
	}
}

// Start opens a span for a command invocation.
func (t *Tracer) Start(ctx context.Context, variant, command, actor string) *Span {
	return &Span{
		ID:        uuid.NewString(),
		RequestID: RequestIDFromContext(ctx),
		Variant:   variant,
		Command:   command,
		Actor:     actor,
		StartTime: time.Now(),
	}
}

// End closes the span and records it together with its metrics.
func (t *Tracer) End(span *Span, outcome Outcome, err error) {
	if span == nil {
		return
	}
	span.Duration = time.Since(span.StartTime)
	span.Outcome = outcome
	if err != nil {
		span.Error = err.Error()
	}

	CommandsTotal.WithLabelValues(span.Variant, span.Command, string(outcome)).Inc()
	CommandDuration.WithLabelValues(span.Variant, span.Command).Observe(span.Duration.Seconds())

	if t == nil || !t.enabled {
		return
	}
	t.mu.Lock()
	t.spans[t.next] = *span
	t.next = (t.next + 1) % len(t.spans)
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()
}

// Spans returns up to limit recent spans, newest first. limit <= 0 means all.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.countLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Span, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (t.next - i + len(t.spans)) % len(t.spans)
		out = append(out, t.spans[idx])
	}
	return out
}

// SpanCount returns the number of retained spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countLocked()
}

func (t *Tracer) countLocked() int {
	if t.full {
		return len(t.spans)
	}
	return t.next
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const requestIDKey contextKey = "moose-request-id"

// WithRequestID tags ctx with the transport request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Dispatch Metrics ───────────────────────────────────────────────────────

// CommandsTotal counts invocations by variant, command and outcome.
var CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moose",
	Subsystem: "dispatch",
	Name:      "commands_total",
	Help:      "Total command invocations by variant, command and outcome.",
}, []string{"variant", "command", "outcome"})

// CommandDuration tracks handler latency.
var CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "moose",
	Subsystem: "dispatch",
	Name:      "command_duration_seconds",
	Help:      "Command handler latency in seconds.",
	Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"variant", "command"})

// ReplyFailures counts replies that could not be delivered.
var ReplyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moose",
	Subsystem: "dispatch",
	Name:      "reply_failures_total",
	Help:      "Replies that failed or timed out after the command completed.",
}, []string{"variant"})

// ActiveViews tracks live paged views.
var ActiveViews = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "moose",
	Subsystem: "dispatch",
	Name:      "active_views",
	Help:      "Number of paged views currently held in memory.",
})

// ─── Points Metrics ─────────────────────────────────────────────────────────

// PointsGranted counts points granted by source (admin, referral).
var PointsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moose",
	Subsystem: "points",
	Name:      "granted_total",
	Help:      "Total points granted by source.",
}, []string{"source"})

// PointsSpent counts points consumed by reason (admin, purchase).
var PointsSpent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moose",
	Subsystem: "points",
	Name:      "spent_total",
	Help:      "Total points consumed by reason.",
}, []string{"reason"})

// SweepDeleted counts ledger entries removed by the expiry sweep.
var SweepDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "moose",
	Subsystem: "points",
	Name:      "sweep_deleted_total",
	Help:      "Expired ledger entries removed by the sweep.",
})

// SweepRuns counts sweep runs by result.
var SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moose",
	Subsystem: "points",
	Name:      "sweep_runs_total",
	Help:      "Expiry sweep runs by result.",
}, []string{"result"})

// ─── Bank Metrics ───────────────────────────────────────────────────────────

// BankTransactions counts committed bank transactions by kind.
var BankTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moose",
	Subsystem: "bank",
	Name:      "transactions_total",
	Help:      "Committed bank transactions by kind.",
}, []string{"kind"})
