package observability

import (
	"time"

	"github.com/boddenberg/docflow-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Generation outcomes recorded by IncrGeneration.
const (
	OutcomeSuccess          = "success"
	OutcomeGenerationError  = "generation_error"
	OutcomeCreditsExhausted = "credits_exhausted"
	OutcomeDeductionError   = "deduction_error"
	OutcomePersistenceError = "persistence_error"
	OutcomeCancelled        = "cancelled"
	OutcomeRejected         = "rejected"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	generations     *prometheus.CounterVec
	credits         *prometheus.CounterVec
	exports         *prometheus.CounterVec
	historyFailures prometheus.Counter
	transitions     *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docflow_operation_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_generations_total",
				Help: "Generation sequences by outcome.",
			},
			[]string{"outcome"},
		),
		credits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_credits_total",
				Help: "Credits moved through the ledger.",
			},
			[]string{"direction"},
		),
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_exports_total",
				Help: "Export webhook submissions by outcome.",
			},
			[]string{"outcome"},
		),
		historyFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docflow_history_read_failures_total",
				Help: "History reads that degraded to an empty list.",
			},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docflow_step_transitions_total",
				Help: "Lifecycle step transitions by target step.",
			},
			[]string{"to"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "docflow_active_sessions",
				Help: "Lifecycle sessions currently held in memory.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrGeneration counts a finished generation sequence.
func (m *Metrics) IncrGeneration(outcome string) {
	m.generations.WithLabelValues(outcome).Inc()
}

// AddCredits records credits deducted or granted.
func (m *Metrics) AddCredits(direction string, n int) {
	m.credits.WithLabelValues(direction).Add(float64(n))
}

// IncrExport counts an export attempt.
func (m *Metrics) IncrExport(outcome string) {
	m.exports.WithLabelValues(outcome).Inc()
}

// IncrHistoryFailure counts a swallowed history read failure.
func (m *Metrics) IncrHistoryFailure() {
	m.historyFailures.Inc()
}

// IncrTransition counts a step change.
func (m *Metrics) IncrTransition(to domain.AppStep) {
	m.transitions.WithLabelValues(string(to)).Inc()
}

// SetActiveSessions publishes the number of live sessions.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// GetGenerationSnapshot returns a snapshot suitable for the
// GET /v1/metrics/generation endpoint.
func (m *Metrics) GetGenerationSnapshot() *domain.GenerationMetrics {
	// Prometheus counters expose cumulative values.
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	success := getCounterValue(m.generations, OutcomeSuccess)
	failed := getCounterValue(m.generations, OutcomeGenerationError) +
		getCounterValue(m.generations, OutcomeDeductionError) +
		getCounterValue(m.generations, OutcomePersistenceError)
	total := success + failed + getCounterValue(m.generations, OutcomeCancelled)
	cacheHits := getCounterValue(m.cacheHits, "session")
	cacheMisses := getCounterValue(m.cacheMisses, "session")

	avgTokens := float64(0)
	errorRate := float64(0)
	cacheHitRate := float64(0)

	if total > 0 {
		avgTokens = (promptTokens + completionTokens) / total
		errorRate = failed / total
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	// Gemini Flash list price: ~$0.30/1M input tokens, ~$2.50/1M output tokens.
	estimatedCost := (promptTokens/1e6)*0.30 + (completionTokens/1e6)*2.50

	return &domain.GenerationMetrics{
		TotalGenerations:    int64(total),
		FailedGenerations:   int64(failed),
		ErrorRate:           errorRate,
		CreditsDeducted:     int64(getCounterValue(m.credits, "deducted")),
		CreditsGranted:      int64(getCounterValue(m.credits, "granted")),
		ExportsSent:         int64(getCounterValue(m.exports, "sent")),
		ExportsFailed:       int64(getCounterValue(m.exports, "failed")),
		AvgTokensPerRequest: avgTokens,
		EstimatedCostUsd:    estimatedCost,
		SessionCacheHitRate: cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
