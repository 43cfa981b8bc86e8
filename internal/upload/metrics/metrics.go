package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the upload gateway.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec   // upload_requests_total{method,status}
	RequestDuration *prometheus.HistogramVec // upload_request_duration_seconds{method}

	// Protocol metrics
	SessionsCreated prometheus.Counter     // upload_sessions_created_total
	AdmissionDenied *prometheus.CounterVec // upload_admission_denied_total{reason}
	SlotsInUse      prometheus.Histogram   // upload_admission_slots_in_use
	BytesReceived   prometheus.Counter     // upload_bytes_received_total
	OffsetConflicts prometheus.Counter     // upload_offset_conflicts_total
	Finalized       *prometheus.CounterVec // upload_finalized_total{outcome}

	// Maintenance metrics
	ReclaimedSessions prometheus.Counter // upload_reclaimed_sessions_total
	ReclaimedBytes    prometheus.Counter // upload_reclaimed_bytes_total

	// Dependency metrics
	CircuitState *prometheus.GaugeVec // upload_circuit_open{name} (1 = open)
}

// New registers all metrics on registry. Use a fresh registry per test.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Total protocol requests by method and status",
		}, []string{"method", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upload_request_duration_seconds",
			Help:    "Protocol request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_sessions_created_total",
			Help: "Total upload sessions created",
		}),

		AdmissionDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_admission_denied_total",
			Help: "Total create requests denied by admission control",
		}, []string{"reason"}),

		SlotsInUse: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_admission_slots_in_use",
			Help:    "Outstanding admission tokens held by a client right after a grant",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),

		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_bytes_received_total",
			Help: "Total bytes appended to staging objects",
		}),

		OffsetConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_offset_conflicts_total",
			Help: "Total PATCH requests rejected for an offset mismatch",
		}),

		Finalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_finalized_total",
			Help: "Total finalize attempts by outcome",
		}, []string{"outcome"}),

		ReclaimedSessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_reclaimed_sessions_total",
			Help: "Total expired sessions reclaimed",
		}),

		ReclaimedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_reclaimed_bytes_total",
			Help: "Total staged bytes reclaimed",
		}),

		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "upload_circuit_open",
			Help: "Whether a dependency circuit breaker is open",
		}, []string{"name"}),
	}
}

// RecordRequest records a protocol request.
func (m *Metrics) RecordRequest(method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

func (m *Metrics) RecordAdmissionDenied(reason string) {
	if m == nil {
		return
	}
	m.AdmissionDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordSlotsInUse(n int) {
	if m == nil {
		return
	}
	m.SlotsInUse.Observe(float64(n))
}

func (m *Metrics) RecordBytesReceived(n int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(n))
}

func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.OffsetConflicts.Inc()
}

// RecordFinalize records a finalize outcome: "success", "rejected" or "failed".
func (m *Metrics) RecordFinalize(outcome string) {
	if m == nil {
		return
	}
	m.Finalized.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordReclaim(sessions int, bytes int64) {
	if m == nil {
		return
	}
	m.ReclaimedSessions.Add(float64(sessions))
	m.ReclaimedBytes.Add(float64(bytes))
}

// RecordCircuitState is shaped to plug into resilience.CircuitBreakerConfig.OnStateChange.
func (m *Metrics) RecordCircuitState(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitState.WithLabelValues(name).Set(v)
}
