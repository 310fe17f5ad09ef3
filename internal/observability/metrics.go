package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	progressTransitions   *prometheus.CounterVec
	progressUpdateLatency prometheus.Histogram
	progressBulkEntries   *prometheus.CounterVec
	sessionStudents       *prometheus.GaugeVec
	streamClientsActive   prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the progress engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		progressTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_transitions_total",
			Help: "Component progress status transitions applied.",
		}, []string{"from", "to"})

		progressUpdateLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "progress_update_latency_seconds",
			Help:    "Latency of single component progress updates including persistence.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		})

		progressBulkEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "progress_bulk_entries_total",
			Help: "Bulk progress entries processed, labelled by outcome.",
		}, []string{"result"})

		sessionStudents = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "session_students_by_status",
			Help: "Students per overall status for recently active sessions.",
		}, []string{"session", "status"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "progress_stream_clients_active",
			Help: "Websocket clients currently subscribed to progress events.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			progressTransitions,
			progressUpdateLatency,
			progressBulkEntries,
			sessionStudents,
			streamClientsActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ProgressTransitionsTotal counts status transitions by source and target status.
func ProgressTransitionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return progressTransitions
}

// ProgressUpdateLatency observes single update latency.
func ProgressUpdateLatency() prometheus.Histogram {
	RegisterMetrics()
	return progressUpdateLatency
}

// ProgressBulkEntriesTotal counts bulk entries by outcome.
func ProgressBulkEntriesTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return progressBulkEntries
}

// SessionStudentsByStatus is refreshed by the periodic summary job.
func SessionStudentsByStatus() *prometheus.GaugeVec {
	RegisterMetrics()
	return sessionStudents
}

// StreamClientsActive tracks open progress stream connections.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
