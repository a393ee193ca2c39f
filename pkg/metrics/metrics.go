// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RunsTotal tracks runs by normalized outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_runs_total",
			Help: "Total agent runs by outcome",
		},
		[]string{"status"},
	)

	// RunDuration tracks wall time from submission to normalized result.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_run_duration_seconds",
			Help:    "Agent run duration from submission to result",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120, 300, 600},
		},
		[]string{"status"},
	)

	// RunPolls tracks how many state fetches a run needed.
	RunPolls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_run_polls",
			Help:    "Number of run state fetches per run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// TokensTotal tracks tokens reported by completed and failed runs.
	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tokens_total",
			Help: "Total tokens reported by agent runs",
		},
		[]string{"direction"},
	)

	// TransportErrorsTotal tracks failed calls to the remote agent service.
	TransportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_transport_errors_total",
			Help: "Failed calls to the remote agent service",
		},
		[]string{"op"},
	)

	// FilesUploadedTotal tracks files uploaded for analysis.
	FilesUploadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_files_uploaded_total",
			Help: "Total files uploaded to the agent service",
		},
	)

	// ArtifactsSavedTotal tracks image artifacts written to disk.
	ArtifactsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_artifacts_saved_total",
			Help: "Total image artifacts saved locally",
		},
	)

	// ArtifactsRemovedTotal tracks image artifacts removed by retention.
	ArtifactsRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_artifacts_removed_total",
			Help: "Total image artifacts removed by retention",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRun records metrics for a finished run.
func RecordRun(status string, duration float64, polls, tokensIn, tokensOut int) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.WithLabelValues(status).Observe(duration)
	RunPolls.Observe(float64(polls))
	TokensTotal.WithLabelValues("in").Add(float64(tokensIn))
	TokensTotal.WithLabelValues("out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
