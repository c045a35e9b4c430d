// Package metrics exposes Prometheus collectors for the catalog pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelineRunsTotal          *prometheus.CounterVec
	pipelineRunDurationSeconds *prometheus.HistogramVec
	pipelineRecordsTotal       *prometheus.CounterVec
	pipelineArtifactBytes      prometheus.Gauge
	pipelineNotificationsTotal *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pipeline_runs_total",
				Help: "Total number of pipeline runs, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		pipelineRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_pipeline_run_duration_seconds",
				Help:    "Histogram of pipeline run latencies, labeled by stage.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		)

		pipelineRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pipeline_records_total",
				Help: "Total number of catalog records processed, labeled by stage and result.",
			},
			[]string{"stage", "result"},
		)

		pipelineArtifactBytes = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_pipeline_artifact_bytes",
				Help: "Size in bytes of the most recently written artifact.",
			},
		)

		pipelineNotificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pipeline_notifications_total",
				Help: "Total number of artifact notifications, labeled by status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records the outcome and latency of one pipeline run.
func ObserveRun(stage, outcome string, duration time.Duration) {
	Init()
	pipelineRunsTotal.WithLabelValues(stage, outcome).Inc()
	pipelineRunDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddRecords increments the record counter for a stage and result.
func AddRecords(stage, result string, n int) {
	if n <= 0 {
		return
	}
	Init()
	pipelineRecordsTotal.WithLabelValues(stage, result).Add(float64(n))
}

// SetArtifactBytes records the size of the artifact just written.
func SetArtifactBytes(n int) {
	Init()
	pipelineArtifactBytes.Set(float64(n))
}

// ObserveNotification increments the notification counter for the given status.
func ObserveNotification(status string) {
	Init()
	pipelineNotificationsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
