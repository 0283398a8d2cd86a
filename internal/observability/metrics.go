// Package observability provides Prometheus metrics for the dataset pipeline.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Fetch metrics
	WeatherRowsFetched   prometheus.Counter
	WeatherWindowsFailed prometheus.Counter
	DemandRowsFetched    prometheus.Counter
	DemandRequests       *prometheus.CounterVec

	// Transform metrics
	MergedRows         prometheus.Counter
	MissingTempRows    prometheus.Counter
	FeatureRows        prometheus.Counter
	FeatureRowsDropped prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  prometheus.Histogram
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance on its own registry, so that several
// instances can coexist in one process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "energy_features"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		WeatherRowsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "weather_rows_total",
			Help:      "Total number of hourly temperature rows fetched",
		}),
		WeatherWindowsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "weather_windows_failed_total",
			Help:      "Total number of weather pagination windows skipped after a failed request",
		}),
		DemandRowsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "demand_rows_total",
			Help:      "Total number of raw demand rows fetched",
		}),
		DemandRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "demand_requests_total",
			Help:      "Total number of demand requests by outcome",
		}, []string{"outcome"}),

		MergedRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "merged_rows_total",
			Help:      "Total number of merged hourly records",
		}),
		MissingTempRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "missing_temperature_rows_total",
			Help:      "Total number of merged records without a matching temperature",
		}),
		FeatureRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "feature_rows_total",
			Help:      "Total number of fully-defined feature rows produced",
		}),
		FeatureRowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "feature_rows_dropped_total",
			Help:      "Total number of merged rows dropped for undefined features",
		}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Duration of pipeline runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful pipeline run",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRun records the outcome and duration of one pipeline run.
func (m *Metrics) RecordRun(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		m.LastSuccessfulRun.SetToCurrentTime()
	}
}
