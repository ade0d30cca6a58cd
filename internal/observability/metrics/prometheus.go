package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/constants"
)

// PrometheusMetrics provides Prometheus-based metrics collection
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	server   *http.Server
	config   *PrometheusConfig

	// Search metrics
	searchRunsTotal           *prometheus.CounterVec
	searchDuration            prometheus.Histogram
	candidatesTotal           *prometheus.CounterVec
	candidateDuration         prometheus.Histogram
	candidateDropped          prometheus.Histogram
	bestScore                 prometheus.Gauge
	anonymizationRecordsTotal *prometheus.CounterVec

	// Surface metrics
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
	storageOperationsTotal *prometheus.CounterVec
	storageDuration        *prometheus.HistogramVec
}

// PrometheusConfig configures Prometheus metrics
type PrometheusConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Port      int    `json:"port" mapstructure:"port"`
	Path      string `json:"path" mapstructure:"path"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
	Subsystem string `json:"subsystem" mapstructure:"subsystem"`
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		config = getDefaultPrometheusConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return pm, nil
}

// Registry exposes the underlying registry, mainly for tests and handlers.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start starts the Prometheus metrics server
func (pm *PrometheusMetrics) Start(ctx context.Context) error {
	if !pm.config.Enabled {
		pm.logger.Info("Prometheus metrics disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(pm.config.Path, pm.Handler())

	pm.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", pm.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: constants.DefaultReadTimeout,
	}

	pm.logger.WithFields(logrus.Fields{
		"port": pm.config.Port,
		"path": pm.config.Path,
	}).Info("Starting Prometheus metrics server")

	go func() {
		if err := pm.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			pm.logger.WithError(err).Error("Prometheus metrics server error")
		}
	}()

	return nil
}

// Stop stops the Prometheus metrics server
func (pm *PrometheusMetrics) Stop(ctx context.Context) error {
	if pm.server == nil {
		return nil
	}

	pm.logger.Info("Stopping Prometheus metrics server")
	return pm.server.Shutdown(ctx)
}

// Search Metrics
func (pm *PrometheusMetrics) RecordSearchRun(status string, duration time.Duration) {
	pm.searchRunsTotal.WithLabelValues(status).Inc()
	pm.searchDuration.Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) RecordCandidate(accepted bool, dropped int, duration time.Duration) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	pm.candidatesTotal.WithLabelValues(outcome).Inc()
	pm.candidateDropped.Observe(float64(dropped))
	pm.candidateDuration.Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) SetBestScore(score float64) {
	pm.bestScore.Set(score)
}

func (pm *PrometheusMetrics) RecordAnonymization(released, dropped int) {
	pm.anonymizationRecordsTotal.WithLabelValues("released").Add(float64(released))
	pm.anonymizationRecordsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// HTTP Metrics
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	pm.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	pm.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Storage Metrics
func (pm *PrometheusMetrics) RecordStorageOperation(backend, operation, status string, duration time.Duration) {
	pm.storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	pm.storageDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// initializeMetrics initializes all Prometheus metrics
func (pm *PrometheusMetrics) initializeMetrics() {
	namespace := pm.config.Namespace
	subsystem := pm.config.Subsystem

	pm.searchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Total number of parameter searches by outcome",
		},
		[]string{"status"},
	)

	pm.searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Parameter search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	pm.candidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "candidates_total",
			Help:      "Total number of evaluated (k, l) candidates by utility outcome",
		},
		[]string{"outcome"},
	)

	pm.candidateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "candidate_duration_seconds",
			Help:      "Time to anonymize and score one candidate",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1},
		},
	)

	pm.candidateDropped = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "candidate_dropped_records",
			Help:      "Records dropped per evaluated candidate",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	pm.bestScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "best_score",
			Help:      "Combined score of the most recent winning candidate",
		},
	)

	pm.anonymizationRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "released_records_total",
			Help:      "Records released or dropped by final anonymization runs",
		},
		[]string{"disposition"},
	)

	pm.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	pm.storageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of report storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	pm.storageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Report storage operation duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"backend", "operation"},
	)
}

// registerMetrics registers all metrics with the registry
func (pm *PrometheusMetrics) registerMetrics() error {
	cs := []prometheus.Collector{
		pm.searchRunsTotal,
		pm.searchDuration,
		pm.candidatesTotal,
		pm.candidateDuration,
		pm.candidateDropped,
		pm.bestScore,
		pm.anonymizationRecordsTotal,
		pm.httpRequestsTotal,
		pm.httpRequestDuration,
		pm.storageOperationsTotal,
		pm.storageDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}

	for _, c := range cs {
		if err := pm.registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}

func getDefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Enabled:   true,
		Port:      constants.DefaultMetricsPort,
		Path:      "/metrics",
		Namespace: constants.MetricsNamespace,
		Subsystem: constants.MetricsSubsystem,
	}
}
