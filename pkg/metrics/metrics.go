package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FetchAttempts        *prometheus.CounterVec
	FetchRetries         *prometheus.CounterVec
	ProductsTotal        *prometheus.CounterVec
	ValidationRejections *prometheus.CounterVec
	BatchInvalidFraction prometheus.Gauge
	AlertsTotal          *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	RunsTotal            *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_fetch_attempts_total",
			Help: "Total number of page fetch attempts.",
		}, []string{"outcome"}), // success, failure
		FetchRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_fetch_retries_total",
			Help: "Total number of fetch backoffs.",
		}, []string{"reason"}), // rate_limited, transient
		ProductsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_products_total",
			Help: "Products processed per outcome.",
		}, []string{"outcome"}), // scraped, fetch_failed, extraction_failed
		ValidationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_validation_rejections_total",
			Help: "Records rejected by the quality gate.",
		}, []string{"reason"}),
		BatchInvalidFraction: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipeline_batch_invalid_fraction",
			Help: "Invalid fraction of the last validated batch.",
		}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_alerts_total",
			Help: "Price alerts emitted.",
		}, []string{"type"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{0.1, 1, 10, 60, 300, 900, 1800, 3600},
		}, []string{"stage"}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status", "failure_kind"}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push sends the registry to a Pushgateway. Batch jobs exit before a scrape
// would see them, so the pipeline pushes at the end of every run.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	return push.New(gatewayURL, job).Gatherer(m.registry).PushContext(ctx)
}

func (m *Metrics) IncFetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncFetchRetry(reason string) {
	if m == nil {
		return
	}
	m.FetchRetries.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncProduct(outcome string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.ValidationRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetInvalidFraction(f float64) {
	if m == nil {
		return
	}
	m.BatchInvalidFraction.Set(f)
}

func (m *Metrics) IncAlert(alertType string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(alertType).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) IncRun(status, failureKind string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status, failureKind).Inc()
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
