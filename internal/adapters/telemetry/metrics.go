// Package telemetry exposes request and feature observations as Prometheus
// metrics on a dedicated registry.
package telemetry

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// Config configures the metrics registry.
type Config struct {
	// Namespace prefixes every metric name.
	Namespace string
	// ServiceName is attached to every metric as the "service" label.
	ServiceName string
	// EnableDefaultCollectors registers the Go and process collectors.
	EnableDefaultCollectors bool
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Namespace:               "pairfeat",
		ServiceName:             "pair-features",
		EnableDefaultCollectors: true,
	}
}

// Metrics implements ports.Telemetry on an isolated Prometheus registry.
type Metrics struct {
	// Registry is the registry every collector is registered on.
	Registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	featureValue    *prometheus.HistogramVec
	repairedTotal   prometheus.Counter
	extractions     prometheus.Counter
}

// New creates the registry and registers all collectors.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "requests_total",
			Help:      "Total number of processed requests.",
		}, []string{"endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		featureValue: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "feature_value",
			Help:      "Distribution of post-processed feature values per metric.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"metric"}),
		repairedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "repaired_features_total",
			Help:      "Total number of non-finite feature slots that were replaced.",
		}),
		extractions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "extractions_total",
			Help:      "Total number of feature vectors produced.",
		}),
	}

	wrapped.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.featureValue,
		m.repairedTotal,
		m.extractions,
	)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	return m
}

// ObserveRequest counts a request and records its latency.
func (m *Metrics) ObserveRequest(endpoint, status string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveFeatures records one feature vector. Non-finite values are skipped;
// they only happen under the propagate repair policy.
func (m *Metrics) ObserveFeatures(names []string, features domain.MetricVector, repaired int) {
	m.extractions.Inc()
	if repaired > 0 {
		m.repairedTotal.Add(float64(repaired))
	}
	for i, v := range features {
		if i >= len(names) || math.IsNaN(v) {
			continue
		}
		m.featureValue.WithLabelValues(names[i]).Observe(v)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Nop discards every observation.
type Nop struct{}

// ObserveRequest does nothing.
func (Nop) ObserveRequest(string, string, time.Duration) {}

// ObserveFeatures does nothing.
func (Nop) ObserveFeatures([]string, domain.MetricVector, int) {}
