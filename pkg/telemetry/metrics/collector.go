// Package metrics exposes provider and registry telemetry through
// Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "verity"
	subsystem = "callisto"
)

// Collector owns all Prometheus metrics for the resilience layer.
// It satisfies providers.MetricsSink, so it can be handed directly to
// provider constructors via providers.WithMetricsSink.
type Collector struct {
	registry *prometheus.Registry

	// Per-provider operation metrics.
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	rateLimitHits *prometheus.CounterVec
	breakerTrips  *prometheus.CounterVec
	health        *prometheus.GaugeVec

	// Registry-level aggregates.
	registered *prometheus.GaugeVec
	healthyAgg *prometheus.GaugeVec
}

// NewCollector creates and registers the metric set. When registry is
// nil a private registry is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_requests_total",
				Help:      "Total operation attempts per provider",
			},
			[]string{"provider", "operation"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_latency_seconds",
				Help:      "Successful operation latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"provider", "operation"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_errors_total",
				Help:      "Provider errors by type",
			},
			[]string{"provider", "error_type"},
		),

		rateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_rate_limit_hits_total",
				Help:      "Errors classified as rate limiting per provider",
			},
			[]string{"provider"},
		),

		breakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_circuit_breaker_trips_total",
				Help:      "Circuit breaker open transitions per provider",
			},
			[]string{"provider"},
		),

		health: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "provider_health",
				Help:      "Provider health status (1=healthy, 0=unhealthy)",
			},
			[]string{"provider"},
		),

		registered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "registry_providers",
				Help:      "Registered providers per capability",
			},
			[]string{"capability"},
		),

		healthyAgg: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "registry_healthy_providers",
				Help:      "Healthy providers per capability",
			},
			[]string{"capability"},
		),
	}

	registry.MustRegister(
		c.requests,
		c.latency,
		c.errors,
		c.rateLimitHits,
		c.breakerTrips,
		c.health,
		c.registered,
		c.healthyAgg,
	)
	return c
}

// RecordRequest counts one operation attempt.
func (c *Collector) RecordRequest(provider, operation string) {
	c.requests.WithLabelValues(provider, operation).Inc()
}

// RecordLatency observes a successful operation's duration.
func (c *Collector) RecordLatency(provider, operation string, seconds float64) {
	c.latency.WithLabelValues(provider, operation).Observe(seconds)
}

// RecordError counts a failed attempt by error type.
func (c *Collector) RecordError(provider, errorType string) {
	c.errors.WithLabelValues(provider, errorType).Inc()
}

// RecordRateLimitHit counts a rate-limit failure.
func (c *Collector) RecordRateLimitHit(provider string) {
	c.rateLimitHits.WithLabelValues(provider).Inc()
}

// RecordBreakerTrip counts a breaker open transition.
func (c *Collector) RecordBreakerTrip(provider string) {
	c.breakerTrips.WithLabelValues(provider).Inc()
}

// UpdateHealth sets the provider health gauge.
func (c *Collector) UpdateHealth(provider string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.health.WithLabelValues(provider).Set(value)
}

// UpdateRegistryCounts sets the per-capability aggregate gauges.
func (c *Collector) UpdateRegistryCounts(capability string, total, healthy int) {
	c.registered.WithLabelValues(capability).Set(float64(total))
	c.healthyAgg.WithLabelValues(capability).Set(float64(healthy))
}

// Registry returns the underlying Prometheus registry, for exposition
// via promhttp.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
