package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for the control plane.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	invocationsTotal   *prometheus.CounterVec
	retryAttemptsTotal *prometheus.CounterVec
	deployOutcomeTotal *prometheus.CounterVec
	undeployTotal      *prometheus.CounterVec
	manifestFetchTotal *prometheus.CounterVec
	lbSelectionsTotal  *prometheus.CounterVec

	// Histograms
	invocationDuration *prometheus.HistogramVec

	// Gauges
	uptime prometheus.GaugeFunc

	// Circuit breaker
	circuitBreakerState      *prometheus.GaugeVec
	circuitBreakerTripsTotal *prometheus.CounterVec
}

// Default histogram buckets for invocation duration (in milliseconds)
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	// Register default Go and process collectors
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of resource invocations dispatched through the reliability runtime",
			},
			[]string{"resource_id", "endpoint", "status"},
		),

		retryAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts made by the reliability runtime",
			},
			[]string{"resource_id"},
		),

		deployOutcomeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploy_outcome_total",
				Help:      "Total number of resource-manager Ensure outcomes, by kind",
			},
			[]string{"resource_id", "outcome"},
		),

		undeployTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "undeploy_total",
				Help:      "Total number of resources torn down",
			},
			[]string{"resource_id"},
		),

		manifestFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifest_fetch_total",
				Help:      "Total number of manifest fetches, split by whether they fell back to the local cache",
			},
			[]string{"source"},
		),

		lbSelectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_balancer_selections_total",
				Help:      "Total number of endpoint selections made by the load balancer, by strategy",
			},
			[]string{"strategy", "endpoint"},
		),

		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_ms",
				Help:      "Invocation duration in milliseconds",
				Buckets:   buckets,
			},
			[]string{"resource_id"},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Current circuit breaker state per endpoint (0=closed, 1=open, 2=half_open)",
			},
			[]string{"endpoint"},
		),

		circuitBreakerTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"endpoint", "to_state"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		},
		func() float64 { return time.Since(StartTime()).Seconds() },
	)

	registry.MustRegister(
		pm.invocationsTotal,
		pm.retryAttemptsTotal,
		pm.deployOutcomeTotal,
		pm.undeployTotal,
		pm.manifestFetchTotal,
		pm.lbSelectionsTotal,
		pm.invocationDuration,
		pm.uptime,
		pm.circuitBreakerState,
		pm.circuitBreakerTripsTotal,
	)

	promMetrics = pm
}

// RecordPrometheusInvocation records a dispatch outcome in Prometheus.
func RecordPrometheusInvocation(resourceID, endpointURL string, durationMs int64, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	promMetrics.invocationsTotal.WithLabelValues(resourceID, endpointURL, status).Inc()
	promMetrics.invocationDuration.WithLabelValues(resourceID).Observe(float64(durationMs))
}

// RecordPrometheusRetryAttempt records a reliability-runtime retry.
func RecordPrometheusRetryAttempt(resourceID string) {
	if promMetrics == nil {
		return
	}
	promMetrics.retryAttemptsTotal.WithLabelValues(resourceID).Inc()
}

// RecordPrometheusDeployOutcome records an Ensure/DeployAll outcome.
func RecordPrometheusDeployOutcome(resourceID, outcome string) {
	if promMetrics == nil {
		return
	}
	promMetrics.deployOutcomeTotal.WithLabelValues(resourceID, outcome).Inc()
}

// RecordPrometheusUndeploy records a teardown.
func RecordPrometheusUndeploy(resourceID string) {
	if promMetrics == nil {
		return
	}
	promMetrics.undeployTotal.WithLabelValues(resourceID).Inc()
}

// RecordPrometheusManifestFetch records a manifest fetch.
func RecordPrometheusManifestFetch(fromFallback bool) {
	if promMetrics == nil {
		return
	}
	source := "provider"
	if fromFallback {
		source = "local_fallback"
	}
	promMetrics.manifestFetchTotal.WithLabelValues(source).Inc()
}

// RecordLoadBalancerSelection records which endpoint a strategy picked.
func RecordLoadBalancerSelection(strategy, endpoint string) {
	if promMetrics == nil {
		return
	}
	promMetrics.lbSelectionsTotal.WithLabelValues(strategy, endpoint).Inc()
}

// SetCircuitBreakerState records the current state for an endpoint (0=closed, 1=open, 2=half_open).
func SetCircuitBreakerState(endpoint string, state int) {
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerState.WithLabelValues(endpoint).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker state transition.
func RecordCircuitBreakerTrip(endpoint, toState string) {
	global.CircuitBreakerTrips.Add(1)
	if promMetrics == nil {
		return
	}
	promMetrics.circuitBreakerTripsTotal.WithLabelValues(endpoint, toState).Inc()
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "prometheus metrics not initialized", http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
