// Package metrics collects the control plane's runtime counters.
//
// Two stores coexist. The in-process Metrics struct backs a dependency-free
// JSON endpoint an operator can curl without standing up a monitoring
// stack; the Prometheus registry (prometheus.go) serves scrapers. Recording
// functions feed both.
//
// RecordInvocationWithDetails sits on the dispatch hot path, so it sticks
// to atomics and hands time-series bucketing to a single worker goroutine
// over a buffered channel; events that would block are dropped and counted
// instead.
//
// Invariants: TotalInvocations == SuccessInvocations + FailedInvocations,
// and the time-series ring holds exactly one bucket per minute for the
// trailing 24 hours.
package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	bucketStep  = time.Minute
	bucketCount = 24 * 60
	eventBuffer = 8192
)

// TimeSeriesBucket aggregates one minute of invocations.
type TimeSeriesBucket struct {
	Timestamp    time.Time
	Invocations  int64
	Errors       int64
	TotalLatency int64
	Count        int64
}

// Metrics is the in-process counter store.
type Metrics struct {
	TotalInvocations   atomic.Int64
	SuccessInvocations atomic.Int64
	FailedInvocations  atomic.Int64

	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	ResourcesDeployed   atomic.Int64
	ResourcesCached     atomic.Int64
	ResourcesFailed     atomic.Int64
	ResourcesDrifted    atomic.Int64
	ResourcesUndeployed atomic.Int64

	RetryAttempts       atomic.Int64
	CircuitBreakerTrips atomic.Int64
	ManifestFetches     atomic.Int64
	ManifestFallbacks   atomic.Int64

	perResource sync.Map // resource_id -> *ResourceMetrics

	ringMu  sync.RWMutex
	ring    [bucketCount]TimeSeriesBucket
	ringPos int // index of the current (newest) bucket

	events  chan tsEvent
	dropped atomic.Int64

	startTime time.Time
}

type tsEvent struct {
	durationMs int64
	isError    bool
}

// ResourceMetrics tracks one resource's invocation counters.
type ResourceMetrics struct {
	Invocations atomic.Int64
	Successes   atomic.Int64
	Failures    atomic.Int64
	TotalMs     atomic.Int64
	MinMs       atomic.Int64
	MaxMs       atomic.Int64
}

var global = newMetrics()

func newMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		events:    make(chan tsEvent, eventBuffer),
	}
	m.MinLatencyMs.Store(math.MaxInt64)
	now := time.Now().Truncate(bucketStep)
	for i := range m.ring {
		m.ring[i].Timestamp = now.Add(time.Duration(i-(bucketCount-1)) * bucketStep)
	}
	m.ringPos = bucketCount - 1
	go m.bucketLoop()
	return m
}

// Global returns the process-wide metrics store.
func Global() *Metrics {
	return global
}

// StartTime returns when the metrics store came up.
func StartTime() time.Time {
	return global.startTime
}

// RecordInvocation records one dispatch outcome for resourceID.
func (m *Metrics) RecordInvocation(resourceID string, durationMs int64, success bool) {
	m.RecordInvocationWithDetails(resourceID, "", durationMs, success)
}

// RecordInvocationWithDetails also carries the endpoint URL for Prometheus
// labels.
func (m *Metrics) RecordInvocationWithDetails(resourceID, endpointURL string, durationMs int64, success bool) {
	m.TotalInvocations.Add(1)
	if success {
		m.SuccessInvocations.Add(1)
	} else {
		m.FailedInvocations.Add(1)
	}
	m.TotalLatencyMs.Add(durationMs)
	storeMin(&m.MinLatencyMs, durationMs)
	storeMax(&m.MaxLatencyMs, durationMs)

	rm := m.resourceMetrics(resourceID)
	rm.Invocations.Add(1)
	if success {
		rm.Successes.Add(1)
	} else {
		rm.Failures.Add(1)
	}
	rm.TotalMs.Add(durationMs)
	storeMin(&rm.MinMs, durationMs)
	storeMax(&rm.MaxMs, durationMs)

	select {
	case m.events <- tsEvent{durationMs: durationMs, isError: !success}:
	default:
		m.dropped.Add(1)
	}

	RecordPrometheusInvocation(resourceID, endpointURL, durationMs, success)
}

// RecordRetryAttempt counts one reliability-runtime retry.
func (m *Metrics) RecordRetryAttempt(resourceID string) {
	m.RetryAttempts.Add(1)
	RecordPrometheusRetryAttempt(resourceID)
}

// RecordDeployOutcome counts one Resource Manager Ensure outcome.
func (m *Metrics) RecordDeployOutcome(resourceID, outcome string) {
	switch outcome {
	case "deployed":
		m.ResourcesDeployed.Add(1)
	case "cached":
		m.ResourcesCached.Add(1)
	case "drifted":
		m.ResourcesDrifted.Add(1)
	case "failed":
		m.ResourcesFailed.Add(1)
	}
	RecordPrometheusDeployOutcome(resourceID, outcome)
}

// RecordUndeploy counts one teardown.
func (m *Metrics) RecordUndeploy(resourceID string) {
	m.ResourcesUndeployed.Add(1)
	RecordPrometheusUndeploy(resourceID)
}

// RecordManifestFetch counts one manifest refresh, noting whether it had to
// fall back to the local copy.
func (m *Metrics) RecordManifestFetch(fromFallback bool) {
	m.ManifestFetches.Add(1)
	if fromFallback {
		m.ManifestFallbacks.Add(1)
	}
	RecordPrometheusManifestFetch(fromFallback)
}

// bucketLoop is the only writer of the time-series ring.
func (m *Metrics) bucketLoop() {
	for evt := range m.events {
		m.applyEvent(evt)
	}
}

func (m *Metrics) applyEvent(evt tsEvent) {
	m.ringMu.Lock()
	defer m.ringMu.Unlock()

	now := time.Now().Truncate(bucketStep)
	current := m.ring[m.ringPos].Timestamp

	// Advance the ring to the current minute, clearing every minute we
	// stepped over. A long idle gap just wraps the whole ring.
	steps := int(now.Sub(current) / bucketStep)
	if steps > bucketCount {
		steps = bucketCount
	}
	for i := 0; i < steps; i++ {
		current = current.Add(bucketStep)
		m.ringPos = (m.ringPos + 1) % bucketCount
		m.ring[m.ringPos] = TimeSeriesBucket{Timestamp: current}
	}

	b := &m.ring[m.ringPos]
	b.Invocations++
	b.TotalLatency += evt.durationMs
	b.Count++
	if evt.isError {
		b.Errors++
	}
}

func (m *Metrics) resourceMetrics(resourceID string) *ResourceMetrics {
	if v, ok := m.perResource.Load(resourceID); ok {
		return v.(*ResourceMetrics)
	}
	rm := &ResourceMetrics{}
	rm.MinMs.Store(math.MaxInt64)
	actual, _ := m.perResource.LoadOrStore(resourceID, rm)
	return actual.(*ResourceMetrics)
}

// GetResourceMetrics returns resourceID's counters, or nil before its first
// recorded invocation.
func (m *Metrics) GetResourceMetrics(resourceID string) *ResourceMetrics {
	if v, ok := m.perResource.Load(resourceID); ok {
		return v.(*ResourceMetrics)
	}
	return nil
}

// Snapshot renders every global counter into a JSON-friendly map.
func (m *Metrics) Snapshot() map[string]any {
	total := m.TotalInvocations.Load()
	var avgLatency float64
	if total > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(total)
	}
	minLatency := m.MinLatencyMs.Load()
	if minLatency == math.MaxInt64 {
		minLatency = 0
	}

	return map[string]any{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"invocations": map[string]any{
			"total":   total,
			"success": m.SuccessInvocations.Load(),
			"failed":  m.FailedInvocations.Load(),
		},
		"latency_ms": map[string]any{
			"avg": avgLatency,
			"min": minLatency,
			"max": m.MaxLatencyMs.Load(),
		},
		"resources": map[string]any{
			"deployed":   m.ResourcesDeployed.Load(),
			"cached":     m.ResourcesCached.Load(),
			"drifted":    m.ResourcesDrifted.Load(),
			"failed":     m.ResourcesFailed.Load(),
			"undeployed": m.ResourcesUndeployed.Load(),
		},
		"reliability": map[string]any{
			"retry_attempts":        m.RetryAttempts.Load(),
			"circuit_breaker_trips": m.CircuitBreakerTrips.Load(),
		},
		"manifest": map[string]any{
			"fetches":   m.ManifestFetches.Load(),
			"fallbacks": m.ManifestFallbacks.Load(),
		},
		"ts_dropped_events": m.dropped.Load(),
	}
}

// ResourceStats renders per-resource counters.
func (m *Metrics) ResourceStats() map[string]any {
	out := make(map[string]any)
	m.perResource.Range(func(key, value any) bool {
		rm := value.(*ResourceMetrics)
		total := rm.Invocations.Load()
		var avgMs float64
		if total > 0 {
			avgMs = float64(rm.TotalMs.Load()) / float64(total)
		}
		minMs := rm.MinMs.Load()
		if minMs == math.MaxInt64 {
			minMs = 0
		}
		out[key.(string)] = map[string]any{
			"invocations": total,
			"successes":   rm.Successes.Load(),
			"failures":    rm.Failures.Load(),
			"avg_ms":      avgMs,
			"min_ms":      minMs,
			"max_ms":      rm.MaxMs.Load(),
		}
		return true
	})
	return out
}

// TimeSeries renders the trailing 24 hours of minute buckets, oldest first.
func (m *Metrics) TimeSeries() []map[string]any {
	m.ringMu.RLock()
	defer m.ringMu.RUnlock()

	out := make([]map[string]any, 0, bucketCount)
	for i := 1; i <= bucketCount; i++ {
		b := m.ring[(m.ringPos+i)%bucketCount]
		var avg float64
		if b.Count > 0 {
			avg = float64(b.TotalLatency) / float64(b.Count)
		}
		out = append(out, map[string]any{
			"timestamp":    b.Timestamp.Format(time.RFC3339),
			"invocations":  b.Invocations,
			"errors":       b.Errors,
			"avg_duration": avg,
		})
	}
	return out
}

// JSONHandler serves the Snapshot plus per-resource stats.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		result := m.Snapshot()
		result["resource_stats"] = m.ResourceStats()
		json.NewEncoder(w).Encode(result)
	})
}

// TimeSeriesHandler serves the minute-bucket time series.
func (m *Metrics) TimeSeriesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.TimeSeries())
	})
}

func storeMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old || target.CompareAndSwap(old, value) {
			return
		}
	}
}

func storeMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old || target.CompareAndSwap(old, value) {
			return
		}
	}
}
