// Package loadbalancer selects one endpoint from a replica set by strategy,
// filtering out unhealthy replicas via an injected state-query capability.
// It never imports the circuitbreaker package's internals — only the narrow
// StateQuerier interface — breaking the cyclic reference a direct
// balancer/breaker pairing would otherwise create.
package loadbalancer

import (
	"math/rand/v2"
	"sync"

	"github.com/oriys/tetra/internal/circuitbreaker"
	"github.com/oriys/tetra/internal/metrics"
)

// Strategy selects among ROUND_ROBIN, LEAST_CONNECTIONS, RANDOM.
type Strategy string

const (
	RoundRobin       Strategy = "round_robin"
	LeastConnections Strategy = "least_connections"
	Random           Strategy = "random"
)

// StateQuerier is the narrow health-query capability the balancer is
// injected with. circuitbreaker.Registry satisfies it.
type StateQuerier interface {
	State(url string) circuitbreaker.State
}

// Balancer picks a replica URL from a candidate set.
type Balancer struct {
	strategy Strategy
	states   StateQuerier // optional; nil disables health filtering

	mu       sync.Mutex
	counter  uint64
	inFlight map[string]int
}

// New constructs a Balancer. states may be nil to disable health filtering
// (e.g. in tests exercising selection strategy alone).
func New(strategy Strategy, states StateQuerier) *Balancer {
	if strategy == "" {
		strategy = RoundRobin
	}
	return &Balancer{
		strategy: strategy,
		states:   states,
		inFlight: make(map[string]int),
	}
}

// Select filters endpoints to the healthy subset, then applies the
// configured strategy. Returns ok=false if filtering leaves nothing.
func (b *Balancer) Select(endpoints []string) (url string, ok bool) {
	candidates := endpoints
	if b.states != nil {
		candidates = make([]string, 0, len(endpoints))
		for _, e := range endpoints {
			if b.states.State(e) != circuitbreaker.StateOpen {
				candidates = append(candidates, e)
			}
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	var selected string
	switch b.strategy {
	case LeastConnections:
		selected = b.selectLeastConnections(candidates)
	case Random:
		selected = candidates[rand.IntN(len(candidates))]
	default:
		selected = b.selectRoundRobin(candidates)
	}
	metrics.RecordLoadBalancerSelection(string(b.strategy), selected)
	return selected, true
}

// selectRoundRobin increments a monotonic counter under the balancer's lock
// and indexes modulo the candidate count — globally ordered, no per-caller
// sequence guarantee.
func (b *Balancer) selectRoundRobin(candidates []string) string {
	b.mu.Lock()
	idx := b.counter % uint64(len(candidates))
	b.counter++
	b.mu.Unlock()
	return candidates[idx]
}

// selectLeastConnections picks the candidate with the minimum in-flight
// count, ties broken by iteration order.
func (b *Balancer) selectLeastConnections(candidates []string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	best := candidates[0]
	bestCount := b.inFlight[best]
	for _, c := range candidates[1:] {
		if n := b.inFlight[c]; n < bestCount {
			best = c
			bestCount = n
		}
	}
	return best
}

// RecordRequest increments url's in-flight count. Callers must bracket the
// chosen endpoint with RecordRequest/RecordRequestComplete so that
// LeastConnections observes a correct count; the completion hook must fire
// on every exit path (defer).
func (b *Balancer) RecordRequest(url string) {
	b.mu.Lock()
	b.inFlight[url]++
	b.mu.Unlock()
}

// RecordRequestComplete decrements url's in-flight count, clamped at 0.
func (b *Balancer) RecordRequestComplete(url string) {
	b.mu.Lock()
	if b.inFlight[url] > 0 {
		b.inFlight[url]--
	}
	b.mu.Unlock()
}

// InFlight returns the current in-flight count for url. Intended for tests
// and observability.
func (b *Balancer) InFlight(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight[url]
}
