// Package circuitbreaker implements the per-endpoint circuit breaker that
// protects the invocation pipeline from cascading failures.
//
// # State machine
//
//	Closed ──(consecutive failures ≥ FailureThreshold)──► Open ──(TimeoutSeconds elapsed)──► HalfOpen
//	  ▲                                                                                            │
//	  └──────────(consecutive probe successes ≥ SuccessThreshold)────────────────────────────────────┘
//	                  (any probe fails) ────────────────────────────────────────────────────► Open
//
// # Why a consecutive-failure counter, not a sliding window
//
// The breaker counts consecutive failures rather than an error rate over a
// trailing window: a single success in Closed resets the counter outright,
// matching a strict "N in a row trips it" contract rather than a percentage
// that would keep tripping as long as any failures remain in the window.
//
// # Concurrency
//
// All public methods (Execute, State, Stats) are safe for concurrent use;
// they acquire the breaker's mutex for every call. The Registry uses a
// separate read-write mutex so the common read path (Get for an existing
// breaker) does not contend with the rare write path (new endpoint observed
// or removed).
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/oriys/tetra/internal/errs"
	"github.com/oriys/tetra/internal/metrics"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation, requests pass through
	StateOpen                  // Requests are rejected without calling fn
	StateHalfOpen              // A probe request is in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the circuit breaker's tuning parameters, sourced from
// environment-configured ReliabilityConfig. Defaults: FailureThreshold=5,
// SuccessThreshold=2, TimeoutSeconds=60.
type Config struct {
	FailureThreshold int // consecutive failures in Closed before tripping to Open
	SuccessThreshold int // consecutive probe successes in HalfOpen before closing
	TimeoutSeconds   int // how long Open is held before the next call becomes a probe
}

// DefaultConfig returns the breaker's documented defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, SuccessThreshold: 2, TimeoutSeconds: 60}
}

// Stats is a read-consistent snapshot of one breaker's counters.
type Stats struct {
	State         State
	SuccessCount  int64
	FailureCount  int64
	TotalRequests int64
}

// Breaker is a per-endpoint-URL circuit breaker.
type Breaker struct {
	mu  sync.Mutex
	cfg Config
	url string

	state                 State
	consecutiveFailures   int
	consecutiveHalfOpenOK int
	openedAt              time.Time

	totalRequests int64
	totalSuccess  int64
	totalFailure  int64
}

// New creates a new circuit breaker with the given configuration, filling
// in defaults for zero-valued fields.
func New(cfg Config) *Breaker {
	return newWithURL(cfg, "")
}

func newWithURL(cfg Config, url string) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultConfig().TimeoutSeconds
	}
	return &Breaker{cfg: cfg, url: url}
}

// Execute runs fn if the breaker allows it, fails fast with ErrCircuitOpen
// otherwise, and records the outcome atomically under the breaker's lock.
// The provider call itself runs with the lock released.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return errs.ErrCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

// allow reports whether the next call may proceed, transitioning
// Open->HalfOpen if the timeout has elapsed.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= time.Duration(b.cfg.TimeoutSeconds)*time.Second {
			b.transitionTo(StateHalfOpen)
			b.consecutiveHalfOpenOK = 0
			return true
		}
		return false
	case StateHalfOpen:
		return true
	}
	return true
}

// transitionTo changes state and reports the trip to the metrics subsystem.
// Callers must already hold b.mu.
func (b *Breaker) transitionTo(next State) {
	if b.state == next {
		return
	}
	b.state = next
	metrics.SetCircuitBreakerState(b.url, int(next))
	metrics.RecordCircuitBreakerTrip(b.url, next.String())
}

// record applies the state table for one call outcome. Must not be called
// while holding any lock the caller needs for the provider call itself.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++
	if err == nil {
		b.totalSuccess++
		switch b.state {
		case StateClosed:
			b.consecutiveFailures = 0
		case StateHalfOpen:
			b.consecutiveHalfOpenOK++
			if b.consecutiveHalfOpenOK >= b.cfg.SuccessThreshold {
				b.transitionTo(StateClosed)
				b.consecutiveFailures = 0
				b.consecutiveHalfOpenOK = 0
			}
		}
		return
	}

	b.totalFailure++
	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionTo(StateOpen)
			b.openedAt = time.Now()
		}
	case StateHalfOpen:
		b.transitionTo(StateOpen)
		b.openedAt = time.Now()
		b.consecutiveHalfOpenOK = 0
	}
}

// State returns the current breaker state, applying the lazy
// Open->HalfOpen transition if the timeout has already elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= time.Duration(b.cfg.TimeoutSeconds)*time.Second {
		b.transitionTo(StateHalfOpen)
		b.consecutiveHalfOpenOK = 0
	}
	return b.state
}

// Stats returns a read-consistent snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:         b.state,
		SuccessCount:  b.totalSuccess,
		FailureCount:  b.totalFailure,
		TotalRequests: b.totalRequests,
	}
}

// Registry holds per-endpoint-URL circuit breakers, created lazily on first
// observation and never pruned within a process lifetime.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers share cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for url, creating one on first observation.
func (r *Registry) Get(url string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[url]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[url]; ok {
		return b
	}
	b = newWithURL(r.cfg, url)
	r.breakers[url] = b
	return b
}

// Remove deletes the breaker for url, e.g. when a replica is retired.
func (r *Registry) Remove(url string) {
	r.mu.Lock()
	delete(r.breakers, url)
	r.mu.Unlock()
}

// State implements the narrow state-query capability the load balancer is
// injected with, without exposing the full registry. Unknown URLs report
// Closed — a breaker is only created on first observation.
func (r *Registry) State(url string) State {
	r.mu.RLock()
	b, ok := r.breakers[url]
	r.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return b.State()
}

// Snapshot returns a map of URL to breaker state for observability.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for url, b := range r.breakers {
		out[url] = b.State().String()
	}
	return out
}
