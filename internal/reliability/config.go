// Package reliability loads the ReliabilityConfig that parameterizes the
// circuit breaker, load balancer, and retry executor from TETRA_*
// environment variables. A process-global accessor lazy-inits through
// internal/singleton.
package reliability

import (
	"os"
	"strconv"
	"time"

	"github.com/oriys/tetra/internal/circuitbreaker"
	"github.com/oriys/tetra/internal/loadbalancer"
	"github.com/oriys/tetra/internal/retry"
	"github.com/oriys/tetra/internal/singleton"
)

// CircuitBreakerConfig mirrors circuitbreaker.Config plus an enabled flag.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
}

func (c CircuitBreakerConfig) toBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
	}
}

// LoadBalancerConfig mirrors loadbalancer.Strategy plus an enabled flag.
type LoadBalancerConfig struct {
	Enabled  bool
	Strategy loadbalancer.Strategy
}

// RetryConfig mirrors retry.Policy plus an enabled flag.
type RetryConfig struct {
	Enabled     bool
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

func (c RetryConfig) toPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.MaxAttempts
	p.BaseDelay = c.BaseDelay
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	p.Jitter = c.Jitter
	return p
}

// MetricsConfig carries the metrics-emission flag read from
// TETRA_METRICS_ENABLED. Nothing in the reliability runtime reads it: the
// breaker, balancer and dispatcher record metrics whether it is set or not.
type MetricsConfig struct {
	Enabled bool
}

// ReliabilityConfig groups the three reliability-runtime policies plus the
// metrics-emission flag.
type ReliabilityConfig struct {
	CircuitBreaker CircuitBreakerConfig
	LoadBalancer   LoadBalancerConfig
	Retry          RetryConfig
	Metrics        MetricsConfig
}

// BreakerConfig returns the circuitbreaker.Config view of this config.
func (c ReliabilityConfig) BreakerConfig() circuitbreaker.Config {
	return c.CircuitBreaker.toBreakerConfig()
}

// RetryPolicy returns the retry.Policy view of this config.
func (c ReliabilityConfig) RetryPolicy() retry.Policy {
	return c.Retry.toPolicy()
}

// FromEnv loads a ReliabilityConfig from the documented TETRA_* environment
// variables, falling back to each policy's own package defaults for
// anything unset.
func FromEnv() ReliabilityConfig {
	cb := circuitbreaker.DefaultConfig()
	rp := retry.DefaultPolicy()

	cfg := ReliabilityConfig{
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          envBool("TETRA_CIRCUIT_BREAKER_ENABLED", true),
			FailureThreshold: envInt("TETRA_CIRCUIT_BREAKER_FAILURE_THRESHOLD", cb.FailureThreshold),
			SuccessThreshold: envInt("TETRA_CIRCUIT_BREAKER_SUCCESS_THRESHOLD", cb.SuccessThreshold),
			TimeoutSeconds:   envInt("TETRA_CIRCUIT_BREAKER_TIMEOUT_SECONDS", cb.TimeoutSeconds),
		},
		LoadBalancer: LoadBalancerConfig{
			Enabled:  envBool("TETRA_LOAD_BALANCER_ENABLED", true),
			Strategy: loadbalancer.Strategy(envString("TETRA_LB_STRATEGY", string(loadbalancer.RoundRobin))),
		},
		Retry: RetryConfig{
			Enabled:     envBool("TETRA_RETRY_ENABLED", true),
			MaxAttempts: envInt("TETRA_RETRY_MAX_ATTEMPTS", rp.MaxAttempts),
			BaseDelay:   envDuration("TETRA_RETRY_BASE_DELAY", rp.BaseDelay),
			MaxDelay:    rp.MaxDelay,
			Jitter:      rp.Jitter,
		},
		Metrics: MetricsConfig{
			Enabled: envBool("TETRA_METRICS_ENABLED", true),
		},
	}
	return cfg
}

// NewForTest builds a ReliabilityConfig from an explicit struct, bypassing
// environment lookup entirely.
func NewForTest(cfg ReliabilityConfig) ReliabilityConfig { return cfg }

const globalKey = "reliability-config"

// Get returns the process-global ReliabilityConfig, lazily loading it from
// the environment on first call.
func Get() ReliabilityConfig {
	return singleton.For(globalKey, FromEnv)
}

// Set overrides the process-global ReliabilityConfig. Intended for tests
// and explicit startup wiring; resets the singleton registry entry first.
func Set(cfg ReliabilityConfig) {
	singleton.Reset(globalKey)
	singleton.For(globalKey, func() ReliabilityConfig { return cfg })
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
