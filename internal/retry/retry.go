// Package retry wraps a call with jittered exponential backoff over a
// retryable-error predicate.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"syscall"
	"time"

	"github.com/oriys/tetra/internal/circuitbreaker"
	"github.com/oriys/tetra/internal/errs"
)

// StatusError is implemented by provider errors that carry an HTTP-like
// status code, letting the retry executor consult RetryableStatusCodes.
type StatusError interface {
	error
	StatusCode() int
}

// Policy enumerates the retry executor's tuning parameters.
type Policy struct {
	MaxAttempts             int
	BaseDelay               time.Duration
	MaxDelay                time.Duration
	Jitter                  float64 // in [0,1]
	RetryableErrorPredicate func(error) bool
	RetryableStatusCodes    map[int]bool
	CircuitBreaker          *circuitbreaker.Breaker // optional
}

// DefaultRetryableStatusCodes is the default set of HTTP statuses worth
// retrying: request timeouts, rate limiting, and 5xx server errors.
func DefaultRetryableStatusCodes() map[int]bool {
	return map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}
}

// DefaultPolicy returns sane defaults: 3 attempts, 200ms base delay, 10s cap,
// 20% jitter, network-timeout/connection-reset predicate, the default
// status-code retry set.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:             3,
		BaseDelay:               200 * time.Millisecond,
		MaxDelay:                10 * time.Second,
		Jitter:                  0.2,
		RetryableErrorPredicate: IsTransient,
		RetryableStatusCodes:    DefaultRetryableStatusCodes(),
	}
}

// IsTransient is the default retryable-error predicate: network timeouts,
// connection resets, and anything wrapping ErrProviderUnavailable.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errs.ErrProviderUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return true
	}
	return false
}

func (p Policy) retryable(err error) bool {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		codes := p.RetryableStatusCodes
		if codes == nil {
			codes = DefaultRetryableStatusCodes()
		}
		return codes[statusErr.StatusCode()]
	}
	predicate := p.RetryableErrorPredicate
	if predicate == nil {
		predicate = IsTransient
	}
	return predicate(err)
}

// Do runs fn with jittered exponential backoff per policy. Attempt 1 runs
// immediately; between attempt i and i+1 it sleeps
// min(MaxDelay, BaseDelay*2^i) * (1 + U(-Jitter, +Jitter)). A non-retryable
// error is returned immediately without further attempts. After
// MaxAttempts retryable failures it returns a *errs.RetryExhaustedError
// wrapping the last cause. ctx cancellation aborts between attempts; an
// in-progress call is allowed to finish or time out on its own.
func Do[T any](ctx context.Context, fn func(context.Context) (T, error), policy Policy) (T, error) {
	var zero T
	var lastErr error

	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPolicy().MaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if policy.CircuitBreaker != nil && policy.CircuitBreaker.State() == circuitbreaker.StateOpen {
				return zero, errs.ErrCircuitOpen
			}
			delay := backoffDelay(policy, attempt-1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !policy.retryable(err) {
			return zero, err
		}
	}

	return zero, &errs.RetryExhaustedError{Attempts: maxAttempts, Cause: lastErr}
}

// backoffDelay computes min(maxDelay, baseDelay*2^attemptIndex) scaled by
// (1 + jitterSigned), jitterSigned drawn uniformly from [-jitter, +jitter].
func backoffDelay(policy Policy, attemptIndex int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = DefaultPolicy().BaseDelay
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultPolicy().MaxDelay
	}

	raw := base * time.Duration(1<<uint(minInt(attemptIndex, 62)))
	if raw > maxDelay || raw <= 0 {
		raw = maxDelay
	}

	jitter := policy.Jitter
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	jitterSigned := (rand.Float64()*2 - 1) * jitter

	scaled := float64(raw) * (1 + jitterSigned)
	if scaled < 0 {
		scaled = 0
	}
	return time.Duration(scaled)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
