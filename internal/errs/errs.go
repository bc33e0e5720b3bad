// Package errs defines the sentinel errors and small error types shared
// across the control plane. Call sites wrap these with fmt.Errorf("...: %w")
// and dispatch with errors.Is/errors.As.
package errs

import (
	"errors"
	"strconv"
)

var (
	// ErrConfigValidation is returned when a ResourceConfig fails construction
	// validation. The caller must fix the input; not recoverable.
	ErrConfigValidation = errors.New("config validation failed")

	// ErrCredentialMissing is returned when a ProviderClient cannot be
	// constructed for lack of credentials.
	ErrCredentialMissing = errors.New("provider credential missing")

	// ErrProviderUnavailable marks a transient provider failure; the retry
	// executor is expected to retry it.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderRejected marks a non-retryable provider rejection (4xx
	// outside the retry set); surfaced to the caller immediately.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrCircuitOpen is returned by the circuit breaker when a call is
	// failed fast without invoking the wrapped function.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrRetryExhausted is returned after the retry executor's configured
	// max_attempts have failed with a retryable error.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrAllReplicasUnhealthy is returned by the load balancer when every
	// candidate endpoint is filtered out.
	ErrAllReplicasUnhealthy = errors.New("all replicas unhealthy")

	// ErrNotDeployed is returned by resource operations that require an
	// existing deployed resource id.
	ErrNotDeployed = errors.New("resource not deployed")

	// ErrDriftDetected is logged, not raised, when a registry entry's
	// config_hash no longer matches the submitted config. Exported so
	// callers that want to observe drift explicitly may use errors.Is
	// against values wrapped with it, though the Resource Manager itself
	// recovers from drift internally.
	ErrDriftDetected = errors.New("configuration drift detected")
)

// RetryExhaustedError wraps the last attempt's cause alongside the attempt
// count, giving callers more than a bare sentinel to log.
type RetryExhaustedError struct {
	Attempts int
	Cause    error
}

func (e *RetryExhaustedError) Error() string {
	return "retry attempts exhausted after " + strconv.Itoa(e.Attempts) + " attempts: " + e.Cause.Error()
}

func (e *RetryExhaustedError) Unwrap() error {
	return errors.Join(ErrRetryExhausted, e.Cause)
}
