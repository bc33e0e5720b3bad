// Package invoke implements the Remote Invocation Facade: binding an
// annotated function or class to its ResourceConfig and dispatching each
// call through the reliability runtime (load balancer -> circuit breaker ->
// retry -> provider).
//
// Binding is an explicit two-step API: RegisterRemote captures a function's
// configuration once, and RemoteBinding.Call is the per-invocation entry
// point.
package invoke

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/tetra/internal/circuitbreaker"
	"github.com/oriys/tetra/internal/domain"
	"github.com/oriys/tetra/internal/errs"
	"github.com/oriys/tetra/internal/loadbalancer"
	"github.com/oriys/tetra/internal/logging"
	"github.com/oriys/tetra/internal/metrics"
	"github.com/oriys/tetra/internal/observability"
	"github.com/oriys/tetra/internal/provider"
	"github.com/oriys/tetra/internal/reliability"
	"github.com/oriys/tetra/internal/resourcemanager"
	"github.com/oriys/tetra/internal/retry"
)

// DefaultInvokeTimeout bounds a single provider.Invoke call when the caller
// supplies no deadline of its own.
const DefaultInvokeTimeout = 30 * time.Second

// Dispatcher wires one process's reliability runtime (load balancer,
// circuit breaker registry, retry policy) to the Resource Manager and
// ProviderClient, and is shared by every RemoteBinding/RemoteSession built
// from it.
type Dispatcher struct {
	manager  *resourcemanager.Manager
	client   provider.ProviderClient
	balancer *loadbalancer.Balancer
	breakers *circuitbreaker.Registry
	policy   retry.Policy
	timeout  time.Duration
}

// NewDispatcher builds a Dispatcher from the given ReliabilityConfig,
// breaking the circuit-breaker/load-balancer cyclic reference by making the
// breaker registry a leaf the balancer queries through its narrow
// StateQuerier capability.
func NewDispatcher(manager *resourcemanager.Manager, client provider.ProviderClient, cfg reliability.ReliabilityConfig, timeout time.Duration) *Dispatcher {
	breakers := circuitbreaker.NewRegistry(cfg.BreakerConfig())

	var querier loadbalancer.StateQuerier
	if cfg.LoadBalancer.Enabled {
		querier = breakers
	}
	balancer := loadbalancer.New(cfg.LoadBalancer.Strategy, querier)

	policy := cfg.RetryPolicy()
	if !cfg.Retry.Enabled {
		policy.MaxAttempts = 1
	}

	if timeout <= 0 {
		timeout = DefaultInvokeTimeout
	}

	return &Dispatcher{
		manager:  manager,
		client:   client,
		balancer: balancer,
		breakers: breakers,
		policy:   policy,
		timeout:  timeout,
	}
}

// Breakers exposes the registry for observability (metrics snapshots).
func (d *Dispatcher) Breakers() *circuitbreaker.Registry { return d.breakers }

// dispatch is the common tail of both function and session calls: ensure
// the endpoint, pick a healthy replica, bracket it with in-flight
// accounting, and run the provider call through the breaker+retry pipeline.
func (d *Dispatcher) dispatch(ctx context.Context, cfg *domain.ResourceConfig, envelope domain.CallEnvelope) ([]byte, error) {
	ctx, span := observability.StartSpan(ctx, "tetra.dispatch",
		observability.AttrResourceName.String(cfg.Name),
		observability.AttrResourceID.String(cfg.ResourceID()),
		observability.AttrResourceKind.String(string(cfg.Kind)),
	)
	defer span.End()

	deployed, _, err := d.manager.Ensure(ctx, cfg)
	if err != nil {
		observability.SetSpanError(span, err)
		return nil, fmt.Errorf("ensure endpoint for %s: %w", cfg.Name, err)
	}

	url, ok := d.balancer.Select(deployed.ReplicaURLs)
	if !ok {
		err := fmt.Errorf("%w: resource %s", errs.ErrAllReplicasUnhealthy, cfg.Name)
		observability.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(observability.AttrEndpoint.String(url))

	d.balancer.RecordRequest(url)
	defer d.balancer.RecordRequestComplete(url)

	breaker := d.breakers.Get(url)
	policy := d.policy
	policy.CircuitBreaker = breaker

	start := time.Now()
	attempts := 0
	out, err := retry.Do(ctx, func(ctx context.Context) ([]byte, error) {
		if attempts > 0 {
			metrics.Global().RecordRetryAttempt(cfg.ResourceID())
		}
		attempts++
		var result []byte
		execErr := breaker.Execute(func() error {
			out, err := d.client.Invoke(ctx, url, envelope, d.timeout)
			result = out
			return err
		})
		return result, execErr
	}, policy)

	durationMs := time.Since(start).Milliseconds()
	metrics.Global().RecordInvocationWithDetails(cfg.ResourceID(), url, durationMs, err == nil)
	span.SetAttributes(observability.AttrDurationMs.Int64(durationMs), observability.AttrAttempt.Int(attempts))
	if err != nil {
		observability.SetSpanError(span, err)
	} else {
		observability.SetSpanOK(span)
	}

	logEntry := &logging.RequestLog{
		RequestID:  uuid.NewString(),
		TraceID:    observability.GetTraceID(ctx),
		SpanID:     observability.GetSpanID(ctx),
		Resource:   cfg.Name,
		ResourceID: cfg.ResourceID(),
		Endpoint:   url,
		DurationMs: durationMs,
		Success:    err == nil,
		InputSize:  len(envelope.Payload),
		OutputSize: len(out),
		Retries:    attempts - 1,
	}
	if err != nil {
		logEntry.Error = err.Error()
	}
	logging.Default().Log(logEntry)

	return out, err
}
