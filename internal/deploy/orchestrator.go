// Package deploy implements bounded-parallelism fan-out over a set of
// declared resources, calling the Resource Manager's Ensure for each and
// collecting per-item results without letting one failure abort its
// siblings.
package deploy

import (
	"context"
	"log/slog"
	"time"

	"github.com/oriys/tetra/internal/domain"
	"github.com/oriys/tetra/internal/resourcemanager"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent is the orchestrator's default fan-out width.
const DefaultMaxConcurrent = 3

// Status classifies one resource's deployment outcome.
type Status string

const (
	StatusCached  Status = "CACHED"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Result is one DeployAll item's outcome.
type Result struct {
	Resource   *domain.ResourceConfig
	Status     Status
	Duration   time.Duration
	EndpointID string
	Err        error
}

// Orchestrator fans DeployAll out across the Resource Manager.
type Orchestrator struct {
	manager *resourcemanager.Manager
}

// New constructs an Orchestrator bound to manager.
func New(manager *resourcemanager.Manager) *Orchestrator {
	return &Orchestrator{manager: manager}
}

// DeployAll runs Ensure for every resource, at most maxConcurrent at a time
// (DefaultMaxConcurrent if <= 0). It never aborts siblings on one failure:
// a failing item is captured into its Result, not returned as an error.
func (o *Orchestrator) DeployAll(ctx context.Context, resources []*domain.ResourceConfig, maxConcurrent int, showProgress bool) []Result {
	if len(resources) == 0 {
		return nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	results := make([]Result, len(resources))

	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	for i, cfg := range resources {
		i, cfg := i, cfg
		g.Go(func() error {
			start := time.Now()
			deployed, outcome, err := o.manager.Ensure(ctx, cfg)
			elapsed := time.Since(start)

			r := Result{Resource: cfg, Duration: elapsed}
			switch {
			case err != nil:
				r.Status = StatusFailed
				r.Err = err
			case outcome == resourcemanager.Cached:
				r.Status = StatusCached
				r.EndpointID = deployed.EndpointID
			default:
				r.Status = StatusSuccess
				r.EndpointID = deployed.EndpointID
			}
			results[i] = r

			if showProgress {
				if err != nil {
					slog.Info("deploy_all: item failed", "name", cfg.Name, "duration", elapsed, "error", err)
				} else {
					slog.Info("deploy_all: item done", "name", cfg.Name, "status", r.Status, "duration", elapsed)
				}
			}
			return nil // never propagate: siblings must keep running
		})
	}
	_ = g.Wait()

	return results
}

// DeployAllBackground spawns DeployAll on a detached goroutine and returns
// immediately. The worker keeps ctx's values but not its cancellation, so a
// caller returning early does not abort provisioning already in flight.
// Failures are logged, not surfaced; the facade's first on-demand Ensure
// call will retry naturally since nothing was registered.
func (o *Orchestrator) DeployAllBackground(ctx context.Context, resources []*domain.ResourceConfig, maxConcurrent int) {
	go func() {
		results := o.DeployAll(context.WithoutCancel(ctx), resources, maxConcurrent, false)
		for _, r := range results {
			if r.Status == StatusFailed {
				slog.Error("deploy_all_background: item failed", "name", r.Resource.Name, "error", r.Err)
			}
		}
	}()
}

// Summarize counts results by status, for terminal/metrics reporting.
func Summarize(results []Result) (succeeded, cached, failed int) {
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			succeeded++
		case StatusCached:
			cached++
		case StatusFailed:
			failed++
		}
	}
	return
}
