// Package resourcemanager implements the idempotent reconciler that maps a
// declarative ResourceConfig to a live DeployedResource: registry lookup,
// single-flight coalescing of concurrent deploys for the same resource_id,
// drift detection, and best-effort local+remote persistence.
package resourcemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oriys/tetra/internal/domain"
	"github.com/oriys/tetra/internal/errs"
	"github.com/oriys/tetra/internal/manifest"
	"github.com/oriys/tetra/internal/metrics"
	"github.com/oriys/tetra/internal/persistence"
	"github.com/oriys/tetra/internal/provider"
	"github.com/oriys/tetra/internal/singleton"
	"golang.org/x/sync/singleflight"
)

// InvalidationPublisher announces that a shared-cache key has gone stale.
// cache.CacheInvalidator satisfies it; the Manager only needs the one
// method, so it takes the narrow capability rather than the concrete type.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, key string) error
}

// Outcome classifies how Ensure satisfied a call, used by the Deployment
// Orchestrator to tell a registry hit from a fresh provider round-trip.
type Outcome int

const (
	// Deployed means a provider List/Create round-trip ran (fresh deploy,
	// adopted pre-existing remote, or drift-triggered replacement).
	Deployed Outcome = iota
	// Cached means the registry already held an entry whose config_hash
	// matched; no provider call was made.
	Cached
)

func (o Outcome) String() string {
	if o == Cached {
		return "CACHED"
	}
	return "SUCCESS"
}

// Manager is the singleton Resource Manager. Construct via New or retrieve
// the process-wide instance via Get.
type Manager struct {
	provider     provider.ProviderClient
	envID        string
	stateDir     string
	remote       *persistence.RemoteStore // optional pgx-backed mirror; nil disables the tier
	invalidation InvalidationPublisher    // optional cross-instance cache eviction; nil disables it

	mu       sync.Mutex
	registry map[string]*domain.DeployedResource
	sf       singleflight.Group
}

// New constructs a Manager backed by pc, rehydrating its registry from
// deployments.json under stateDir (created if absent). envID scopes the
// best-effort remote manifest persistence. remote may be nil to disable the
// pgx-backed deployment history mirror.
func New(pc provider.ProviderClient, stateDir, envID string, remote *persistence.RemoteStore) (*Manager, error) {
	dir, err := persistence.StateDir(stateDir)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		provider: pc,
		envID:    envID,
		stateDir: dir,
		remote:   remote,
		registry: make(map[string]*domain.DeployedResource),
	}
	if err := m.rehydrate(); err != nil {
		slog.Warn("resourcemanager: rehydrate failed, starting with empty registry", "error", err)
	}
	return m, nil
}

const globalKey = "resource-manager"

// Get returns the process-wide Manager, lazily constructing it from the
// given arguments on first call; later calls ignore their arguments. Panics only if construction fails in a way startup code
// should have caught earlier (state directory unwritable); callers that
// need explicit error handling should call New directly and wire it instead.
func Get(pc provider.ProviderClient, stateDir, envID string, remote *persistence.RemoteStore) *Manager {
	return singleton.For(globalKey, func() *Manager {
		m, err := New(pc, stateDir, envID, remote)
		if err != nil {
			panic(fmt.Sprintf("resourcemanager: %v", err))
		}
		return m
	})
}

// SetInvalidationPublisher wires an optional publisher that tells sibling
// control-plane instances to evict their cached manifest after this one
// undeploys a resource or replaces a drifted entry.
func (m *Manager) SetInvalidationPublisher(p InvalidationPublisher) {
	m.invalidation = p
}

func (m *Manager) deploymentsPath() string {
	return filepath.Join(m.stateDir, "deployments.json")
}

// Ensure reconciles cfg against the registry: a config_hash match on an
// existing entry is a cache hit; otherwise (absent or drifted) it
// single-flights a provider round-trip so concurrent callers for the same
// resource_id coalesce into exactly one List/Create.
func (m *Manager) Ensure(ctx context.Context, cfg *domain.ResourceConfig) (*domain.DeployedResource, Outcome, error) {
	id := cfg.ResourceID()

	m.mu.Lock()
	if existing, ok := m.registry[id]; ok && existing.ConfigHash == cfg.ConfigHash() {
		m.mu.Unlock()
		metrics.Global().RecordDeployOutcome(id, "cached")
		return existing, Cached, nil
	}
	drifted := false
	if existing, ok := m.registry[id]; ok {
		drifted = true
		slog.Warn("resourcemanager: drift detected, redeploying",
			"resource_id", id, "name", cfg.Name, "stale_hash", existing.ConfigHash, "new_hash", cfg.ConfigHash())
	}
	m.mu.Unlock()

	v, err, _ := m.sf.Do(id, func() (any, error) {
		return m.deploy(ctx, cfg)
	})
	if err != nil {
		metrics.Global().RecordDeployOutcome(id, "failed")
		return nil, Deployed, err
	}
	outcome := "deployed"
	if drifted {
		outcome = "drifted"
		m.publishInvalidation(ctx)
	}
	metrics.Global().RecordDeployOutcome(id, outcome)
	return v.(*domain.DeployedResource), Deployed, nil
}

// publishInvalidation best-effort announces that the shared manifest cache
// is stale. Failure is logged and swallowed, like every other persistence
// side channel here.
func (m *Manager) publishInvalidation(ctx context.Context) {
	if m.invalidation == nil {
		return
	}
	if err := m.invalidation.PublishInvalidation(ctx, manifest.SharedCacheKey); err != nil {
		slog.Warn("resourcemanager: cache invalidation publish failed", "error", err)
	}
}

// deploy runs the provider round-trip for one resource_id. It must only be
// invoked from within m.sf.Do so concurrent callers share one execution.
func (m *Manager) deploy(ctx context.Context, cfg *domain.ResourceConfig) (*domain.DeployedResource, error) {
	id := cfg.ResourceID()

	remotes, err := m.provider.List(ctx, cfg.Kind, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("list remote resources: %w", err)
	}

	var remote domain.RemoteResource
	adopted := false
	for _, r := range remotes {
		if r.Name == cfg.Name && r.Kind == cfg.Kind {
			remote = r
			adopted = true
			break
		}
	}

	if !adopted {
		remote, err = m.provider.Create(ctx, cfg.Kind, cfg.HashedFields())
		if err != nil {
			return nil, fmt.Errorf("create remote resource: %w", err)
		}
	}

	deployed := &domain.DeployedResource{
		ResourceID:  id,
		EndpointID:  remote.ID,
		Name:        remote.Name,
		Kind:        remote.Kind,
		ReplicaURLs: remote.URLs,
		ConfigHash:  cfg.ConfigHash(),
		Config:      *cfg,
		DeployedAt:  time.Now(),
	}

	m.mu.Lock()
	m.registry[id] = deployed
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.persistLocal(snapshot); err != nil {
		slog.Warn("resourcemanager: local persistence failed", "resource_id", id, "error", err)
	}
	m.persistRemoteBestEffort(ctx, deployed)

	return deployed, nil
}

// Get returns a registry entry by resource_id without triggering a deploy.
func (m *Manager) Get(id string) (*domain.DeployedResource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.registry[id]
	return d, ok
}

// Undeploy removes a registry entry and tears down the remote resource,
// returning the provider's error if the teardown fails. It never mutates an entry in place; replacement on drift goes
// through deploy instead.
func (m *Manager) Undeploy(ctx context.Context, id string) error {
	m.mu.Lock()
	d, ok := m.registry[id]
	if ok {
		delete(m.registry, id)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if !ok {
		return errs.ErrNotDeployed
	}
	if err := m.provider.Delete(ctx, d.EndpointID); err != nil {
		return fmt.Errorf("delete remote resource: %w", err)
	}
	if err := m.persistLocal(snapshot); err != nil {
		slog.Warn("resourcemanager: local persistence failed after undeploy", "resource_id", id, "error", err)
	}
	if err := m.remote.DeleteDeployedResource(ctx, id); err != nil {
		slog.Warn("resourcemanager: postgres mirror delete failed", "resource_id", id, "error", err)
	}
	m.publishInvalidation(ctx)
	metrics.Global().RecordUndeploy(id)
	return nil
}

// List returns a snapshot of every currently registered DeployedResource.
func (m *Manager) List() []*domain.DeployedResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DeployedResource, 0, len(m.registry))
	for _, d := range m.registry {
		out = append(out, d)
	}
	return out
}

func (m *Manager) snapshotLocked() map[string]*domain.DeployedResource {
	out := make(map[string]*domain.DeployedResource, len(m.registry))
	for k, v := range m.registry {
		out[k] = v
	}
	return out
}

func (m *Manager) persistLocal(snapshot map[string]*domain.DeployedResource) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deployments: %w", err)
	}
	return persistence.AtomicWriteFile(m.deploymentsPath(), data, 0o644)
}

// persistRemoteBestEffort mirrors the single deployed resource into the
// provider's manifest store. Failure is logged and swallowed: it must never
// mask a successful deploy.
func (m *Manager) persistRemoteBestEffort(ctx context.Context, d *domain.DeployedResource) {
	manifest := domain.EmptyManifest()
	manifest.Resources[d.Name] = domain.ResourceDescriptor{
		EndpointID:  d.EndpointID,
		Name:        d.Name,
		Kind:        d.Kind,
		ReplicaURLs: d.ReplicaURLs,
	}
	if err := m.provider.UpdateManifest(ctx, m.envID, manifest); err != nil {
		slog.Warn("resourcemanager: remote manifest persistence failed", "resource_id", d.ResourceID, "error", err)
	}
	if err := m.remote.UpsertDeployedResource(ctx, d); err != nil {
		slog.Warn("resourcemanager: postgres mirror upsert failed", "resource_id", d.ResourceID, "error", err)
	}
}

func (m *Manager) rehydrate() error {
	data, err := os.ReadFile(m.deploymentsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read deployments file: %w", err)
	}

	var stored map[string]*domain.DeployedResource
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode deployments file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, d := range stored {
		m.registry[id] = d
	}
	return nil
}
