// Package manifest implements the TTL-cached name->endpoint directory: the
// provider is the source of truth, a local file is the fallback, and a
// single in-flight refresh is shared by concurrent callers.
package manifest

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oriys/tetra/internal/cache"
	"github.com/oriys/tetra/internal/domain"
	"github.com/oriys/tetra/internal/lru"
	"github.com/oriys/tetra/internal/metrics"
	"github.com/oriys/tetra/internal/persistence"
	"github.com/oriys/tetra/internal/provider"
	"github.com/oriys/tetra/internal/singleton"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the manifest cache's default lifetime.
const DefaultTTL = 60 * time.Second

// maxCachedManifests bounds the in-memory cache. A process normally talks
// to one mothership, occasionally a handful; the bound only matters if a
// caller cycles through many ids.
const maxCachedManifests = 16

// SharedCacheKey is the key the fetcher stores the manifest under in the
// shared cache tier. Invalidation publishers announce this key when the
// manifest changes so sibling instances evict their local copy.
const SharedCacheKey = "manifest"

type cachedManifest struct {
	manifest *domain.Manifest
	at       time.Time
}

// Fetcher is the singleton Manifest Fetcher.
type Fetcher struct {
	provider provider.ProviderClient
	ttl      time.Duration
	path     string
	shared   cache.Cache // optional cross-process L2 (e.g. Redis); may be nil

	cached *lru.Cache[string, cachedManifest] // keyed by mothership id
	sf     singleflight.Group
}

// New constructs a Fetcher backed by pc, caching under stateDir's
// flash_manifest.json. shared may be nil to disable the cross-process tier.
func New(pc provider.ProviderClient, stateDir string, ttl time.Duration, shared cache.Cache) (*Fetcher, error) {
	dir, err := persistence.StateDir(stateDir)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Fetcher{
		provider: pc,
		ttl:      ttl,
		path:     filepath.Join(dir, "flash_manifest.json"),
		shared:   shared,
		cached:   lru.New[string, cachedManifest](maxCachedManifests),
	}, nil
}

const globalKey = "manifest-fetcher"

// Get returns the process-wide Fetcher, constructing it on first call.
func Get(pc provider.ProviderClient, stateDir string, ttl time.Duration, shared cache.Cache) *Fetcher {
	return singleton.For(globalKey, func() *Fetcher {
		f, err := New(pc, stateDir, ttl, shared)
		if err != nil {
			panic("manifest: " + err.Error())
		}
		return f
	})
}

// GetManifest returns the cached manifest if unexpired, otherwise pulls from
// the provider (falling back to the local file, then an empty manifest on
// total failure). Concurrent callers racing a refresh share one pull.
func (f *Fetcher) GetManifest(ctx context.Context, mothershipID string) (*domain.Manifest, error) {
	if m, ok := f.freshFromCache(mothershipID); ok {
		return m, nil
	}

	v, err, _ := f.sf.Do(mothershipID, func() (any, error) {
		if m, ok := f.freshFromCache(mothershipID); ok {
			return m, nil
		}
		return f.refresh(ctx, mothershipID), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Manifest), nil
}

func (f *Fetcher) freshFromCache(mothershipID string) (*domain.Manifest, bool) {
	entry, ok := f.cached.Get(mothershipID)
	if ok && time.Since(entry.at) < f.ttl {
		return entry.manifest, true
	}
	return nil, false
}

// refresh performs the network pull + local-file fallback chain. It never
// returns an error: the worst case is a well-formed empty manifest.
func (f *Fetcher) refresh(ctx context.Context, mothershipID string) *domain.Manifest {
	m, err := f.provider.FetchManifest(ctx, mothershipID)
	if err == nil {
		f.overwriteLocal(m)
		f.setCache(mothershipID, m)
		metrics.Global().RecordManifestFetch(false)
		return m
	}

	slog.Warn("manifest: provider pull failed, falling back to local copy", "error", err)

	if local, ok := f.loadLocal(); ok {
		f.setCache(mothershipID, local)
		metrics.Global().RecordManifestFetch(true)
		return local
	}

	empty := domain.EmptyManifest()
	f.setCache(mothershipID, empty)
	metrics.Global().RecordManifestFetch(true)
	return empty
}

func (f *Fetcher) setCache(mothershipID string, m *domain.Manifest) {
	f.cached.Set(mothershipID, cachedManifest{manifest: m, at: time.Now()})
}

// Invalidate clears the in-memory cache, forcing the next GetManifest to
// refresh.
func (f *Fetcher) Invalidate() {
	f.cached.Clear()
}

func (f *Fetcher) overwriteLocal(m *domain.Manifest) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Warn("manifest: marshal manifest failed", "error", err)
		return
	}
	if err := persistence.AtomicWriteFile(f.path, data, 0o644); err != nil {
		slog.Warn("manifest: local overwrite failed", "error", err)
	}
	if f.shared != nil {
		if err := f.shared.Set(context.Background(), SharedCacheKey, data, f.ttl); err != nil {
			slog.Warn("manifest: shared cache write failed", "error", err)
		}
	}
}

func (f *Fetcher) loadLocal() (*domain.Manifest, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if f.shared != nil {
			if shared, serr := f.shared.Get(context.Background(), SharedCacheKey); serr == nil {
				data = shared
			} else {
				return nil, false
			}
		} else {
			return nil, false
		}
	}

	var m domain.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("manifest: local file corrupt", "error", err)
		return nil, false
	}
	return &m, true
}
