package manifest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oriys/tetra/internal/domain"
	"github.com/oriys/tetra/internal/provider"
)

type fakeManifestProvider struct {
	mu        sync.Mutex
	fetchFn   func() (*domain.Manifest, error)
	fetchCnt  int32
	lastEnvID string
}

func (f *fakeManifestProvider) List(context.Context, domain.ResourceKind, string) ([]domain.RemoteResource, error) {
	return nil, nil
}

func (f *fakeManifestProvider) Create(context.Context, domain.ResourceKind, map[string]any) (domain.RemoteResource, error) {
	return domain.RemoteResource{}, nil
}

func (f *fakeManifestProvider) Delete(context.Context, string) error { return nil }

func (f *fakeManifestProvider) Invoke(context.Context, string, domain.CallEnvelope, time.Duration) ([]byte, error) {
	return nil, nil
}

func (f *fakeManifestProvider) FetchManifest(_ context.Context, mothershipID string) (*domain.Manifest, error) {
	atomic.AddInt32(&f.fetchCnt, 1)
	f.mu.Lock()
	f.lastEnvID = mothershipID
	f.mu.Unlock()
	return f.fetchFn()
}

func (f *fakeManifestProvider) UpdateManifest(context.Context, string, *domain.Manifest) error { return nil }

func sampleManifest(name string) *domain.Manifest {
	m := domain.EmptyManifest()
	m.Resources[name] = domain.ResourceDescriptor{EndpointID: "ep-1", Name: name, Kind: domain.GPULive, ReplicaURLs: []string{"http://x"}}
	return m
}

func TestGetManifestUsesFreshCacheWithoutRefetch(t *testing.T) {
	fp := &fakeManifestProvider{fetchFn: func() (*domain.Manifest, error) { return sampleManifest("a"), nil }}
	f, err := New(fp, t.TempDir(), time.Minute, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	if _, err := f.GetManifest(context.Background(), "env-1"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := f.GetManifest(context.Background(), "env-1"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if got := atomic.LoadInt32(&fp.fetchCnt); got != 1 {
		t.Fatalf("expected 1 provider fetch within TTL, got %d", got)
	}
}

func TestGetManifestFallsBackToLocalOnProviderFailure(t *testing.T) {
	dir := t.TempDir()
	okProvider := &fakeManifestProvider{fetchFn: func() (*domain.Manifest, error) { return sampleManifest("cached-one"), nil }}
	f1, err := New(okProvider, dir, time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, err := f1.GetManifest(context.Background(), "env-1"); err != nil {
		t.Fatalf("warm local cache: %v", err)
	}

	failingProvider := &fakeManifestProvider{fetchFn: func() (*domain.Manifest, error) {
		return nil, provider.ErrNotImplemented
	}}
	f2, err := New(failingProvider, dir, time.Minute, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	m, err := f2.GetManifest(context.Background(), "env-1")
	if err != nil {
		t.Fatalf("expected fallback success, got error: %v", err)
	}
	if _, ok := m.Resources["cached-one"]; !ok {
		t.Fatalf("expected manifest recovered from local file, got %+v", m)
	}

	if _, err := f2.GetManifest(context.Background(), "env-1"); err != nil {
		t.Fatalf("second fetch within TTL: %v", err)
	}
	if got := atomic.LoadInt32(&failingProvider.fetchCnt); got != 1 {
		t.Fatalf("expected the fallback result to be TTL-cached (1 provider attempt), got %d", got)
	}
}

func TestGetManifestReturnsEmptyWhenNoLocalFallback(t *testing.T) {
	fp := &fakeManifestProvider{fetchFn: func() (*domain.Manifest, error) {
		return nil, errors.New("upstream unavailable")
	}}
	f, err := New(fp, t.TempDir(), time.Minute, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	m, err := f.GetManifest(context.Background(), "env-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(m.Resources) != 0 {
		t.Fatalf("expected empty manifest, got %+v", m)
	}
}

func TestGetManifestConcurrentCallsShareOneRefresh(t *testing.T) {
	var calls int32
	fp := &fakeManifestProvider{fetchFn: func() (*domain.Manifest, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return sampleManifest("concurrent"), nil
	}}
	f, err := New(fp, t.TempDir(), time.Minute, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.GetManifest(context.Background(), "env-1")
			errs[i] = err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 provider fetch across concurrent callers, got %d", got)
	}
}

func TestInvalidateForcesRefresh(t *testing.T) {
	fp := &fakeManifestProvider{fetchFn: func() (*domain.Manifest, error) { return sampleManifest("x"), nil }}
	f, err := New(fp, t.TempDir(), time.Minute, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, err := f.GetManifest(context.Background(), "env-1"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	f.Invalidate()
	if _, err := f.GetManifest(context.Background(), "env-1"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if got := atomic.LoadInt32(&fp.fetchCnt); got != 2 {
		t.Fatalf("expected invalidate to force a second fetch, got %d calls", got)
	}
}
