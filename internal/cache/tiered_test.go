package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestTiered(t *testing.T) (*TieredCache, *InMemoryCache, *InMemoryCache) {
	t.Helper()
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	tc := NewTieredCache(l1, l2, 10*time.Second)
	t.Cleanup(func() { tc.Close() })
	return tc, l1, l2
}

func TestTieredCacheSetWritesBothLayers(t *testing.T) {
	tc, l1, l2 := newTestTiered(t)
	ctx := context.Background()

	if err := tc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	for name, layer := range map[string]Cache{"l1": l1, "l2": l2} {
		got, err := layer.Get(ctx, "k")
		if err != nil {
			t.Fatalf("%s get: %v", name, err)
		}
		if string(got) != "v" {
			t.Fatalf("%s: expected %q, got %q", name, "v", got)
		}
	}
}

func TestTieredCacheBackfillsL1FromL2(t *testing.T) {
	tc, l1, l2 := newTestTiered(t)
	ctx := context.Background()

	// Entry present only in the shared layer, as if a sibling wrote it.
	if err := l2.Set(ctx, "remote", []byte("v"), time.Minute); err != nil {
		t.Fatalf("l2 set: %v", err)
	}

	got, err := tc.Get(ctx, "remote")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("expected %q, got %q", "v", got)
	}
	if _, err := l1.Get(ctx, "remote"); err != nil {
		t.Fatalf("expected L1 backfilled after L2 hit, got %v", err)
	}
}

func TestTieredCacheMissInBothLayers(t *testing.T) {
	tc, _, _ := newTestTiered(t)
	if _, err := tc.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTieredCacheDeleteClearsBothLayers(t *testing.T) {
	tc, l1, l2 := newTestTiered(t)
	ctx := context.Background()

	tc.Set(ctx, "k", []byte("v"), time.Minute)
	if err := tc.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := l1.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected L1 eviction, got %v", err)
	}
	if _, err := l2.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected L2 eviction, got %v", err)
	}
}

func TestTieredCacheExistsChecksBothLayers(t *testing.T) {
	tc, _, l2 := newTestTiered(t)
	ctx := context.Background()

	if ok, err := tc.Exists(ctx, "nope"); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
	l2.Set(ctx, "far-only", []byte("v"), time.Minute)
	if ok, err := tc.Exists(ctx, "far-only"); err != nil || !ok {
		t.Fatalf("expected L2-only key to exist, got ok=%v err=%v", ok, err)
	}
}

func TestTieredCacheDefaultL1TTL(t *testing.T) {
	l1 := NewInMemoryCache()
	l2 := NewInMemoryCache()
	tc := NewTieredCache(l1, l2, 0)
	defer tc.Close()

	ctx := context.Background()
	tc.Set(ctx, "k", []byte("v"), time.Minute)
	if got, err := tc.Get(ctx, "k"); err != nil || string(got) != "v" {
		t.Fatalf("expected round trip with defaulted L1 TTL, got %q err=%v", got, err)
	}
}
