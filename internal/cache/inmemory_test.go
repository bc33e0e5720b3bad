package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryCacheRoundTrip(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("expected %q, got %q", "v", got)
	}

	if _, err := c.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for absent key, got %v", err)
	}
}

func TestInMemoryCacheTTLExpiry(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := c.Get(ctx, "short"); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}

	// Zero TTL entries never expire.
	if err := c.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("set zero ttl: %v", err)
	}
	if ok, _ := c.Exists(ctx, "forever"); !ok {
		t.Fatal("expected zero-TTL entry to persist")
	}
}

func TestInMemoryCacheDeleteAndExists(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if ok, err := c.Exists(ctx, "k"); err != nil || !ok {
		t.Fatalf("expected key present, got ok=%v err=%v", ok, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Fatal("expected key absent after delete")
	}
	if err := c.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("deleting an absent key must not error, got %v", err)
	}
}

func TestInMemoryCacheCopiesValues(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()

	src := []byte("immutable")
	c.Set(ctx, "iso", src, time.Minute)
	src[0] = 'X'

	got, err := c.Get(ctx, "iso")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "immutable" {
		t.Fatal("stored value must not alias the caller's slice")
	}

	got[0] = 'Y'
	again, _ := c.Get(ctx, "iso")
	if string(again) != "immutable" {
		t.Fatal("returned value must not alias the stored slice")
	}
}

func TestInMemoryCacheCloseIsIdempotent(t *testing.T) {
	c := NewInMemoryCache()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	// Writes after close are dropped, not panicking.
	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set after close: %v", err)
	}
}
