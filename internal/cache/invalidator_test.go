package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// The Pub/Sub round trip needs a live Redis; these tests cover the
// lifecycle paths that don't.

func TestCacheInvalidatorCloseIsIdempotent(t *testing.T) {
	local := NewInMemoryCache()
	defer local.Close()

	ci := NewCacheInvalidator(local, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	if err := ci.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ci.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestCacheInvalidatorStartStopsOnContextCancel(t *testing.T) {
	local := NewInMemoryCache()
	defer local.Close()

	ci := NewCacheInvalidator(local, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	defer ci.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ci.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
