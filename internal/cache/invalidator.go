package cache

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
)

// InvalidationChannel is the Redis Pub/Sub channel for cache invalidation.
// A control-plane node that redeploys a resource or rewrites the manifest
// publishes the affected key here; every subscribed node evicts it from its
// local L1 immediately instead of waiting out the TTL.
const InvalidationChannel = "tetra:cache:invalidate"

// CacheInvalidator subscribes to InvalidationChannel and evicts published
// keys from a local cache — the L1 of a tiered setup.
type CacheInvalidator struct {
	local  Cache
	client *redis.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// NewCacheInvalidator wires local eviction to client's Pub/Sub. Call Start
// on its own goroutine.
func NewCacheInvalidator(local Cache, client *redis.Client) *CacheInvalidator {
	return &CacheInvalidator{local: local, client: client}
}

// Start subscribes and blocks, evicting each published key, until ctx is
// cancelled or Close is called.
func (ci *CacheInvalidator) Start(ctx context.Context) {
	subCtx, cancel := context.WithCancel(ctx)
	ci.mu.Lock()
	ci.cancel = cancel
	ci.mu.Unlock()

	pubsub := ci.client.Subscribe(subCtx, InvalidationChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = ci.local.Delete(subCtx, msg.Payload)
		}
	}
}

// PublishInvalidation announces that key's cached value is stale.
func (ci *CacheInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	return ci.client.Publish(ctx, InvalidationChannel, key).Err()
}

// Close stops the listener. Idempotent.
func (ci *CacheInvalidator) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.closed {
		return nil
	}
	ci.closed = true
	if ci.cancel != nil {
		ci.cancel()
	}
	return nil
}
