package cache

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 30 * time.Second

// InMemoryCache is the process-local Cache backend, used on its own for
// single-instance runs and as the L1 of a TieredCache. Expired entries are
// dropped lazily on read and swept periodically in the background.
type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]memEntry
	stop  chan struct{}
	once  sync.Once
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// NewInMemoryCache builds an InMemoryCache and starts its sweep goroutine.
// Call Close to stop it.
func NewInMemoryCache() *InMemoryCache {
	c := &InMemoryCache{
		items: make(map[string]memEntry),
		stop:  make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !e.live(time.Now()) {
		return nil, ErrNotFound
	}
	// Hand back a copy so callers can't mutate the stored value.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	if c.items != nil {
		c.items[key] = memEntry{value: stored, expiresAt: expiresAt}
	}
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	return ok && e.live(time.Now()), nil
}

func (c *InMemoryCache) Ping(context.Context) error { return nil }

// Close stops the sweep goroutine and drops all entries. Safe to call more
// than once.
func (c *InMemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
	return nil
}

func (c *InMemoryCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, e := range c.items {
				if !e.live(now) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
