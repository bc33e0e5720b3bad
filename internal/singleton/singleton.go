// Package singleton provides "at most one instance of T per process,"
// keyed by name. It is not a general DI container — only the Resource
// Manager, Reliability Config, and Manifest Fetcher go through it.
package singleton

import "sync"

var (
	fast sync.Map // key -> any, lock-free read path
	slow sync.Mutex
)

// For returns the process-wide instance registered under key, constructing
// it with new() on first call. The fast path reads the map without locking;
// a racing slow path locks, rechecks, and constructs at most once.
func For[T any](key string, new func() T) T {
	if v, ok := fast.Load(key); ok {
		return v.(T)
	}

	slow.Lock()
	defer slow.Unlock()
	if v, ok := fast.Load(key); ok {
		return v.(T)
	}
	v := new()
	fast.Store(key, v)
	return v
}

// Reset drops the instance registered under key, forcing the next For call
// to reconstruct it. Intended for tests.
func Reset(key string) {
	slow.Lock()
	defer slow.Unlock()
	fast.Delete(key)
}

// ResetAll clears the entire registry. Intended for tests.
func ResetAll() {
	slow.Lock()
	defer slow.Unlock()
	fast.Range(func(k, _ any) bool {
		fast.Delete(k)
		return true
	})
}
