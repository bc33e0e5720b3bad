package lru

import "testing"

func TestCache_SetAndGet(t *testing.T) {
	c := New[string, int](3)
	c.Set("a", 1)

	v, ok := c.Get("a")
	if !ok || v != 1 {
		t.Fatalf("expected (1, true), got (%d, %v)", v, ok)
	}
}

func TestCache_GetMissing(t *testing.T) {
	c := New[string, int](3)
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss")
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts "a"

	if c.Contains("a") {
		t.Fatalf("expected \"a\" evicted")
	}
	if !c.Contains("b") || !c.Contains("c") {
		t.Fatalf("expected \"b\" and \"c\" retained")
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")     // touch a, making b the least-recent
	c.Set("c", 3) // should evict b, not a

	if !c.Contains("a") {
		t.Fatalf("expected \"a\" retained after touch")
	}
	if c.Contains("b") {
		t.Fatalf("expected \"b\" evicted")
	}
}

func TestCache_RetainsMostRecentMaxSizeKeys(t *testing.T) {
	c := New[int, int](3)
	for i := 0; i < 10; i++ {
		c.Set(i, i*i)
	}

	if c.Len() != 3 {
		t.Fatalf("expected len 3, got %d", c.Len())
	}
	for _, k := range []int{7, 8, 9} {
		if !c.Contains(k) {
			t.Fatalf("expected key %d retained", k)
		}
	}
}

func TestCache_ClearEmpties(t *testing.T) {
	c := New[string, int](3)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, got len %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss after Clear")
	}
}
