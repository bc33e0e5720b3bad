package loadbalancer

import (
	"testing"

	"github.com/oriys/tetra/internal/circuitbreaker"
)

type fakeStates struct {
	open map[string]bool
}

func (f fakeStates) State(url string) circuitbreaker.State {
	if f.open[url] {
		return circuitbreaker.StateOpen
	}
	return circuitbreaker.StateClosed
}

func TestRoundRobin_EvenDistribution(t *testing.T) {
	b := New(RoundRobin, nil)
	endpoints := []string{"a", "b", "c"}

	counts := map[string]int{}
	for i := 0; i < 30; i++ {
		url, ok := b.Select(endpoints)
		if !ok {
			t.Fatal("expected selection")
		}
		counts[url]++
	}

	for _, e := range endpoints {
		if counts[e] != 10 {
			t.Fatalf("expected endpoint %q selected 10 times, got %d", e, counts[e])
		}
	}
}

func TestRoundRobin_FiltersUnhealthy(t *testing.T) {
	// Endpoints [A,B,C] with A's breaker OPEN: 6 round-robin selections
	// return exactly [B,C,B,C,B,C].
	states := fakeStates{open: map[string]bool{"A": true}}
	b := New(RoundRobin, states)
	endpoints := []string{"A", "B", "C"}

	want := []string{"B", "C", "B", "C", "B", "C"}
	for i, w := range want {
		got, ok := b.Select(endpoints)
		if !ok {
			t.Fatalf("selection %d: expected ok", i)
		}
		if got != w {
			t.Fatalf("selection %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestSelect_AllUnhealthyReturnsNotOK(t *testing.T) {
	states := fakeStates{open: map[string]bool{"a": true, "b": true}}
	b := New(RoundRobin, states)

	if _, ok := b.Select([]string{"a", "b"}); ok {
		t.Fatal("expected no selection when all endpoints unhealthy")
	}
}

func TestLeastConnections_PicksMinimum(t *testing.T) {
	b := New(LeastConnections, nil)
	endpoints := []string{"a", "b", "c"}

	b.RecordRequest("a")
	b.RecordRequest("a")
	b.RecordRequest("b")

	got, ok := b.Select(endpoints)
	if !ok {
		t.Fatal("expected selection")
	}
	if got != "c" {
		t.Fatalf("expected \"c\" (0 in-flight), got %q", got)
	}
}

func TestRecordRequestComplete_ClampsAtZero(t *testing.T) {
	b := New(LeastConnections, nil)
	b.RecordRequestComplete("a")
	if b.InFlight("a") != 0 {
		t.Fatalf("expected in-flight clamped at 0, got %d", b.InFlight("a"))
	}
}

func TestRandom_AlwaysFromCandidateSet(t *testing.T) {
	b := New(Random, nil)
	endpoints := []string{"a", "b", "c"}
	allowed := map[string]bool{"a": true, "b": true, "c": true}

	for i := 0; i < 20; i++ {
		got, ok := b.Select(endpoints)
		if !ok || !allowed[got] {
			t.Fatalf("unexpected selection %q", got)
		}
	}
}
