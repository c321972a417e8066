package peer

import (
	"testing"
	"time"
)

func TestPreferredPicksLowestLatencyAmongLive(t *testing.T) {
	ps := NewPathSet()
	now := time.Now()
	ps.Update("slow", now, 100*time.Millisecond)
	ps.Update("fast", now, 10*time.Millisecond)
	ps.Update("medium", now, 50*time.Millisecond)

	best, ok := ps.Preferred(now)
	if !ok {
		t.Fatal("expected a preferred path")
	}
	if best.Address != "fast" {
		t.Fatalf("Preferred = %q, want %q", best.Address, "fast")
	}
}

func TestPreferredPrefersLiveOverStaleLowLatency(t *testing.T) {
	ps := NewPathSet()
	now := time.Now()
	ps.Update("stale-fast", now.Add(-time.Hour), 1*time.Millisecond)
	ps.Update("live-slow", now, 200*time.Millisecond)

	best, ok := ps.Preferred(now)
	if !ok {
		t.Fatal("expected a preferred path")
	}
	if best.Address != "live-slow" {
		t.Fatalf("Preferred = %q, want the live path", best.Address)
	}
}

func TestPreferredFallsBackToMostRecentWithNoLatency(t *testing.T) {
	ps := NewPathSet()
	base := time.Now()
	ps.Update("older", base, -1)
	ps.Update("newer", base.Add(time.Second), -1)

	best, ok := ps.Preferred(base.Add(time.Second))
	if !ok {
		t.Fatal("expected a preferred path")
	}
	if best.Address != "newer" {
		t.Fatalf("Preferred = %q, want %q", best.Address, "newer")
	}
}

func TestPreferredEmpty(t *testing.T) {
	ps := NewPathSet()
	if _, ok := ps.Preferred(time.Now()); ok {
		t.Fatal("expected no preferred path on an empty set")
	}
}

func TestRemove(t *testing.T) {
	ps := NewPathSet()
	now := time.Now()
	ps.Update("a", now, 0)
	ps.Remove("a")
	if _, ok := ps.Preferred(now); ok {
		t.Fatal("expected no preferred path after removing the only one")
	}
}
