package syncs

import (
	"sync"
	"testing"
)

func newIntMap() *ShardedMap[int, string] {
	return NewShardedMap[int, string](8, func(k int) int { return k % 8 })
}

func TestSetGetDelete(t *testing.T) {
	m := newIntMap()
	if grew := m.Set(1, "a"); !grew {
		t.Fatal("expected map to grow on first insert")
	}
	if grew := m.Set(1, "b"); grew {
		t.Fatal("expected map not to grow when overwriting an existing key")
	}
	v, ok := m.GetOk(1)
	if !ok || v != "b" {
		t.Fatalf("GetOk = %q, %v", v, ok)
	}
	if !m.Contains(1) {
		t.Fatal("Contains false for a key just set")
	}
	if !m.Delete(1) {
		t.Fatal("Delete should report the key was present")
	}
	if m.Contains(1) {
		t.Fatal("Contains true after Delete")
	}
}

func TestMutateSizeDelta(t *testing.T) {
	m := newIntMap()
	delta := m.Mutate(1, func(old string, existed bool) (string, bool) {
		if existed {
			t.Fatal("key should not exist yet")
		}
		return "x", true
	})
	if delta != 1 {
		t.Fatalf("size delta on insert = %d, want 1", delta)
	}

	delta = m.Mutate(1, func(old string, existed bool) (string, bool) {
		if !existed || old != "x" {
			t.Fatalf("expected existing value %q, got %q existed=%v", "x", old, existed)
		}
		return "y", true
	})
	if delta != 0 {
		t.Fatalf("size delta on update = %d, want 0", delta)
	}

	delta = m.Mutate(1, func(old string, existed bool) (string, bool) {
		return "", false
	})
	if delta != -1 {
		t.Fatalf("size delta on delete = %d, want -1", delta)
	}
	if m.Contains(1) {
		t.Fatal("key should be gone after Mutate returned keep=false")
	}
}

func TestLenAcrossShards(t *testing.T) {
	m := newIntMap()
	for i := 0; i < 100; i++ {
		m.Set(i, "v")
	}
	if got := m.Len(); got != 100 {
		t.Fatalf("Len() = %d, want 100", got)
	}
}

func TestRangeVisitsEveryEntry(t *testing.T) {
	m := newIntMap()
	want := map[int]string{}
	for i := 0; i < 50; i++ {
		m.Set(i, "v")
		want[i] = "v"
	}
	got := map[int]string{}
	m.Range(func(k int, v string) { got[k] = v })
	if len(got) != len(want) {
		t.Fatalf("Range visited %d entries, want %d", len(got), len(want))
	}
}

func TestDeleteFunc(t *testing.T) {
	m := newIntMap()
	for i := 0; i < 20; i++ {
		m.Set(i, "v")
	}
	m.DeleteFunc(func(k int, v string) bool { return k%2 == 0 })
	if m.Len() != 10 {
		t.Fatalf("Len() after DeleteFunc = %d, want 10", m.Len())
	}
	for i := 0; i < 20; i += 2 {
		if m.Contains(i) {
			t.Fatalf("even key %d should have been deleted", i)
		}
	}
}

func TestConcurrentDistinctShardsDontBlock(t *testing.T) {
	m := newIntMap()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Set(base+j*8, "v")
			}
		}(i)
	}
	wg.Wait()
	if got := m.Len(); got != 8000 {
		t.Fatalf("Len() = %d, want 8000", got)
	}
}
