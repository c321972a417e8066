// Package syncs holds small concurrency primitives shared across the
// controller and peer session layers.
package syncs

import (
	"sync"

	"golang.org/x/sys/cpu"
)

// ShardedMap is a synchronized map[K]V, internally sharded by a
// user-defined K-sharding function. It backs the peer registry (sharded by
// node address) and the controller's per-network record tables (sharded by
// network id), so that a lookup for one peer or network never blocks a
// concurrent mutation of another.
//
// The zero value is not safe for use; use NewShardedMap.
type ShardedMap[K comparable, V any] struct {
	shardFunc func(K) int
	shards    []mapShard[K, V]
}

type mapShard[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
	_  cpu.CacheLinePad
}

// NewShardedMap returns a new ShardedMap with the given number of shards
// and sharding function. shard must return a value in [0, shards)
// deterministically for a given key.
func NewShardedMap[K comparable, V any](shards int, shard func(K) int) *ShardedMap[K, V] {
	m := &ShardedMap[K, V]{
		shardFunc: shard,
		shards:    make([]mapShard[K, V], shards),
	}
	for i := range m.shards {
		m.shards[i].m = make(map[K]V)
	}
	return m
}

func (m *ShardedMap[K, V]) shard(key K) *mapShard[K, V] {
	return &m.shards[m.shardFunc(key)]
}

// GetOk returns m[key] and whether it was present.
func (m *ShardedMap[K, V]) GetOk(key K) (value V, ok bool) {
	shard := m.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	value, ok = shard.m[key]
	return
}

// Get returns m[key], or the zero value of V if key is not present.
func (m *ShardedMap[K, V]) Get(key K) (value V) {
	value, _ = m.GetOk(key)
	return
}

// Mutate atomically mutates m[k] by calling mutator with the old value (or
// its zero value) and whether it existed. mutator returns the new value
// and whether it should be kept (true) or deleted (false).
//
// It returns the change in map size: -1 (delete), 0 (no size change), or
// 1 (addition). The controller uses this to detect whether a network
// record was newly created (createNetworkIfAbsent).
func (m *ShardedMap[K, V]) Mutate(key K, mutator func(oldValue V, oldValueExisted bool) (newValue V, keep bool)) (sizeDelta int) {
	shard := m.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	oldV, oldOK := shard.m[key]
	newV, newOK := mutator(oldV, oldOK)
	if newOK {
		shard.m[key] = newV
		if oldOK {
			return 0
		}
		return 1
	}
	delete(shard.m, key)
	if oldOK {
		return -1
	}
	return 0
}

// Set sets m[key] = value and reports whether the map grew.
func (m *ShardedMap[K, V]) Set(key K, value V) (grew bool) {
	shard := m.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	s0 := len(shard.m)
	shard.m[key] = value
	return len(shard.m) > s0
}

// Delete removes key from m and reports whether it was present.
func (m *ShardedMap[K, V]) Delete(key K) (shrunk bool) {
	shard := m.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	s0 := len(shard.m)
	delete(shard.m, key)
	return len(shard.m) < s0
}

// Contains reports whether m contains key.
func (m *ShardedMap[K, V]) Contains(key K) bool {
	shard := m.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	_, ok := shard.m[key]
	return ok
}

// Len returns the number of elements in m. It locks shards one at a time,
// so it is not a consistent snapshot under concurrent mutation; it's meant
// for tests and diagnostics, not the hot path.
func (m *ShardedMap[K, V]) Len() int {
	n := 0
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.Lock()
		n += len(shard.m)
		shard.mu.Unlock()
	}
	return n
}

// Range calls f for every entry in m, one shard at a time. f must not
// call back into m. Iteration order is unspecified; Range does not sort.
func (m *ShardedMap[K, V]) Range(f func(key K, value V)) {
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.Lock()
		for k, v := range shard.m {
			f(k, v)
		}
		shard.mu.Unlock()
	}
}

// DeleteFunc removes every entry for which f returns true.
func (m *ShardedMap[K, V]) DeleteFunc(f func(key K, value V) bool) {
	for i := range m.shards {
		shard := &m.shards[i]
		shard.mu.Lock()
		for k, v := range shard.m {
			if f(k, v) {
				delete(shard.m, k)
			}
		}
		shard.mu.Unlock()
	}
}
