package resource

import (
	"hash/fnv"
	"sync"
)

// Shard configuration.
const (
	// ShardCount is the number of shards for reduced lock contention.
	// Must be a power of 2 for fast modulo via bitwise AND.
	ShardCount = 16

	// shardMask is used for fast shard selection (ShardCount - 1).
	shardMask = ShardCount - 1
)

// Hasher is a function that computes a hash for a key.
// Used by shardedMap for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
// Handle values are sequential, so the low bits already spread evenly.
func Uint64Hasher(u uint64) uint64 {
	return u
}

// shardedMap is a thread-safe map split into ShardCount shards.
//
// Unlike a cache it never evicts: entries live until they are deleted.
// Each shard has its own RWMutex so that readers of different keys
// rarely contend.
type shardedMap[K comparable, V any] struct {
	shards [ShardCount]*mapShard[K, V]
	hasher Hasher[K]
}

// mapShard is a single shard of a shardedMap.
type mapShard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// newShardedMap creates an empty sharded map using hasher for shard selection.
func newShardedMap[K comparable, V any](hasher Hasher[K]) *shardedMap[K, V] {
	m := &shardedMap[K, V]{hasher: hasher}
	for i := range m.shards {
		m.shards[i] = &mapShard[K, V]{entries: make(map[K]V)}
	}
	return m
}

// shard returns the shard for a given key.
func (m *shardedMap[K, V]) shard(key K) *mapShard[K, V] {
	return m.shards[m.hasher(key)&shardMask]
}

// get returns the value stored under key.
func (m *shardedMap[K, V]) get(key K) (V, bool) {
	s := m.shard(key)
	s.mu.RLock()
	v, ok := s.entries[key]
	s.mu.RUnlock()
	return v, ok
}

// set stores value under key and returns the previous value, if any.
func (m *shardedMap[K, V]) set(key K, value V) (V, bool) {
	s := m.shard(key)
	s.mu.Lock()
	old, ok := s.entries[key]
	s.entries[key] = value
	s.mu.Unlock()
	return old, ok
}

// loadOrStore returns the existing value for key if present.
// Otherwise it stores value and returns it with loaded == false.
func (m *shardedMap[K, V]) loadOrStore(key K, value V) (actual V, loaded bool) {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.entries[key]; ok {
		return v, true
	}
	s.entries[key] = value
	return value, false
}

// delete removes key and returns the removed value, if any.
func (m *shardedMap[K, V]) delete(key K) (V, bool) {
	s := m.shard(key)
	s.mu.Lock()
	v, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return v, ok
}

// len returns the total number of entries across all shards.
func (m *shardedMap[K, V]) len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// rangeAll calls fn for every entry until fn returns false.
// Each shard is snapshotted before fn is called, so fn may call back
// into the map without deadlocking.
func (m *shardedMap[K, V]) rangeAll(fn func(K, V) bool) {
	type kv struct {
		k K
		v V
	}
	for _, s := range m.shards {
		s.mu.RLock()
		snapshot := make([]kv, 0, len(s.entries))
		for k, v := range s.entries {
			snapshot = append(snapshot, kv{k, v})
		}
		s.mu.RUnlock()

		for _, e := range snapshot {
			if !fn(e.k, e.v) {
				return
			}
		}
	}
}
