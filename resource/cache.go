package resource

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Descriptor is a value-equal description of a device object.
//
// CacheKey must be a canonical, injective encoding of every field that
// affects the created object: two descriptors produce the same key if
// and only if they describe the same object. Nested resources appear in
// the key by handle value.
type Descriptor interface {
	CacheKey() string
}

// cloner is implemented by descriptors that carry slices or maps and
// therefore must be deep-copied before the cache stores them.
type cloner[D any] interface {
	Clone() D
}

// Cache deduplicates device objects by descriptor.
//
// It owns a Table of live objects plus a mapping from descriptor key to
// handle. At most one live object exists per distinct key. Creation is
// serialized per key: when several goroutines race on an unknown
// descriptor, exactly one of them runs the create function and the rest
// receive its handle (or its error).
//
// Thread Safety:
// All methods are safe for concurrent use.
type Cache[D Descriptor, T any] struct {
	table  *Table[T]
	keys   *shardedMap[string, Handle[T]]
	descs  *shardedMap[uint64, D]
	flight singleflight.Group

	// Statistics (atomic for lock-free reads)
	hits    atomic.Uint64
	misses  atomic.Uint64
	creates atomic.Uint64
}

// NewCache creates an empty descriptor cache.
func NewCache[D Descriptor, T any]() *Cache[D, T] {
	return &Cache[D, T]{
		table: NewTable[T](),
		keys:  newShardedMap[string, Handle[T]](StringHasher),
		descs: newShardedMap[uint64, D](Uint64Hasher),
	}
}

// GetOrCreate returns the handle of the object described by desc,
// invoking create only if no such object exists yet.
//
// If create fails, the error is returned to every caller waiting on the
// same key and the cache is left unchanged.
func (c *Cache[D, T]) GetOrCreate(desc D, create func() (T, error)) (Handle[T], error) {
	key := desc.CacheKey()

	// Fast path: already cached
	if h, ok := c.keys.get(key); ok {
		c.hits.Add(1)
		return h, nil
	}

	// Slow path: one flight per key
	v, err, _ := c.flight.Do(key, func() (any, error) {
		// Double-check: an earlier flight may have published the key
		// between our fast-path miss and joining this flight.
		if h, ok := c.keys.get(key); ok {
			c.hits.Add(1)
			return h, nil
		}

		c.misses.Add(1)
		obj, err := create()
		if err != nil {
			return nil, err
		}

		h := c.table.Push(obj)
		c.descs.set(h.value, cloneDescriptor(desc))
		c.keys.set(key, h)
		c.creates.Add(1)
		return h, nil
	})
	if err != nil {
		return Handle[T]{}, err
	}
	return v.(Handle[T]), nil
}

// Insert stores obj under a caller-chosen handle for desc.
//
// The handle usually comes from Generate. Binding a handle that is
// already associated with a different descriptor, or a descriptor that
// is already cached under a different handle, is a programmer error and
// panics.
func (c *Cache[D, T]) Insert(desc D, h Handle[T], obj T) {
	key := desc.CacheKey()

	if old, ok := c.descs.get(h.value); ok && old.CacheKey() != key {
		panic(fmt.Sprintf("resource: %s already bound to a different descriptor", h))
	}
	actual, loaded := c.keys.loadOrStore(key, h)
	if loaded && actual != h {
		panic(fmt.Sprintf("resource: descriptor already cached as %s, cannot insert as %s", actual, h))
	}

	c.descs.set(h.value, cloneDescriptor(desc))
	c.table.Insert(h, obj)
}

// Generate mints a handle that Insert can later bind.
func (c *Cache[D, T]) Generate() Handle[T] {
	return c.table.Generate()
}

// Lookup returns the handle cached for desc without creating anything.
func (c *Cache[D, T]) Lookup(desc D) (Handle[T], bool) {
	return c.keys.get(desc.CacheKey())
}

// Get returns the live object behind h.
func (c *Cache[D, T]) Get(h Handle[T]) (T, bool) {
	return c.table.Get(h)
}

// Resolve is like Get but reports an absent handle as an error wrapping
// ErrHandleNotFound.
func (c *Cache[D, T]) Resolve(h Handle[T]) (T, error) {
	return c.table.Lookup(h)
}

// Contains reports whether h is live in this cache.
func (c *Cache[D, T]) Contains(h Handle[T]) bool {
	return c.table.Contains(h)
}

// Descriptor returns a copy of the descriptor h was created from.
func (c *Cache[D, T]) Descriptor(h Handle[T]) (D, bool) {
	d, ok := c.descs.get(h.value)
	if !ok {
		return d, false
	}
	return cloneDescriptor(d), true
}

// Remove drops h together with its descriptor mapping and returns the
// object it held. A later GetOrCreate with the same descriptor creates
// a new object under a new handle.
func (c *Cache[D, T]) Remove(h Handle[T]) (T, bool) {
	if d, ok := c.descs.delete(h.value); ok {
		key := d.CacheKey()
		if cur, ok := c.keys.get(key); ok && cur == h {
			c.keys.delete(key)
		}
	}
	return c.table.Remove(h)
}

// Len returns the number of live objects.
func (c *Cache[D, T]) Len() int {
	return c.table.Len()
}

// Range calls fn for every live object until fn returns false.
func (c *Cache[D, T]) Range(fn func(Handle[T], T) bool) {
	c.table.Range(fn)
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Entries int    // Number of live objects
	Hits    uint64 // Lookups answered from the cache
	Misses  uint64 // Lookups that had to create
	Creates uint64 // Successful creations
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns cache statistics.
func (c *Cache[D, T]) Stats() CacheStats {
	return CacheStats{
		Entries: c.table.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Creates: c.creates.Load(),
	}
}

// cloneDescriptor deep-copies d when it knows how to.
func cloneDescriptor[D any](d D) D {
	if c, ok := any(d).(cloner[D]); ok {
		return c.Clone()
	}
	return d
}
