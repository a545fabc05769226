package resource

import (
	"sync"
)

// Table is a concurrent mapping from handle to live resource object.
//
// Tables hold resource kinds that are mutable and owned directly by the
// caller (raw buffers, raw textures). The table owns each stored value;
// callers only borrow it through a handle. There is no reference
// counting: whoever holds the handle decides when to Remove it.
//
// Thread Safety:
// All methods are safe for concurrent use. The table is split into
// ShardCount shards keyed by handle value, and every entry carries its
// own mutex so that concurrent Update calls on the same handle are
// serialized. A value returned by Get must not be used after another
// goroutine removed its handle; that discipline is on the caller.
type Table[T any] struct {
	source  Source[T]
	entries *shardedMap[uint64, *tableEntry[T]]
}

// tableEntry holds one stored value and the lock guarding it.
type tableEntry[T any] struct {
	mu    sync.Mutex
	value T
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries: newShardedMap[uint64, *tableEntry[T]](Uint64Hasher),
	}
}

// Generate mints a fresh handle without inserting anything.
// Use it when a handle must be communicated before its object exists,
// then Insert the object under that handle.
func (t *Table[T]) Generate() Handle[T] {
	return t.source.Generate()
}

// Insert stores value under h.
// If h was already present, the previous value is replaced and returned
// with replaced == true.
func (t *Table[T]) Insert(h Handle[T], value T) (old T, replaced bool) {
	entry, loaded := t.entries.loadOrStore(h.value, &tableEntry[T]{value: value})
	if !loaded {
		return old, false
	}

	entry.mu.Lock()
	old = entry.value
	entry.value = value
	entry.mu.Unlock()
	return old, true
}

// Push mints a fresh handle, stores value under it and returns the handle.
func (t *Table[T]) Push(value T) Handle[T] {
	h := t.source.Generate()
	t.entries.set(h.value, &tableEntry[T]{value: value})
	return h
}

// Contains reports whether h is present.
func (t *Table[T]) Contains(h Handle[T]) bool {
	_, ok := t.entries.get(h.value)
	return ok
}

// Get returns the value stored under h.
// Returns (zero, false) if h is absent.
func (t *Table[T]) Get(h Handle[T]) (T, bool) {
	entry, ok := t.entries.get(h.value)
	if !ok {
		var zero T
		return zero, false
	}

	entry.mu.Lock()
	v := entry.value
	entry.mu.Unlock()
	return v, true
}

// Lookup is like Get but reports an absent handle as an error wrapping
// ErrHandleNotFound.
func (t *Table[T]) Lookup(h Handle[T]) (T, error) {
	v, ok := t.Get(h)
	if !ok {
		return v, notFound(h)
	}
	return v, nil
}

// Update calls fn with exclusive access to the value stored under h.
// Concurrent Update calls on the same handle run one at a time; their
// relative order is unspecified.
//
// Returns false without calling fn if h is absent.
func (t *Table[T]) Update(h Handle[T], fn func(*T)) bool {
	entry, ok := t.entries.get(h.value)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	fn(&entry.value)
	return true
}

// Remove deletes h and returns the value it held.
// Removing an absent handle is a no-op that returns (zero, false).
func (t *Table[T]) Remove(h Handle[T]) (T, bool) {
	entry, ok := t.entries.delete(h.value)
	if !ok {
		var zero T
		return zero, false
	}

	entry.mu.Lock()
	v := entry.value
	entry.mu.Unlock()
	return v, true
}

// Len returns the number of stored values.
func (t *Table[T]) Len() int {
	return t.entries.len()
}

// Range calls fn for every stored value until fn returns false.
// Values inserted or removed during Range may or may not be visited.
func (t *Table[T]) Range(fn func(Handle[T], T) bool) {
	t.entries.rangeAll(func(k uint64, e *tableEntry[T]) bool {
		e.mu.Lock()
		v := e.value
		e.mu.Unlock()
		return fn(Handle[T]{value: k}, v)
	})
}
