package resource

import (
	"cmp"
	"fmt"
	"reflect"
	"sync/atomic"
)

// Handle is an opaque reference to a resource of kind T.
//
// A Handle carries no payload, only identity. T is a phantom type
// parameter: Handle[gpucore.Buffer] and Handle[gpucore.Texture] are
// distinct Go types even when their numeric values coincide, so handles
// of different kinds cannot be confused at compile time.
//
// Equality, ordering and hashing are defined purely on the numeric value.
// Uniqueness of that value is only guaranteed within a single Source.
type Handle[T any] struct {
	value uint64
}

// FromRaw creates a handle from a raw numeric value.
//
// This is an escape hatch for handles that were communicated out of band
// (for example reserved with Table.Generate before the object exists).
// Fabricating handles that no Source produced usually leads to lookups
// that fail with ErrHandleNotFound.
func FromRaw[T any](value uint64) Handle[T] {
	return Handle[T]{value: value}
}

// Cast reinterprets a handle under a different kind.
//
// Cast breaks the type-level separation between kinds. It must only be
// used when both kinds are known by construction to share the same
// underlying table, e.g. when a raw buffer handle is reused by a typed
// buffer wrapper. It is not a general conversion.
func Cast[U, T any](h Handle[T]) Handle[U] {
	return Handle[U]{value: h.value}
}

// Value returns the numeric identity of the handle.
func (h Handle[T]) Value() uint64 {
	return h.value
}

// Compare orders handles by numeric value.
func (h Handle[T]) Compare(other Handle[T]) int {
	return cmp.Compare(h.value, other.value)
}

// Less reports whether h orders before other.
func (h Handle[T]) Less(other Handle[T]) bool {
	return h.value < other.value
}

// String returns a debug representation such as "Handle[gpucore.Buffer](3)".
func (h Handle[T]) String() string {
	return fmt.Sprintf("Handle[%s](%d)", kindName[T](), h.value)
}

// kindName returns the printable name of the phantom kind.
func kindName[T any]() string {
	t := reflect.TypeFor[T]()
	if t == nil {
		return "any"
	}
	return t.String()
}

// Source mints fresh handles of kind T.
//
// A Source is a monotonic counter starting at 0. Generate never returns
// the same value twice for the lifetime of the Source; values are never
// recycled. The zero value is ready to use and Source is safe for
// concurrent use.
type Source[T any] struct {
	next atomic.Uint64
}

// Generate returns a handle that this Source has never returned before.
func (s *Source[T]) Generate() Handle[T] {
	return Handle[T]{value: s.next.Add(1) - 1}
}

// Issued returns how many handles have been generated so far.
func (s *Source[T]) Issued() uint64 {
	return s.next.Load()
}
