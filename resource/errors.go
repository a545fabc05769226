package resource

import (
	"errors"
	"fmt"
)

// ErrHandleNotFound is returned when a handle is absent from its table.
//
// Lookups never panic on a missing handle: the table and every other
// resource remain usable after this error.
var ErrHandleNotFound = errors.New("resource: handle not found")

// notFound wraps ErrHandleNotFound with the offending handle.
func notFound[T any](h Handle[T]) error {
	return fmt.Errorf("%w: %s", ErrHandleNotFound, h)
}
