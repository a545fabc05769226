package gpucore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DeviceFactory is a function that opens a new device.
// Factories are registered via Register() and called by Open().
type DeviceFactory func() (Device, error)

// ErrUnknownBackend is returned by Open for a name no backend registered.
var ErrUnknownBackend = errors.New("gpucore: unknown backend")

// Registry state - protected by mutex for thread-safe access.
var (
	registryMu sync.RWMutex
	factories  = make(map[string]DeviceFactory)
)

// Register registers a device factory with the given name.
// This function is typically called from init() in backend packages,
// following the database/sql driver pattern:
//
//	func init() {
//	    gpucore.Register("memory", func() (gpucore.Device, error) {
//	        return memory.New(), nil
//	    })
//	}
//
// Register panics if:
//   - factory is nil
//   - a backend with the same name is already registered
func Register(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("gpucore: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("gpucore: Register called twice for " + name)
	}
	factories[name] = factory
}

// Unregister removes a backend from the registry.
// This is primarily useful for testing to clean up between tests.
// If the backend is not registered, this is a no-op.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// Open opens a new device from the backend registered under name.
//
// Example:
//
//	import _ "github.com/gogpu/gpures/backend/memory" // Register memory backend
//
//	device, err := gpucore.Open("memory")
//
// The error for an unregistered name includes a hint about forgotten imports.
func Open(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (forgotten import?)", ErrUnknownBackend, name)
	}
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("gpucore: open backend %q: %w", name, err)
	}
	return dev, nil
}

// MustOpen opens a device by name, panicking on error.
func MustOpen(name string) Device {
	d, err := Open(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Backends returns a sorted list of registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}
