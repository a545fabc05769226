package gpucore

import (
	"errors"
	"strings"
	"testing"
)

// stubDevice satisfies Device through the embedded nil interface.
// Only its identity is used by the registry tests.
type stubDevice struct {
	Device
	name string
}

func stubFactory(name string) DeviceFactory {
	return func() (Device, error) { return &stubDevice{name: name}, nil }
}

// resetRegistry clears all registered backends for test isolation.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories = make(map[string]DeviceFactory)
}

func TestRegisterAndOpen(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register("test", stubFactory("test"))

	dev, err := Open("test")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	stub, ok := dev.(*stubDevice)
	if !ok {
		t.Fatal("device is not a stubDevice")
	}
	if stub.name != "test" {
		t.Errorf("got name %q, want %q", stub.name, "test")
	}
}

func TestOpenUnknown(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	_, err := Open("unknown")
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("error %q does not wrap ErrUnknownBackend", err)
	}
	if !strings.Contains(err.Error(), "forgotten import") {
		t.Errorf("expected import hint, got %q", err)
	}
}

func TestOpenFactoryError(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	errNoAdapter := errors.New("no adapter")
	Register("broken", func() (Device, error) { return nil, errNoAdapter })

	_, err := Open("broken")
	if !errors.Is(err, errNoAdapter) {
		t.Errorf("expected wrapped factory error, got %v", err)
	}
}

func TestRegisterNilFactory(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for nil factory")
		}
	}()

	Register("nil", nil)
}

func TestRegisterDuplicate(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register("dup", stubFactory("dup"))

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for duplicate registration")
		}
	}()

	Register("dup", stubFactory("dup"))
}

func TestUnregister(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	Register("temp", stubFactory("temp"))
	if !IsRegistered("temp") {
		t.Error("backend should be registered")
	}

	Unregister("temp")
	if IsRegistered("temp") {
		t.Error("backend should not be registered after Unregister")
	}

	// Unregister non-existent should not panic
	Unregister("nonexistent")
}

func TestBackends(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	// Register in non-alphabetical order
	Register("charlie", stubFactory("c"))
	Register("alpha", stubFactory("a"))
	Register("bravo", stubFactory("b"))

	names := Backends()
	if len(names) != 3 {
		t.Fatalf("expected 3 backends, got %d", len(names))
	}

	expected := []string{"alpha", "bravo", "charlie"}
	for i, name := range names {
		if name != expected[i] {
			t.Errorf("names[%d] = %q, want %q", i, name, expected[i])
		}
	}
}

func TestMustOpenPanic(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for unknown backend")
		}
	}()

	_ = MustOpen("unknown")
}

func TestConcurrentRegistration(t *testing.T) {
	resetRegistry()
	defer resetRegistry()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			name := "concurrent" + string(rune('A'+i%26)) + string(rune('0'+i/26))
			func() {
				defer func() { _ = recover() }()
				Register(name, stubFactory(name))
			}()
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_ = Backends()
			_ = IsRegistered("nonexistent")
		}
		done <- true
	}()

	<-done
	<-done
}
