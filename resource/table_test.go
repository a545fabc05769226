package resource

import (
	"errors"
	"sync"
	"testing"
)

func TestNewTable(t *testing.T) {
	tbl := NewTable[int]()
	if tbl == nil {
		t.Fatal("NewTable returned nil")
	}
	if tbl.Len() != 0 {
		t.Errorf("expected empty table, got %d entries", tbl.Len())
	}
}

func TestTablePushGet(t *testing.T) {
	tbl := NewTable[string]()

	h := tbl.Push("vertex buffer")
	if !tbl.Contains(h) {
		t.Error("expected pushed handle to be present")
	}

	v, ok := tbl.Get(h)
	if !ok {
		t.Fatal("expected Get to find pushed handle")
	}
	if v != "vertex buffer" {
		t.Errorf("expected %q, got %q", "vertex buffer", v)
	}

	_, ok = tbl.Get(FromRaw[string](999))
	if ok {
		t.Error("expected unknown handle to be absent")
	}
}

func TestTableGenerateThenInsert(t *testing.T) {
	tbl := NewTable[int]()

	h := tbl.Generate()
	if tbl.Contains(h) {
		t.Error("generated handle must not be present before Insert")
	}

	old, replaced := tbl.Insert(h, 1)
	if replaced {
		t.Errorf("expected first insert not to replace, got old=%d", old)
	}

	old, replaced = tbl.Insert(h, 2)
	if !replaced || old != 1 {
		t.Errorf("expected replace of 1, got old=%d replaced=%v", old, replaced)
	}

	v, _ := tbl.Get(h)
	if v != 2 {
		t.Errorf("expected 2, got %d", v)
	}
	if tbl.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", tbl.Len())
	}
}

func TestTableRemove(t *testing.T) {
	tbl := NewTable[int]()
	h := tbl.Push(7)

	v, ok := tbl.Remove(h)
	if !ok || v != 7 {
		t.Errorf("expected to remove 7, got %d (%v)", v, ok)
	}
	if tbl.Contains(h) {
		t.Error("expected handle to be gone after Remove")
	}

	// Removing again is a no-op
	if _, ok := tbl.Remove(h); ok {
		t.Error("expected second Remove to report absent")
	}
}

func TestTableLookupNotFound(t *testing.T) {
	tbl := NewTable[int]()
	h := tbl.Push(1)
	tbl.Remove(h)

	_, err := tbl.Lookup(h)
	if !errors.Is(err, ErrHandleNotFound) {
		t.Errorf("expected ErrHandleNotFound, got %v", err)
	}

	// The table stays usable after a failed lookup.
	h2 := tbl.Push(2)
	if v, err := tbl.Lookup(h2); err != nil || v != 2 {
		t.Errorf("expected 2, got %d (%v)", v, err)
	}
}

func TestTableUpdate(t *testing.T) {
	tbl := NewTable[[]int]()
	h := tbl.Push(nil)

	if !tbl.Update(h, func(v *[]int) { *v = append(*v, 1) }) {
		t.Fatal("expected Update to find handle")
	}
	v, _ := tbl.Get(h)
	if len(v) != 1 || v[0] != 1 {
		t.Errorf("expected [1], got %v", v)
	}

	called := false
	if tbl.Update(FromRaw[[]int](100), func(*[]int) { called = true }) {
		t.Error("expected Update on absent handle to return false")
	}
	if called {
		t.Error("fn must not run for an absent handle")
	}
}

func TestTableUpdateConcurrent(t *testing.T) {
	tbl := NewTable[int]()
	h := tbl.Push(0)

	const goroutines = 32
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				tbl.Update(h, func(v *int) { *v++ })
			}
		}()
	}
	wg.Wait()

	v, _ := tbl.Get(h)
	if v != goroutines*perGoroutine {
		t.Errorf("expected %d, got %d", goroutines*perGoroutine, v)
	}
}

func TestTableRange(t *testing.T) {
	tbl := NewTable[int]()
	for i := 0; i < 40; i++ {
		tbl.Push(i)
	}

	sum := 0
	visited := 0
	tbl.Range(func(h Handle[int], v int) bool {
		if int(h.Value()) != v {
			t.Errorf("handle %d holds %d", h.Value(), v)
		}
		sum += v
		visited++
		return true
	})
	if visited != 40 {
		t.Errorf("expected 40 visits, got %d", visited)
	}
	if sum != 40*39/2 {
		t.Errorf("expected sum %d, got %d", 40*39/2, sum)
	}

	stopped := 0
	tbl.Range(func(Handle[int], int) bool {
		stopped++
		return false
	})
	if stopped != 1 {
		t.Errorf("expected Range to stop after 1, got %d", stopped)
	}
}

func TestHashers(t *testing.T) {
	if StringHasher("a") == StringHasher("b") {
		t.Error("expected different hashes for different strings")
	}
	if StringHasher("layout") != StringHasher("layout") {
		t.Error("expected equal hashes for equal strings")
	}
	if Uint64Hasher(12345) != 12345 {
		t.Error("Uint64Hasher should be identity")
	}
}
