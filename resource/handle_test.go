package resource

import (
	"sort"
	"sync"
	"testing"
)

type bufferKind struct{}
type textureKind struct{}

func TestSourceGenerateSequential(t *testing.T) {
	var s Source[bufferKind]

	for want := uint64(0); want < 5; want++ {
		h := s.Generate()
		if h.Value() != want {
			t.Errorf("expected handle %d, got %d", want, h.Value())
		}
	}
	if s.Issued() != 5 {
		t.Errorf("expected 5 issued, got %d", s.Issued())
	}
}

func TestSourceGenerateInjectiveConcurrent(t *testing.T) {
	var s Source[bufferKind]
	const goroutines = 16
	const perGoroutine = 500

	var mu sync.Mutex
	seen := make(map[Handle[bufferKind]]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]Handle[bufferKind], 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				local = append(local, s.Generate())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, h := range local {
				if seen[h] {
					t.Errorf("handle %s generated twice", h)
				}
				seen[h] = true
			}
		}()
	}
	wg.Wait()

	if len(seen) != goroutines*perGoroutine {
		t.Errorf("expected %d distinct handles, got %d", goroutines*perGoroutine, len(seen))
	}
}

func TestHandleOrdering(t *testing.T) {
	hs := []Handle[bufferKind]{FromRaw[bufferKind](7), FromRaw[bufferKind](2), FromRaw[bufferKind](5)}
	sort.Slice(hs, func(i, j int) bool { return hs[i].Less(hs[j]) })

	want := []uint64{2, 5, 7}
	for i, h := range hs {
		if h.Value() != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], h.Value())
		}
	}

	a, b := FromRaw[bufferKind](1), FromRaw[bufferKind](1)
	if a != b || a.Compare(b) != 0 {
		t.Error("handles with equal values must compare equal")
	}
	if FromRaw[bufferKind](1).Compare(FromRaw[bufferKind](2)) >= 0 {
		t.Error("expected 1 < 2")
	}
}

func TestHandleCast(t *testing.T) {
	b := FromRaw[bufferKind](42)
	tex := Cast[textureKind](b)
	if tex.Value() != 42 {
		t.Errorf("expected cast to keep value 42, got %d", tex.Value())
	}
	back := Cast[bufferKind](tex)
	if back != b {
		t.Errorf("expected round-trip cast to be identity, got %s", back)
	}
}

func TestHandleString(t *testing.T) {
	h := FromRaw[bufferKind](3)
	want := "Handle[resource.bufferKind](3)"
	if h.String() != want {
		t.Errorf("expected %q, got %q", want, h.String())
	}
}
