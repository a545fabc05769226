package resource

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// testDesc is a minimal descriptor with a slice field.
type testDesc struct {
	label   string
	entries []uint32
}

func (d testDesc) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q|", d.label)
	for _, e := range d.entries {
		fmt.Fprintf(&b, "%d,", e)
	}
	return b.String()
}

func (d testDesc) Clone() testDesc {
	d.entries = append([]uint32(nil), d.entries...)
	return d
}

type testObject struct {
	id int
}

func TestCacheDeduplicates(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	created := 0
	create := func() (*testObject, error) {
		created++
		return &testObject{id: created}, nil
	}

	d := testDesc{label: "layout", entries: []uint32{0, 1}}
	h1, err := c.GetOrCreate(d, create)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := c.GetOrCreate(testDesc{label: "layout", entries: []uint32{0, 1}}, create)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h1 != h2 {
		t.Errorf("expected equal handles, got %s and %s", h1, h2)
	}
	if created != 1 {
		t.Errorf("expected create called once, got %d", created)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 live object, got %d", c.Len())
	}
}

func TestCacheDistinctDescriptors(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	create := func() (*testObject, error) { return &testObject{}, nil }

	descs := []testDesc{
		{label: "a"},
		{label: "b"},
		{label: "a", entries: []uint32{1}},
		{label: "a", entries: []uint32{1, 2}},
		{label: "a", entries: []uint32{12}},
	}

	seen := make(map[Handle[*testObject]]bool)
	for _, d := range descs {
		h, err := c.GetOrCreate(d, create)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[h] {
			t.Errorf("descriptor %+v reused handle %s", d, h)
		}
		seen[h] = true
	}
	if c.Len() != len(descs) {
		t.Errorf("expected %d objects, got %d", len(descs), c.Len())
	}
}

func TestCacheCreateError(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	errBoom := errors.New("boom")

	_, err := c.GetOrCreate(testDesc{label: "x"}, func() (*testObject, error) {
		return nil, errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Errorf("expected errBoom, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected cache unchanged, got %d entries", c.Len())
	}
	if _, ok := c.Lookup(testDesc{label: "x"}); ok {
		t.Error("failed creation must not be cached")
	}

	// A later attempt may succeed.
	h, err := c.GetOrCreate(testDesc{label: "x"}, func() (*testObject, error) {
		return &testObject{id: 1}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj, ok := c.Get(h); !ok || obj.id != 1 {
		t.Errorf("expected object 1, got %v (%v)", obj, ok)
	}
}

func TestCacheStoresClone(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	d := testDesc{label: "x", entries: []uint32{1, 2}}

	h, _ := c.GetOrCreate(d, func() (*testObject, error) { return &testObject{}, nil })
	d.entries[0] = 99

	stored, ok := c.Descriptor(h)
	if !ok {
		t.Fatal("expected descriptor to be stored")
	}
	if stored.entries[0] != 1 {
		t.Errorf("stored descriptor was mutated through caller slice: %v", stored.entries)
	}
}

func TestCacheRemove(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	n := 0
	create := func() (*testObject, error) {
		n++
		return &testObject{id: n}, nil
	}

	d := testDesc{label: "x"}
	h1, _ := c.GetOrCreate(d, create)

	obj, ok := c.Remove(h1)
	if !ok || obj.id != 1 {
		t.Errorf("expected to remove object 1, got %v (%v)", obj, ok)
	}
	if _, ok := c.Lookup(d); ok {
		t.Error("descriptor mapping should be dropped with the object")
	}
	if _, err := c.Resolve(h1); !errors.Is(err, ErrHandleNotFound) {
		t.Errorf("expected ErrHandleNotFound, got %v", err)
	}

	h2, _ := c.GetOrCreate(d, create)
	if h2 == h1 {
		t.Error("expected a fresh handle after removal")
	}
	if n != 2 {
		t.Errorf("expected a second creation, got %d", n)
	}
}

func TestCacheInsert(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	h := c.Generate()

	c.Insert(testDesc{label: "pre"}, h, &testObject{id: 5})

	got, err := c.GetOrCreate(testDesc{label: "pre"}, func() (*testObject, error) {
		t.Error("create must not run for an inserted descriptor")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != h {
		t.Errorf("expected %s, got %s", h, got)
	}
}

func TestCacheInsertConflictPanics(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	h := c.Generate()
	c.Insert(testDesc{label: "a"}, h, &testObject{})

	defer func() {
		if recover() == nil {
			t.Error("expected panic when rebinding a handle to another descriptor")
		}
	}()
	c.Insert(testDesc{label: "b"}, h, &testObject{})
}

func TestCacheStats(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	create := func() (*testObject, error) { return &testObject{}, nil }

	_, _ = c.GetOrCreate(testDesc{label: "a"}, create) // miss
	_, _ = c.GetOrCreate(testDesc{label: "a"}, create) // hit
	_, _ = c.GetOrCreate(testDesc{label: "a"}, create) // hit
	_, _ = c.GetOrCreate(testDesc{label: "b"}, create) // miss

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("expected 2 misses, got %d", stats.Misses)
	}
	if stats.Creates != 2 {
		t.Errorf("expected 2 creates, got %d", stats.Creates)
	}
	if stats.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.HitRate() != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", stats.HitRate())
	}
}

func TestCacheConcurrentSingleCreation(t *testing.T) {
	c := NewCache[testDesc, *testObject]()
	var created atomic.Int32
	create := func() (*testObject, error) {
		created.Add(1)
		return &testObject{}, nil
	}

	const goroutines = 64
	handles := make([]Handle[*testObject], goroutines)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			h, err := c.GetOrCreate(testDesc{label: "shared", entries: []uint32{3}}, create)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	close(start)
	wg.Wait()

	if created.Load() != 1 {
		t.Errorf("expected exactly one creation, got %d", created.Load())
	}
	for i, h := range handles {
		if h != handles[0] {
			t.Errorf("goroutine %d got %s, want %s", i, h, handles[0])
		}
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 live object, got %d", c.Len())
	}
}
