package gpures

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gpures/backend/memory"
	"github.com/gogpu/gpures/coherency"
)

type params struct {
	Scale  float32
	Offset float32
	Count  uint32
	_      uint32
}

func TestUniformBufferRoundTrip(t *testing.T) {
	inst, dev := newTestInstance(t)

	u, err := NewUniformBuffer(inst, "params", params{Scale: 2, Count: 3})
	require.NoError(t, err)
	assert.Equal(t, coherency.DirtyHost, u.State())

	// A host-newer read needs no device round trip.
	v, err := u.Get()
	require.NoError(t, err)
	assert.Equal(t, params{Scale: 2, Count: 3}, v)
	assert.Zero(t, dev.Transfers().BufferReads)

	require.NoError(t, u.Update(func(p *params) { p.Offset = 0.5 }))
	require.NoError(t, u.Flush())
	assert.Equal(t, coherency.Clean, u.State())
	assert.Equal(t, 1, dev.Transfers().BufferWrites)

	// Flushing a clean buffer transfers nothing.
	require.NoError(t, u.Flush())
	assert.Equal(t, 1, dev.Transfers().BufferWrites)

	v, err = u.Get()
	require.NoError(t, err)
	assert.Equal(t, params{Scale: 2, Offset: 0.5, Count: 3}, v)
}

func TestUniformBufferSliceValue(t *testing.T) {
	inst, _ := newTestInstance(t)

	u, err := NewUniformBuffer(inst, "weights", Float32s{0.25, 0.5, 0.25})
	require.NoError(t, err)
	require.NoError(t, u.Set(Float32s{1, 2, 3}))

	v, err := u.Get()
	require.NoError(t, err)
	assert.Equal(t, Float32s{1, 2, 3}, v)
}

func TestUniformBufferSetWrongSize(t *testing.T) {
	inst, _ := newTestInstance(t)

	u, err := NewUniformBuffer(inst, "weights", Float32s{1, 2})
	require.NoError(t, err)
	require.NoError(t, u.Flush())

	assert.ErrorIs(t, u.Set(Float32s{1, 2, 3}), ErrSizeMismatch)
	v, err := u.Get()
	require.NoError(t, err)
	assert.Equal(t, Float32s{1, 2}, v)
}

func TestUniformBufferUsage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UniformUsage = []string{"uniform", "copy_dst", "copy_src"}
	inst, dev := newTestInstance(t, WithConfig(cfg))

	u, err := NewUniformBuffer(inst, "params", params{})
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Creates("Buffer"))

	raw, err := inst.buffers.Lookup(u.Handle())
	require.NoError(t, err)
	want := gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	assert.Equal(t, want, raw.(*memory.Buffer).Usage())
}

func TestStorageBufferPullsDeviceWrites(t *testing.T) {
	inst, dev := newTestInstance(t)

	s, err := NewStorageBufferFrom(inst, "data", &Uint32s{1, 2, 3}, 0)
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	// Simulate a device write behind the host copy.
	buf, err := inst.buffers.Lookup(s.Handle())
	require.NoError(t, err)
	require.NoError(t, dev.WriteBuffer(buf, 4, []byte{9, 0, 0, 0}))
	s.deviceWrote()
	assert.Equal(t, coherency.DirtyDevice, s.State())

	got := make(Uint32s, 3)
	require.NoError(t, s.Load(0, &got))
	assert.Equal(t, Uint32s{1, 9, 3}, got)
	assert.Equal(t, 1, dev.Transfers().BufferReads)

	// Clean now: a second read stays on the host.
	require.NoError(t, s.Load(0, &got))
	assert.Equal(t, 1, dev.Transfers().BufferReads)
}

func TestStorageBufferWriteAfterDeviceWrite(t *testing.T) {
	inst, dev := newTestInstance(t)

	s, err := NewStorageBuffer(inst, "data", 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	buf, err := inst.buffers.Lookup(s.Handle())
	require.NoError(t, err)
	require.NoError(t, dev.WriteBuffer(buf, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	s.deviceWrote()

	// A partial write must keep the device bytes it does not touch.
	_, err = s.WriteAt([]byte{0xff}, 0)
	require.NoError(t, err)
	assert.Equal(t, coherency.DirtyHost, s.State())

	b, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 2, 3, 4, 5, 6, 7, 8}, b)
}

func TestStorageBufferTransferFailureKeepsState(t *testing.T) {
	inst, dev := newTestInstance(t)
	s, err := NewStorageBuffer(inst, "data", 4, 0)
	require.NoError(t, err)

	injected := errors.New("device lost")
	dev.FailNextTransfer(injected)
	err = s.Flush()
	assert.ErrorIs(t, err, ErrTransfer)
	assert.ErrorIs(t, err, injected)
	assert.Equal(t, coherency.DirtyHost, s.State())

	require.NoError(t, s.Flush())
	assert.Equal(t, coherency.Clean, s.State())

	s.deviceWrote()
	dev.FailNextTransfer(nil)
	_, err = s.Bytes()
	assert.ErrorIs(t, err, ErrTransfer)
	assert.Equal(t, coherency.DirtyDevice, s.State())
}

func TestStorageBufferAccessors(t *testing.T) {
	inst, _ := newTestInstance(t)
	s, err := NewStorageBuffer(inst, "data", 8, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, s.Len())

	n, err := s.WriteAt([]byte{1, 2, 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Slice(2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	p := make([]byte, 4)
	n, err = s.ReadAt(p, 6)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Update(func(data []byte) { data[0] = 7 }))
	b, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0, 1, 2, 3, 0, 0, 0}, b)

	_, err = s.WriteAt([]byte{1, 2}, 7)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.Slice(4, 9)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, s.Store(6, &Uint32s{1}), ErrOutOfRange)
}

func TestStorageBufferResize(t *testing.T) {
	inst, dev := newTestInstance(t)
	s, err := NewStorageBufferFrom(inst, "data", &Uint32s{1, 2}, 0)
	require.NoError(t, err)
	old := s.Handle()

	require.NoError(t, s.Resize(16))
	assert.NotEqual(t, old, s.Handle())
	assert.Equal(t, 16, s.Len())
	assert.Equal(t, coherency.DirtyHost, s.State())
	assert.Contains(t, dev.Calls(), "DestroyBuffer(data)")

	got := make(Uint32s, 4)
	require.NoError(t, s.Load(0, &got))
	assert.Equal(t, Uint32s{1, 2, 0, 0}, got)

	require.NoError(t, s.Resize(4))
	first := make(Uint32s, 1)
	require.NoError(t, s.Load(0, &first))
	assert.Equal(t, Uint32s{1}, first)
}

func TestStorageBufferRawFlushes(t *testing.T) {
	inst, dev := newTestInstance(t)
	s, err := NewStorageBuffer(inst, "data", 4, 0)
	require.NoError(t, err)

	h, err := s.Raw()
	require.NoError(t, err)
	assert.Equal(t, s.Handle(), h)
	assert.Equal(t, 1, dev.Transfers().BufferWrites)
	assert.Equal(t, coherency.Clean, s.State())
}

func TestStorageBufferConcurrentUpdates(t *testing.T) {
	inst, _ := newTestInstance(t)
	s, err := NewStorageBufferFrom(inst, "counter", &Uint32s{0}, 0)
	require.NoError(t, err)

	const goroutines = 16
	const perGoroutine = 100
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				assert.NoError(t, s.Update(func(data []byte) { data[0]++ }))
				if s.State() == coherency.DirtyHost {
					assert.NoError(t, s.Flush())
				}
			}
		}()
	}
	wg.Wait()

	got := make(Uint32s, 1)
	require.NoError(t, s.Load(0, &got))
	assert.Equal(t, uint32(goroutines*perGoroutine%256), got[0])
}

func TestNewStorageBufferInvalidSize(t *testing.T) {
	inst, _ := newTestInstance(t)
	_, err := NewStorageBuffer(inst, "empty", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	_, err = NewStorageBufferFrom(inst, "empty", &Float32s{}, 0)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestFailedWriteKeepsCleanState(t *testing.T) {
	inst, dev := newTestInstance(t)

	s, err := NewStorageBuffer(inst, "data", 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.Flush())
	require.Equal(t, 1, dev.Transfers().BufferWrites)

	_, err = s.WriteAt([]byte{1, 2}, 7)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, s.Store(6, &Uint32s{1}), ErrOutOfRange)
	assert.Equal(t, coherency.Clean, s.State())

	require.NoError(t, s.Flush())
	assert.Equal(t, 1, dev.Transfers().BufferWrites)

	u, err := NewUniformBuffer(inst, "weights", Float32s{1, 2})
	require.NoError(t, err)
	require.NoError(t, u.Flush())
	assert.ErrorIs(t, u.Set(Float32s{1, 2, 3}), ErrSizeMismatch)
	assert.Equal(t, coherency.Clean, u.State())
}

func TestFailedWriteKeepsDeviceState(t *testing.T) {
	inst, dev := newTestInstance(t)

	s, err := NewStorageBuffer(inst, "data", 8, 0)
	require.NoError(t, err)
	require.NoError(t, s.Flush())
	s.deviceWrote()

	// The pull happens, then the write is rejected: the copies agree.
	_, err = s.WriteAt([]byte{1, 2}, 7)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, coherency.Clean, s.State())
	assert.Equal(t, 1, dev.Transfers().BufferReads)
	assert.Equal(t, 1, dev.Transfers().BufferWrites)
}
