package gpures

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/coherency"
	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/resource"
)

// BufferData is host data with an explicit byte layout.
//
// MarshalBuffer writes exactly Size bytes into dst. UnmarshalBuffer
// decodes src, which has exactly Size bytes, and reports ErrSizeMismatch
// otherwise. Types that do not implement BufferData are encoded with
// encoding/binary in little-endian order and must have a fixed size.
type BufferData interface {
	Size() int
	MarshalBuffer(dst []byte)
	UnmarshalBuffer(src []byte) error
}

// Float32s is a BufferData of little-endian float32 values.
type Float32s []float32

// Size implements BufferData.
func (f *Float32s) Size() int { return 4 * len(*f) }

// MarshalBuffer implements BufferData.
func (f *Float32s) MarshalBuffer(dst []byte) {
	for i, v := range *f {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
	}
}

// UnmarshalBuffer implements BufferData.
func (f *Float32s) UnmarshalBuffer(src []byte) error {
	if len(src) != f.Size() {
		return fmt.Errorf("%w: %d bytes for %d float32 values", ErrSizeMismatch, len(src), len(*f))
	}
	for i := range *f {
		(*f)[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
	return nil
}

// Uint32s is a BufferData of little-endian uint32 values.
type Uint32s []uint32

// Size implements BufferData.
func (u *Uint32s) Size() int { return 4 * len(*u) }

// MarshalBuffer implements BufferData.
func (u *Uint32s) MarshalBuffer(dst []byte) {
	for i, v := range *u {
		binary.LittleEndian.PutUint32(dst[4*i:], v)
	}
}

// UnmarshalBuffer implements BufferData.
func (u *Uint32s) UnmarshalBuffer(src []byte) error {
	if len(src) != u.Size() {
		return fmt.Errorf("%w: %d bytes for %d uint32 values", ErrSizeMismatch, len(src), len(*u))
	}
	for i := range *u {
		(*u)[i] = binary.LittleEndian.Uint32(src[4*i:])
	}
	return nil
}

// sizeOf returns the encoded size of *v.
func sizeOf[T any](v *T) (int, error) {
	if bd, ok := any(v).(BufferData); ok {
		return bd.Size(), nil
	}
	n := binary.Size(v)
	if n < 0 {
		return 0, fmt.Errorf("%w: %T has no fixed binary size", ErrSizeMismatch, *v)
	}
	return n, nil
}

func encode[T any](v *T, dst []byte) error {
	if bd, ok := any(v).(BufferData); ok {
		if bd.Size() != len(dst) {
			return fmt.Errorf("%w: value of %d bytes for buffer of %d", ErrSizeMismatch, bd.Size(), len(dst))
		}
		bd.MarshalBuffer(dst)
		return nil
	}
	_, err := binary.Encode(dst, binary.LittleEndian, v)
	return err
}

func decode[T any](src []byte, v *T) error {
	if bd, ok := any(v).(BufferData); ok {
		return bd.UnmarshalBuffer(src)
	}
	_, err := binary.Decode(src, binary.LittleEndian, v)
	return err
}

// --------------------------------------------------------------------------
// Host-mirrored buffer
// --------------------------------------------------------------------------

// hostBuffer is a device buffer with a host copy and a coherency tracker.
//
// op serializes host accesses and device syncs of one buffer. It is
// always taken before the tracker mutex, and data is only touched with op
// held.
type hostBuffer struct {
	inst    *Instance
	label   string
	usage   gputypes.BufferUsage
	op      sync.Mutex
	handle  resource.Handle[gpucore.Buffer]
	tracker *coherency.Tracker
	data    []byte
}

// newHostBuffer creates the device buffer and registers the mirror. The
// host copy starts newer than the device copy.
func newHostBuffer(inst *Instance, label string, data []byte, usage gputypes.BufferUsage) (*hostBuffer, error) {
	h, err := inst.CreateBuffer(BufferDescriptor{Label: label, Size: uint64(len(data)), Usage: usage})
	if err != nil {
		return nil, err
	}
	b := &hostBuffer{
		inst:    inst,
		label:   label,
		usage:   usage,
		handle:  h,
		tracker: coherency.NewTracker(coherency.DirtyHost),
		data:    data,
	}
	inst.attachBuffer(h, b)
	return b, nil
}

// flush copies the host copy to the device. Must be called with op held.
func (b *hostBuffer) flush() error {
	buf, err := b.inst.buffers.Lookup(b.handle)
	if err != nil {
		return fmt.Errorf("%w: flush %q: %w", ErrTransfer, b.label, err)
	}
	if err := b.inst.device.WriteBuffer(buf, 0, b.data); err != nil {
		return fmt.Errorf("%w: flush %q: %w", ErrTransfer, b.label, err)
	}
	return nil
}

// pull copies the device copy to the host. Must be called with op held.
// A failed pull leaves the host copy untouched.
func (b *hostBuffer) pull() error {
	buf, err := b.inst.buffers.Lookup(b.handle)
	if err != nil {
		return fmt.Errorf("%w: pull %q: %w", ErrTransfer, b.label, err)
	}
	tmp := make([]byte, len(b.data))
	if err := b.inst.device.ReadBuffer(buf, 0, tmp); err != nil {
		return fmt.Errorf("%w: pull %q: %w", ErrTransfer, b.label, err)
	}
	copy(b.data, tmp)
	return nil
}

func (b *hostBuffer) syncDevice() error {
	b.op.Lock()
	defer b.op.Unlock()
	return b.tracker.BeforeDeviceUse(b.flush)
}

func (b *hostBuffer) deviceWrote() {
	b.op.Lock()
	b.tracker.MarkDevice()
	b.op.Unlock()
}

// read runs fn on an up-to-date host copy.
func (b *hostBuffer) read(fn func(data []byte) error) error {
	b.op.Lock()
	defer b.op.Unlock()
	if err := b.tracker.BeforeRead(b.pull); err != nil {
		return err
	}
	return fn(b.data)
}

// write runs fn on an up-to-date host copy and, if fn succeeds, marks it
// newer than the device copy. fn must validate before it mutates data.
func (b *hostBuffer) write(fn func(data []byte) error) error {
	b.op.Lock()
	defer b.op.Unlock()
	if err := b.tracker.BeforeRead(b.pull); err != nil {
		return err
	}
	if err := fn(b.data); err != nil {
		return err
	}
	b.tracker.MarkHost()
	return nil
}

// Flush copies host changes to the device now.
func (b *hostBuffer) Flush() error { return b.syncDevice() }

// Pull copies device changes to the host now.
func (b *hostBuffer) Pull() error {
	b.op.Lock()
	defer b.op.Unlock()
	return b.tracker.BeforeRead(b.pull)
}

// State returns the coherency state.
func (b *hostBuffer) State() coherency.State { return b.tracker.State() }

// Handle returns the device buffer handle without flushing.
func (b *hostBuffer) Handle() resource.Handle[gpucore.Buffer] {
	b.op.Lock()
	defer b.op.Unlock()
	return b.handle
}

// Raw flushes host changes and returns the device buffer handle.
func (b *hostBuffer) Raw() (resource.Handle[gpucore.Buffer], error) {
	b.op.Lock()
	defer b.op.Unlock()
	if err := b.tracker.BeforeDeviceUse(b.flush); err != nil {
		return resource.Handle[gpucore.Buffer]{}, err
	}
	return b.handle, nil
}

// Binding returns a BufferBinding of the whole buffer.
func (b *hostBuffer) Binding() BufferBinding {
	return BufferBinding{Buffer: b.Handle()}
}

// Release destroys the device buffer. The host copy stays readable.
func (b *hostBuffer) Release() {
	b.op.Lock()
	defer b.op.Unlock()
	b.inst.ReleaseBuffer(b.handle)
}

// --------------------------------------------------------------------------
// UniformBuffer
// --------------------------------------------------------------------------

// UniformBuffer holds one value of T in a uniform buffer.
//
// T either implements BufferData through its pointer, or is a fixed-size
// value encodable with encoding/binary. Reads pull from the device only
// when the device copy is newer; writes are flushed lazily when a bind
// group referencing the buffer is resolved, or by Flush and Raw.
type UniformBuffer[T any] struct {
	*hostBuffer
}

// NewUniformBuffer creates a uniform buffer holding value. The buffer is
// created with Config.UniformUsage.
func NewUniformBuffer[T any](inst *Instance, label string, value T) (*UniformBuffer[T], error) {
	n, err := sizeOf(&value)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if err := encode(&value, data); err != nil {
		return nil, err
	}
	b, err := newHostBuffer(inst, label, data, inst.config.uniformUsage())
	if err != nil {
		return nil, err
	}
	return &UniformBuffer[T]{hostBuffer: b}, nil
}

// Get returns the current value, pulling it if the device wrote it.
func (u *UniformBuffer[T]) Get() (T, error) {
	var v T
	err := u.read(func(data []byte) error {
		// Slice-backed values decode in place: size v like the buffer first.
		sizeLike(&v, len(data))
		return decode(data, &v)
	})
	return v, err
}

// Set replaces the value.
func (u *UniformBuffer[T]) Set(v T) error {
	return u.write(func(data []byte) error {
		return encode(&v, data)
	})
}

// Update applies fn to the current value and stores the result.
func (u *UniformBuffer[T]) Update(fn func(*T)) error {
	return u.write(func(data []byte) error {
		var v T
		sizeLike(&v, len(data))
		if err := decode(data, &v); err != nil {
			return err
		}
		fn(&v)
		return encode(&v, data)
	})
}

// sizeLike sizes the slice-backed BufferData types of this package to
// hold n bytes.
func sizeLike[T any](v *T, n int) {
	switch s := any(v).(type) {
	case *Float32s:
		*s = make(Float32s, n/4)
	case *Uint32s:
		*s = make(Uint32s, n/4)
	}
}

// --------------------------------------------------------------------------
// StorageBuffer
// --------------------------------------------------------------------------

// StorageBuffer is a byte-addressed storage buffer with a host copy.
//
// It implements io.ReaderAt and io.WriterAt over the host copy. Compute
// passes that bind it as a read-write storage buffer mark the device copy
// newer, so the next read pulls.
type StorageBuffer struct {
	*hostBuffer
}

var (
	_ io.ReaderAt = (*StorageBuffer)(nil)
	_ io.WriterAt = (*StorageBuffer)(nil)
)

// NewStorageBuffer creates a zeroed storage buffer of size bytes. Storage
// and copy usages are always added to usage.
func NewStorageBuffer(inst *Instance, label string, size int, usage gputypes.BufferUsage) (*StorageBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: storage buffer %q of %d bytes", ErrInvalidDescriptor, label, size)
	}
	return newStorageBuffer(inst, label, make([]byte, size), usage)
}

// NewStorageBufferFrom creates a storage buffer holding the encoding of
// data.
func NewStorageBufferFrom(inst *Instance, label string, data BufferData, usage gputypes.BufferUsage) (*StorageBuffer, error) {
	if data.Size() <= 0 {
		return nil, fmt.Errorf("%w: storage buffer %q of %d bytes", ErrInvalidDescriptor, label, data.Size())
	}
	bytes := make([]byte, data.Size())
	data.MarshalBuffer(bytes)
	return newStorageBuffer(inst, label, bytes, usage)
}

func newStorageBuffer(inst *Instance, label string, data []byte, usage gputypes.BufferUsage) (*StorageBuffer, error) {
	usage |= gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	b, err := newHostBuffer(inst, label, data, usage)
	if err != nil {
		return nil, err
	}
	return &StorageBuffer{hostBuffer: b}, nil
}

// Len returns the size in bytes.
func (s *StorageBuffer) Len() int {
	s.op.Lock()
	defer s.op.Unlock()
	return len(s.data)
}

// Bytes returns a copy of the contents.
func (s *StorageBuffer) Bytes() ([]byte, error) {
	var out []byte
	err := s.read(func(data []byte) error {
		out = append([]byte(nil), data...)
		return nil
	})
	return out, err
}

// Slice returns a copy of bytes [start, end).
func (s *StorageBuffer) Slice(start, end int) ([]byte, error) {
	var out []byte
	err := s.read(func(data []byte) error {
		if start < 0 || end < start || end > len(data) {
			return fmt.Errorf("%w: [%d:%d] of %d bytes", ErrOutOfRange, start, end, len(data))
		}
		out = append([]byte(nil), data[start:end]...)
		return nil
	})
	return out, err
}

// ReadAt implements io.ReaderAt.
func (s *StorageBuffer) ReadAt(p []byte, off int64) (int, error) {
	var n int
	err := s.read(func(data []byte) error {
		if off < 0 || off > int64(len(data)) {
			return fmt.Errorf("%w: offset %d of %d bytes", ErrOutOfRange, off, len(data))
		}
		n = copy(p, data[off:])
		if n < len(p) {
			return io.EOF
		}
		return nil
	})
	return n, err
}

// WriteAt implements io.WriterAt. Writes past the end fail without
// changing the buffer.
func (s *StorageBuffer) WriteAt(p []byte, off int64) (int, error) {
	err := s.write(func(data []byte) error {
		if off < 0 || off+int64(len(p)) > int64(len(data)) {
			return fmt.Errorf("%w: write [%d,+%d) into %d bytes", ErrOutOfRange, off, len(p), len(data))
		}
		copy(data[off:], p)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Load decodes the buffer at offset into dst.
func (s *StorageBuffer) Load(offset int, dst BufferData) error {
	return s.read(func(data []byte) error {
		end := offset + dst.Size()
		if offset < 0 || end > len(data) {
			return fmt.Errorf("%w: load [%d:%d] of %d bytes", ErrOutOfRange, offset, end, len(data))
		}
		return dst.UnmarshalBuffer(data[offset:end])
	})
}

// Store encodes src into the buffer at offset.
func (s *StorageBuffer) Store(offset int, src BufferData) error {
	return s.write(func(data []byte) error {
		end := offset + src.Size()
		if offset < 0 || end > len(data) {
			return fmt.Errorf("%w: store [%d:%d] into %d bytes", ErrOutOfRange, offset, end, len(data))
		}
		src.MarshalBuffer(data[offset:end])
		return nil
	})
}

// Update runs fn on the contents in place.
func (s *StorageBuffer) Update(fn func(data []byte)) error {
	return s.write(func(data []byte) error {
		fn(data)
		return nil
	})
}

// Resize replaces the device buffer with one of size bytes, keeping the
// common prefix of the contents. The handle changes: bind groups created
// with the old handle fail to resolve with resource.ErrHandleNotFound.
func (s *StorageBuffer) Resize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: resize %q to %d bytes", ErrInvalidDescriptor, s.label, size)
	}
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.tracker.BeforeRead(s.pull); err != nil {
		return err
	}
	h, err := s.inst.CreateBuffer(BufferDescriptor{Label: s.label, Size: uint64(size), Usage: s.usage})
	if err != nil {
		return err
	}
	data := make([]byte, size)
	copy(data, s.data)

	old := s.handle
	s.handle, s.data = h, data
	s.inst.attachBuffer(h, s.hostBuffer)
	s.inst.ReleaseBuffer(old)
	s.tracker.MarkHost()
	return nil
}
