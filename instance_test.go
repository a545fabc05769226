package gpures

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gpures/backend/memory"
	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/recording"
	"github.com/gogpu/gpures/resource"
)

// newTestInstance returns an instance over a fresh memory device.
func newTestInstance(t *testing.T, opts ...InstanceOption) (*Instance, *memory.Device) {
	t.Helper()
	dev := memory.New()
	inst, err := NewInstance(dev, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close() })
	return inst, dev
}

func storageLayout(label string) BindGroupLayoutDescriptor {
	return BindGroupLayoutDescriptor{
		Label:   label,
		Entries: []BindGroupLayoutEntry{StorageEntry(0, gpucore.ShaderStageCompute)},
	}
}

func TestNewInstanceNilDevice(t *testing.T) {
	_, err := NewInstance(nil)
	assert.ErrorIs(t, err, ErrNilDevice)
}

func TestNewInstanceInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TextureRowAlignment = 3
	_, err := NewInstance(memory.New(), WithConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestOpenRegisteredBackend(t *testing.T) {
	inst, err := Open("memory")
	require.NoError(t, err)
	defer inst.Close()

	_, ok := inst.Device().(*memory.Device)
	assert.True(t, ok, "device is %T", inst.Device())
}

func TestOpenDefaultsToConfigBackend(t *testing.T) {
	inst, err := Open("")
	require.NoError(t, err)
	defer inst.Close()
	assert.Equal(t, "memory", inst.Config().Backend)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("no-such-backend")
	assert.ErrorIs(t, err, gpucore.ErrUnknownBackend)

	cfg := DefaultConfig()
	cfg.Backend = "vulkan"
	_, err = Open("", WithConfig(cfg))
	assert.ErrorIs(t, err, gpucore.ErrUnknownBackend)
	assert.ErrorContains(t, err, `"vulkan"`)
}

func TestCreateOrGetDeduplicates(t *testing.T) {
	inst, dev := newTestInstance(t)

	h1, err := inst.CreateOrGetBindGroupLayout(storageLayout("data"))
	require.NoError(t, err)
	h2, err := inst.CreateOrGetBindGroupLayout(storageLayout("data"))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, dev.Creates("BindGroupLayout"))

	stats := inst.Stats().BindGroupLayouts
	assert.Equal(t, uint64(1), stats.Creates)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestCreateOrGetDistinctDescriptors(t *testing.T) {
	inst, dev := newTestInstance(t)

	a, err := inst.CreateOrGetBindGroupLayout(storageLayout("a"))
	require.NoError(t, err)
	b, err := inst.CreateOrGetBindGroupLayout(storageLayout("b"))
	require.NoError(t, err)

	other := storageLayout("a")
	other.Entries[0].Type = gpucore.BindingTypeUniformBuffer
	c, err := inst.CreateOrGetBindGroupLayout(other)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, dev.Creates("BindGroupLayout"))
}

func TestCreateOrGetConcurrent(t *testing.T) {
	inst, dev := newTestInstance(t)

	const goroutines = 32
	handles := make([]resource.Handle[gpucore.ShaderModule], goroutines)
	var wg sync.WaitGroup
	for n := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := inst.CreateOrGetShaderModule(ShaderModuleDescriptor{Label: "shared", Source: "fn main() {}"})
			assert.NoError(t, err)
			handles[n] = h
		}()
	}
	wg.Wait()

	for _, h := range handles[1:] {
		assert.Equal(t, handles[0], h)
	}
	assert.Equal(t, 1, dev.Creates("ShaderModule"))
}

func TestCreateOrGetDeviceFailure(t *testing.T) {
	inst, dev := newTestInstance(t)
	injected := errors.New("out of memory")
	dev.FailNextCreate(injected)

	_, err := inst.CreateOrGetSampler(SamplerDescriptor{Label: "linear"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceCreation)
	assert.ErrorIs(t, err, injected)
	assert.Equal(t, 0, inst.Stats().Samplers.Entries)

	// The failure is not cached: the next call creates the object.
	_, err = inst.CreateOrGetSampler(SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Stats().Samplers.Entries)
	assert.Equal(t, 1, dev.Creates("Sampler"))
}

func TestCreateOrGetBindGroupUnknownResource(t *testing.T) {
	inst, _ := newTestInstance(t)
	layout, err := inst.CreateOrGetBindGroupLayout(storageLayout("data"))
	require.NoError(t, err)

	_, err = inst.CreateOrGetBindGroup(BindGroupDescriptor{
		Label:   "data",
		Layout:  layout,
		Entries: []BindGroupEntry{{Binding: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestCreateOrGetBindGroupReleasedBuffer(t *testing.T) {
	inst, _ := newTestInstance(t)
	layout, err := inst.CreateOrGetBindGroupLayout(storageLayout("data"))
	require.NoError(t, err)
	buf, err := inst.CreateBuffer(BufferDescriptor{Label: "data", Size: 16, Usage: gputypes.BufferUsageStorage})
	require.NoError(t, err)
	require.True(t, inst.ReleaseBuffer(buf))

	_, err = inst.CreateOrGetBindGroup(BindGroupDescriptor{
		Label:   "data",
		Layout:  layout,
		Entries: []BindGroupEntry{Bind(0, BufferBinding{Buffer: buf})},
	})
	assert.ErrorIs(t, err, resource.ErrHandleNotFound)
}

func TestLabelPrefix(t *testing.T) {
	inst, dev := newTestInstance(t, WithLabelPrefix("app/"))

	_, err := inst.CreateBuffer(BufferDescriptor{Label: "vertices", Size: 64, Usage: gputypes.BufferUsageVertex})
	require.NoError(t, err)
	_, err = inst.CreateOrGetShaderModule(ShaderModuleDescriptor{Label: "main", Source: "fn main() {}"})
	require.NoError(t, err)

	assert.Contains(t, dev.Calls(), "CreateBuffer(app/vertices)")
	assert.Contains(t, dev.Calls(), "CreateShaderModule(app/main)")
}

func TestReleaseCachedObject(t *testing.T) {
	inst, dev := newTestInstance(t)
	desc := ShaderModuleDescriptor{Label: "main", Source: "fn main() {}"}

	h, err := inst.CreateOrGetShaderModule(desc)
	require.NoError(t, err)
	assert.True(t, inst.ReleaseShaderModule(h))
	assert.False(t, inst.ReleaseShaderModule(h))
	assert.Contains(t, dev.Calls(), "DestroyShaderModule(main)")

	h2, err := inst.CreateOrGetShaderModule(desc)
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)
	assert.Equal(t, 2, dev.Creates("ShaderModule"))
}

func TestCloseReleasesEverything(t *testing.T) {
	dev := memory.New()
	inst, err := NewInstance(dev)
	require.NoError(t, err)

	data, err := NewStorageBufferFrom(inst, "data", &Float32s{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	_, err = NewTexture2D(inst, "image", 4, 4, gputypes.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)
	_, err = inst.CreateOrGetSampler(SamplerDescriptor{Label: "linear"})
	require.NoError(t, err)
	ep := doubleEntryPoint(data)
	_, err = NewComputePass(inst, ep)
	require.NoError(t, err)
	require.Positive(t, dev.Live())

	require.NoError(t, inst.Close())
	assert.Equal(t, 0, dev.Live())
	require.NoError(t, inst.Close())

	_, err = inst.CreateOrGetSampler(SamplerDescriptor{Label: "linear"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = inst.CreateBuffer(BufferDescriptor{Label: "late", Size: 4})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStatsCountsRawResources(t *testing.T) {
	inst, _ := newTestInstance(t)
	for n := range 3 {
		_, err := inst.CreateBuffer(BufferDescriptor{Label: fmt.Sprintf("b%d", n), Size: 4})
		require.NoError(t, err)
	}
	_, err := inst.CreateTexture(TextureDescriptor{
		Label: "t", Width: 2, Height: 2, Format: gputypes.TextureFormatR8Unorm,
	})
	require.NoError(t, err)

	stats := inst.Stats()
	assert.Equal(t, 3, stats.Buffers)
	assert.Equal(t, 1, stats.Textures)
}

func TestCreateOrGetBufferShares(t *testing.T) {
	inst, dev := newTestInstance(t)
	desc := BufferDescriptor{Label: "params", Size: 64, Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst}

	h1, err := inst.CreateOrGetBuffer(desc)
	require.NoError(t, err)
	h2, err := inst.CreateOrGetBuffer(desc)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, dev.Creates("Buffer"))

	bigger := desc
	bigger.Size = 128
	h3, err := inst.CreateOrGetBuffer(bigger)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	require.True(t, inst.ReleaseBuffer(h1))
	h4, err := inst.CreateOrGetBuffer(desc)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)
	assert.Equal(t, 3, dev.Creates("Buffer"))
}

func TestBindGroupStaleResources(t *testing.T) {
	resolve := func(inst *Instance, g resource.Handle[gpucore.BindGroup]) error {
		list := recording.NewComputeList()
		list.SetBindGroup(0, g)
		_, err := list.Resolve(inst)
		return err
	}

	t.Run("resized storage buffer", func(t *testing.T) {
		inst, _ := newTestInstance(t)
		layout, err := inst.CreateOrGetBindGroupLayout(storageLayout("data"))
		require.NoError(t, err)
		s, err := NewStorageBuffer(inst, "data", 16, 0)
		require.NoError(t, err)
		g, err := inst.CreateOrGetBindGroup(BindGroupDescriptor{
			Label: "g", Layout: layout, Entries: []BindGroupEntry{Bind(0, s.Binding())},
		})
		require.NoError(t, err)
		require.NoError(t, resolve(inst, g))

		require.NoError(t, s.Resize(32))
		err = resolve(inst, g)
		assert.ErrorIs(t, err, resource.ErrHandleNotFound)
		var rerr *recording.ResolveError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, 0, rerr.Index)
	})

	t.Run("released raw buffer", func(t *testing.T) {
		inst, dev := newTestInstance(t)
		layout, err := inst.CreateOrGetBindGroupLayout(storageLayout("data"))
		require.NoError(t, err)
		buf, err := inst.CreateBuffer(BufferDescriptor{Label: "data", Size: 16, Usage: gputypes.BufferUsageStorage})
		require.NoError(t, err)
		g, err := inst.CreateOrGetBindGroup(BindGroupDescriptor{
			Label: "g", Layout: layout, Entries: []BindGroupEntry{Bind(0, BufferBinding{Buffer: buf})},
		})
		require.NoError(t, err)

		require.True(t, inst.ReleaseBuffer(buf))
		dev.ResetCalls()
		assert.ErrorIs(t, resolve(inst, g), resource.ErrHandleNotFound)
		assert.Empty(t, dev.Calls())
	})

	t.Run("released texture and sampler", func(t *testing.T) {
		inst, _ := newTestInstance(t)
		layout, err := inst.CreateOrGetBindGroupLayout(BindGroupLayoutDescriptor{
			Label: "image",
			Entries: []BindGroupLayoutEntry{
				TextureEntry(0, gpucore.ShaderStageFragment),
				SamplerEntry(1, gpucore.ShaderStageFragment),
			},
		})
		require.NoError(t, err)
		tex, err := NewTexture2D(inst, "image", 2, 2, gputypes.TextureFormatRGBA8Unorm, 0)
		require.NoError(t, err)
		smp, err := inst.CreateOrGetSampler(SamplerDescriptor{Label: "linear"})
		require.NoError(t, err)
		g, err := inst.CreateOrGetBindGroup(BindGroupDescriptor{
			Label: "g", Layout: layout,
			Entries: []BindGroupEntry{
				Bind(0, tex.Binding()),
				Bind(1, SamplerBinding{Sampler: smp}),
			},
		})
		require.NoError(t, err)
		require.NoError(t, resolve(inst, g))

		require.True(t, inst.ReleaseSampler(smp))
		assert.ErrorIs(t, resolve(inst, g), resource.ErrHandleNotFound)

		tex.Release()
		assert.ErrorIs(t, resolve(inst, g), resource.ErrHandleNotFound)
	})
}

func TestCreateOrGetSamplerClamps(t *testing.T) {
	inst, dev := newTestInstance(t)

	h, err := inst.CreateOrGetSampler(SamplerDescriptor{
		Label: "shadow", LodMinClamp: 1, Compare: gputypes.CompareFunctionLessEqual,
	})
	require.NoError(t, err)
	s, err := inst.Sampler(h)
	require.NoError(t, err)
	got := s.(*memory.Sampler).Descriptor()
	assert.Equal(t, float32(1), got.LodMinClamp)
	assert.Equal(t, gpucore.DefaultLodMaxClamp, got.LodMaxClamp)
	assert.Equal(t, gputypes.CompareFunctionLessEqual, got.Compare)
	assert.Equal(t, uint16(1), got.MaxAnisotropy)

	other, err := inst.CreateOrGetSampler(SamplerDescriptor{
		Label: "shadow", LodMinClamp: 2, Compare: gputypes.CompareFunctionLessEqual,
	})
	require.NoError(t, err)
	assert.NotEqual(t, h, other)

	_, err = inst.CreateOrGetSampler(SamplerDescriptor{Label: "bad", LodMinClamp: 3, LodMaxClamp: 1})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.Equal(t, 2, dev.Creates("Sampler"))
}
