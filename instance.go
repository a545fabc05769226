package gpures

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/recording"
	"github.com/gogpu/gpures/resource"
)

// ErrInvalidDescriptor is returned when a descriptor cannot describe a
// device object, for example a bind group entry without a resource.
var ErrInvalidDescriptor = errors.New("gpures: invalid descriptor")

// mirror is a resource with a host-side copy under coherency tracking.
type mirror interface {
	// syncDevice flushes the host copy if it is newer.
	syncDevice() error
	// deviceWrote records a device-side write.
	deviceWrote()
}

// Instance owns the device objects created through it and deduplicates
// them by descriptor.
//
// Cached objects (samplers, bind group layouts, bind groups, pipeline
// layouts, shader modules and pipelines) are obtained with the
// CreateOrGet methods: equal descriptors return the same handle and the
// device is asked to create the object only once. Buffers and textures are
// created directly and owned by handle; CreateOrGetBuffer shares a buffer
// among callers passing the same descriptor.
//
// Instance implements recording.Resolver. Resolving a bind group or a
// buffer flushes host-side changes of the resources it references first.
//
// Thread Safety:
// All methods are safe for concurrent use.
type Instance struct {
	device     gpucore.Device
	config     Config
	log        *slog.Logger
	ownLogger  bool
	ownsDevice bool

	buffers  *resource.Table[gpucore.Buffer]
	textures *resource.Table[gpucore.Texture]

	// sharedMu serializes CreateOrGetBuffer, so a descriptor never
	// creates two buffers.
	sharedMu      sync.Mutex
	sharedBuffers map[BufferDescriptor]resource.Handle[gpucore.Buffer]

	samplers         *resource.Cache[SamplerDescriptor, gpucore.Sampler]
	bindGroupLayouts *resource.Cache[BindGroupLayoutDescriptor, gpucore.BindGroupLayout]
	bindGroups       *resource.Cache[BindGroupDescriptor, gpucore.BindGroup]
	pipelineLayouts  *resource.Cache[PipelineLayoutDescriptor, gpucore.PipelineLayout]
	shaderModules    *resource.Cache[ShaderModuleDescriptor, gpucore.ShaderModule]
	computePipelines *resource.Cache[ComputePipelineDescriptor, gpucore.ComputePipeline]
	renderPipelines  *resource.Cache[RenderPipelineDescriptor, gpucore.RenderPipeline]

	mirrorMu       sync.RWMutex
	bufferMirrors  map[resource.Handle[gpucore.Buffer]]mirror
	textureMirrors map[resource.Handle[gpucore.Texture]]mirror

	closeOnce sync.Once
	closed    atomic.Bool
}

// Compile-time interface check.
var _ recording.Resolver = (*Instance)(nil)

// timeoutSetter is implemented by devices with a bounded readback wait.
type timeoutSetter interface {
	SetReadbackTimeout(time.Duration)
}

// NewInstance creates an instance over dev. The instance does not close
// dev.
func NewInstance(dev gpucore.Device, opts ...InstanceOption) (*Instance, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	return newInstance(dev, resolveOptions(opts))
}

// Open creates an instance over a registered backend. An empty name
// selects Config.Backend, which defaults to "memory". Backends register
// themselves when imported, so the default needs
//
//	import _ "github.com/gogpu/gpures/backend/memory"
//
// somewhere in the program. A name that no imported backend registered
// fails with an error wrapping gpucore.ErrUnknownBackend. Closing the
// instance closes the device if it implements io.Closer.
func Open(name string, opts ...InstanceOption) (*Instance, error) {
	o := resolveOptions(opts)
	if name == "" {
		name = o.config.Backend
	}
	dev, err := gpucore.Open(name)
	if err != nil {
		return nil, err
	}
	inst, err := newInstance(dev, o)
	if err != nil {
		if c, ok := dev.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	inst.ownsDevice = true
	inst.logger().Info("gpures: backend selected", "backend", name)
	return inst, nil
}

func newInstance(dev gpucore.Device, o instanceOptions) (*Instance, error) {
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	inst := &Instance{
		device:           dev,
		config:           o.config,
		log:              o.logger,
		ownLogger:        o.logger != nil,
		buffers:          resource.NewTable[gpucore.Buffer](),
		textures:         resource.NewTable[gpucore.Texture](),
		samplers:         resource.NewCache[SamplerDescriptor, gpucore.Sampler](),
		bindGroupLayouts: resource.NewCache[BindGroupLayoutDescriptor, gpucore.BindGroupLayout](),
		bindGroups:       resource.NewCache[BindGroupDescriptor, gpucore.BindGroup](),
		pipelineLayouts:  resource.NewCache[PipelineLayoutDescriptor, gpucore.PipelineLayout](),
		shaderModules:    resource.NewCache[ShaderModuleDescriptor, gpucore.ShaderModule](),
		computePipelines: resource.NewCache[ComputePipelineDescriptor, gpucore.ComputePipeline](),
		renderPipelines:  resource.NewCache[RenderPipelineDescriptor, gpucore.RenderPipeline](),
		sharedBuffers:    make(map[BufferDescriptor]resource.Handle[gpucore.Buffer]),
		bufferMirrors:    make(map[resource.Handle[gpucore.Buffer]]mirror),
		textureMirrors:   make(map[resource.Handle[gpucore.Texture]]mirror),
	}

	propagateLogger(dev, inst.logger())
	if ts, ok := dev.(timeoutSetter); ok {
		ts.SetReadbackTimeout(time.Duration(o.config.ReadbackTimeout))
	}
	track(inst)

	inst.logger().Info("gpures: instance created", "device", fmt.Sprintf("%T", dev))
	return inst, nil
}

// logger returns the instance logger, falling back to the package logger.
func (i *Instance) logger() *slog.Logger {
	if i.log != nil {
		return i.log
	}
	return Logger()
}

// label applies the configured prefix to a device object label.
func (i *Instance) label(l string) string {
	return i.config.LabelPrefix + l
}

// Device returns the underlying device.
func (i *Instance) Device() gpucore.Device { return i.device }

// Config returns the instance configuration.
func (i *Instance) Config() Config { return i.config }

func (i *Instance) checkOpen() error {
	if i.closed.Load() {
		return ErrClosed
	}
	return nil
}

// deviceError wraps a device failure to create an object.
func deviceError(kind, label string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrDeviceCreation, kind, label, err)
}

// getOrCreate runs the cache protocol for one kind of object.
func getOrCreate[D resource.Descriptor, T any](
	i *Instance,
	kind string,
	cache *resource.Cache[D, T],
	desc D,
	label string,
	create func(label string) (T, error),
) (resource.Handle[T], error) {
	if err := i.checkOpen(); err != nil {
		return resource.Handle[T]{}, err
	}
	created := false
	h, err := cache.GetOrCreate(desc, func() (T, error) {
		obj, err := create(i.label(label))
		if err != nil {
			i.logger().Debug("gpures: create failed", "kind", kind, "label", label, "err", err)
			return obj, err
		}
		created = true
		i.logger().Debug("gpures: cache miss, created", "kind", kind, "label", label)
		return obj, nil
	})
	if err == nil && !created {
		i.logger().Debug("gpures: cache hit", "kind", kind, "label", label, "handle", h.Value())
	}
	return h, err
}

// --------------------------------------------------------------------------
// Cached objects
// --------------------------------------------------------------------------

// CreateOrGetSampler returns the sampler described by desc.
func (i *Instance) CreateOrGetSampler(desc SamplerDescriptor) (resource.Handle[gpucore.Sampler], error) {
	if err := desc.validate(); err != nil {
		return resource.Handle[gpucore.Sampler]{}, err
	}
	return getOrCreate(i, "sampler", i.samplers, desc, desc.Label, func(label string) (gpucore.Sampler, error) {
		n := desc.normalized()
		s, err := i.device.CreateSampler(&gpucore.SamplerDescriptor{
			Label:         label,
			AddressModeU:  n.AddressModeU,
			AddressModeV:  n.AddressModeV,
			AddressModeW:  n.AddressModeW,
			MagFilter:     n.MagFilter,
			MinFilter:     n.MinFilter,
			MipmapFilter:  n.MipmapFilter,
			LodMinClamp:   n.LodMinClamp,
			LodMaxClamp:   n.LodMaxClamp,
			Compare:       n.Compare,
			MaxAnisotropy: n.MaxAnisotropy,
		})
		if err != nil {
			return nil, deviceError("sampler", desc.Label, err)
		}
		return s, nil
	})
}

// CreateOrGetBindGroupLayout returns the bind group layout described by desc.
func (i *Instance) CreateOrGetBindGroupLayout(desc BindGroupLayoutDescriptor) (resource.Handle[gpucore.BindGroupLayout], error) {
	return getOrCreate(i, "bind group layout", i.bindGroupLayouts, desc, desc.Label, func(label string) (gpucore.BindGroupLayout, error) {
		l, err := i.device.CreateBindGroupLayout(&gpucore.BindGroupLayoutDescriptor{
			Label:   label,
			Entries: append([]gpucore.BindGroupLayoutEntry(nil), desc.Entries...),
		})
		if err != nil {
			return nil, deviceError("bind group layout", desc.Label, err)
		}
		return l, nil
	})
}

// CreateOrGetBindGroup returns the bind group described by desc.
// The layout and every bound resource must be live.
func (i *Instance) CreateOrGetBindGroup(desc BindGroupDescriptor) (resource.Handle[gpucore.BindGroup], error) {
	return getOrCreate(i, "bind group", i.bindGroups, desc, desc.Label, func(label string) (gpucore.BindGroup, error) {
		layout, err := i.bindGroupLayouts.Resolve(desc.Layout)
		if err != nil {
			return nil, fmt.Errorf("gpures: bind group %q layout: %w", desc.Label, err)
		}
		entries := make([]gpucore.BindGroupEntry, len(desc.Entries))
		for n, e := range desc.Entries {
			entries[n], err = i.resolveEntry(e)
			if err != nil {
				return nil, fmt.Errorf("gpures: bind group %q binding %d: %w", desc.Label, e.Binding, err)
			}
		}
		g, err := i.device.CreateBindGroup(&gpucore.BindGroupDescriptor{
			Label:   label,
			Layout:  layout,
			Entries: entries,
		})
		if err != nil {
			return nil, deviceError("bind group", desc.Label, err)
		}
		return g, nil
	})
}

// resolveEntry replaces the handle of a binding with its live object.
func (i *Instance) resolveEntry(e BindGroupEntry) (gpucore.BindGroupEntry, error) {
	out := gpucore.BindGroupEntry{Binding: e.Binding}
	switch r := e.Resource.(type) {
	case BufferBinding:
		buf, err := i.buffers.Lookup(r.Buffer)
		if err != nil {
			return out, err
		}
		out.Buffer, out.Offset, out.Size = buf, r.Offset, r.Size
	case TextureBinding:
		tex, err := i.textures.Lookup(r.Texture)
		if err != nil {
			return out, err
		}
		out.Texture = tex
	case SamplerBinding:
		s, err := i.samplers.Resolve(r.Sampler)
		if err != nil {
			return out, err
		}
		out.Sampler = s
	default:
		return out, fmt.Errorf("%w: unsupported binding resource %T", ErrInvalidDescriptor, e.Resource)
	}
	return out, nil
}

// CreateOrGetPipelineLayout returns the pipeline layout described by desc.
func (i *Instance) CreateOrGetPipelineLayout(desc PipelineLayoutDescriptor) (resource.Handle[gpucore.PipelineLayout], error) {
	return getOrCreate(i, "pipeline layout", i.pipelineLayouts, desc, desc.Label, func(label string) (gpucore.PipelineLayout, error) {
		layouts := make([]gpucore.BindGroupLayout, len(desc.BindGroupLayouts))
		for n, h := range desc.BindGroupLayouts {
			l, err := i.bindGroupLayouts.Resolve(h)
			if err != nil {
				return nil, fmt.Errorf("gpures: pipeline layout %q group %d: %w", desc.Label, n, err)
			}
			layouts[n] = l
		}
		l, err := i.device.CreatePipelineLayout(&gpucore.PipelineLayoutDescriptor{
			Label:            label,
			BindGroupLayouts: layouts,
		})
		if err != nil {
			return nil, deviceError("pipeline layout", desc.Label, err)
		}
		return l, nil
	})
}

// CreateOrGetShaderModule returns the shader module described by desc.
func (i *Instance) CreateOrGetShaderModule(desc ShaderModuleDescriptor) (resource.Handle[gpucore.ShaderModule], error) {
	return getOrCreate(i, "shader module", i.shaderModules, desc, desc.Label, func(label string) (gpucore.ShaderModule, error) {
		m, err := i.device.CreateShaderModule(&gpucore.ShaderModuleDescriptor{
			Label: label,
			WGSL:  desc.Source,
		})
		if err != nil {
			return nil, deviceError("shader module", desc.Label, err)
		}
		return m, nil
	})
}

// CreateOrGetComputePipeline returns the compute pipeline described by desc.
func (i *Instance) CreateOrGetComputePipeline(desc ComputePipelineDescriptor) (resource.Handle[gpucore.ComputePipeline], error) {
	return getOrCreate(i, "compute pipeline", i.computePipelines, desc, desc.Label, func(label string) (gpucore.ComputePipeline, error) {
		layout, err := i.pipelineLayouts.Resolve(desc.Layout)
		if err != nil {
			return nil, fmt.Errorf("gpures: compute pipeline %q layout: %w", desc.Label, err)
		}
		module, err := i.shaderModules.Resolve(desc.Module)
		if err != nil {
			return nil, fmt.Errorf("gpures: compute pipeline %q module: %w", desc.Label, err)
		}
		p, err := i.device.CreateComputePipeline(&gpucore.ComputePipelineDescriptor{
			Label:      label,
			Layout:     layout,
			Module:     module,
			EntryPoint: desc.EntryPoint,
		})
		if err != nil {
			return nil, deviceError("compute pipeline", desc.Label, err)
		}
		return p, nil
	})
}

// CreateOrGetRenderPipeline returns the render pipeline described by desc.
func (i *Instance) CreateOrGetRenderPipeline(desc RenderPipelineDescriptor) (resource.Handle[gpucore.RenderPipeline], error) {
	return getOrCreate(i, "render pipeline", i.renderPipelines, desc, desc.Label, func(label string) (gpucore.RenderPipeline, error) {
		layout, err := i.pipelineLayouts.Resolve(desc.Layout)
		if err != nil {
			return nil, fmt.Errorf("gpures: render pipeline %q layout: %w", desc.Label, err)
		}
		vertex, err := i.shaderModules.Resolve(desc.VertexModule)
		if err != nil {
			return nil, fmt.Errorf("gpures: render pipeline %q vertex module: %w", desc.Label, err)
		}
		resolved := &gpucore.RenderPipelineDescriptor{
			Label:            label,
			Layout:           layout,
			VertexModule:     vertex,
			VertexEntryPoint: desc.VertexEntryPoint,
			VertexBuffers:    desc.VertexBuffers,
			Topology:         desc.Topology,
			CullMode:         desc.CullMode,
			SampleCount:      desc.SampleCount,
			DepthStencil:     desc.DepthStencil,
		}
		if f := desc.Fragment; f != nil {
			resolved.FragmentModule, err = i.shaderModules.Resolve(f.Module)
			if err != nil {
				return nil, fmt.Errorf("gpures: render pipeline %q fragment module: %w", desc.Label, err)
			}
			resolved.FragmentEntryPoint = f.EntryPoint
			resolved.Targets = f.Targets
		}
		p, err := i.device.CreateRenderPipeline(resolved)
		if err != nil {
			return nil, deviceError("render pipeline", desc.Label, err)
		}
		return p, nil
	})
}

// --------------------------------------------------------------------------
// Raw resources
// --------------------------------------------------------------------------

// CreateBuffer creates a buffer owned by the instance. Raw buffers are
// not deduplicated and have no host copy.
func (i *Instance) CreateBuffer(desc BufferDescriptor) (resource.Handle[gpucore.Buffer], error) {
	if err := i.checkOpen(); err != nil {
		return resource.Handle[gpucore.Buffer]{}, err
	}
	label := desc.Label
	desc.Label = i.label(label)
	buf, err := i.device.CreateBuffer(&desc)
	if err != nil {
		return resource.Handle[gpucore.Buffer]{}, deviceError("buffer", label, err)
	}
	h := i.buffers.Push(buf)
	i.logger().Debug("gpures: buffer created", "label", label, "size", desc.Size, "handle", h.Value())
	return h, nil
}

// CreateOrGetBuffer returns the buffer created for an equal descriptor,
// creating it on first use. Shared buffers have no host copy; releasing
// one with ReleaseBuffer makes the next call create a new buffer.
func (i *Instance) CreateOrGetBuffer(desc BufferDescriptor) (resource.Handle[gpucore.Buffer], error) {
	i.sharedMu.Lock()
	defer i.sharedMu.Unlock()

	if h, ok := i.sharedBuffers[desc]; ok && i.buffers.Contains(h) {
		i.logger().Debug("gpures: cache hit", "kind", "buffer", "label", desc.Label)
		return h, nil
	}
	h, err := i.CreateBuffer(desc)
	if err != nil {
		return h, err
	}
	i.sharedBuffers[desc] = h
	return h, nil
}

// CreateTexture creates a texture owned by the instance.
func (i *Instance) CreateTexture(desc TextureDescriptor) (resource.Handle[gpucore.Texture], error) {
	if err := i.checkOpen(); err != nil {
		return resource.Handle[gpucore.Texture]{}, err
	}
	label := desc.Label
	desc.Label = i.label(label)
	tex, err := i.device.CreateTexture(&desc)
	if err != nil {
		return resource.Handle[gpucore.Texture]{}, deviceError("texture", label, err)
	}
	h := i.textures.Push(tex)
	i.logger().Debug("gpures: texture created", "label", label, "width", desc.Width, "height", desc.Height)
	return h, nil
}

// Texture returns the live texture of h.
func (i *Instance) Texture(h resource.Handle[gpucore.Texture]) (gpucore.Texture, error) {
	if err := i.syncTexture(h); err != nil {
		return nil, err
	}
	return i.textures.Lookup(h)
}

// Sampler returns the live sampler of h.
func (i *Instance) Sampler(h resource.Handle[gpucore.Sampler]) (gpucore.Sampler, error) {
	return i.samplers.Resolve(h)
}

// --------------------------------------------------------------------------
// Release
// --------------------------------------------------------------------------

// ReleaseBuffer destroys a buffer. It reports whether h was live.
func (i *Instance) ReleaseBuffer(h resource.Handle[gpucore.Buffer]) bool {
	buf, ok := i.buffers.Remove(h)
	if ok {
		i.mirrorMu.Lock()
		delete(i.bufferMirrors, h)
		i.mirrorMu.Unlock()
		i.sharedMu.Lock()
		for d, sh := range i.sharedBuffers {
			if sh == h {
				delete(i.sharedBuffers, d)
			}
		}
		i.sharedMu.Unlock()
		i.device.DestroyBuffer(buf)
	}
	return ok
}

// ReleaseTexture destroys a texture. It reports whether h was live.
func (i *Instance) ReleaseTexture(h resource.Handle[gpucore.Texture]) bool {
	tex, ok := i.textures.Remove(h)
	if ok {
		i.mirrorMu.Lock()
		delete(i.textureMirrors, h)
		i.mirrorMu.Unlock()
		i.device.DestroyTexture(tex)
	}
	return ok
}

func release[D resource.Descriptor, T any](c *resource.Cache[D, T], h resource.Handle[T], destroy func(T)) bool {
	obj, ok := c.Remove(h)
	if ok {
		destroy(obj)
	}
	return ok
}

// ReleaseSampler destroys a cached sampler.
func (i *Instance) ReleaseSampler(h resource.Handle[gpucore.Sampler]) bool {
	return release(i.samplers, h, i.device.DestroySampler)
}

// ReleaseBindGroupLayout destroys a cached bind group layout.
func (i *Instance) ReleaseBindGroupLayout(h resource.Handle[gpucore.BindGroupLayout]) bool {
	return release(i.bindGroupLayouts, h, i.device.DestroyBindGroupLayout)
}

// ReleaseBindGroup destroys a cached bind group.
func (i *Instance) ReleaseBindGroup(h resource.Handle[gpucore.BindGroup]) bool {
	return release(i.bindGroups, h, i.device.DestroyBindGroup)
}

// ReleasePipelineLayout destroys a cached pipeline layout.
func (i *Instance) ReleasePipelineLayout(h resource.Handle[gpucore.PipelineLayout]) bool {
	return release(i.pipelineLayouts, h, i.device.DestroyPipelineLayout)
}

// ReleaseShaderModule destroys a cached shader module.
func (i *Instance) ReleaseShaderModule(h resource.Handle[gpucore.ShaderModule]) bool {
	return release(i.shaderModules, h, i.device.DestroyShaderModule)
}

// ReleaseComputePipeline destroys a cached compute pipeline.
func (i *Instance) ReleaseComputePipeline(h resource.Handle[gpucore.ComputePipeline]) bool {
	return release(i.computePipelines, h, i.device.DestroyComputePipeline)
}

// ReleaseRenderPipeline destroys a cached render pipeline.
func (i *Instance) ReleaseRenderPipeline(h resource.Handle[gpucore.RenderPipeline]) bool {
	return release(i.renderPipelines, h, i.device.DestroyRenderPipeline)
}

// releaseAll destroys every object of a cache.
func releaseAll[D resource.Descriptor, T any](c *resource.Cache[D, T], destroy func(T)) int {
	var handles []resource.Handle[T]
	c.Range(func(h resource.Handle[T], _ T) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		release(c, h, destroy)
	}
	return len(handles)
}

// Close destroys every object owned by the instance, dependents first.
// If the instance opened its device, the device is closed too. Close is
// idempotent; later operations return ErrClosed.
func (i *Instance) Close() error {
	var err error
	i.closeOnce.Do(func() {
		i.closed.Store(true)
		untrack(i)

		d := i.device
		n := releaseAll(i.bindGroups, d.DestroyBindGroup)
		n += releaseAll(i.computePipelines, d.DestroyComputePipeline)
		n += releaseAll(i.renderPipelines, d.DestroyRenderPipeline)
		n += releaseAll(i.pipelineLayouts, d.DestroyPipelineLayout)
		n += releaseAll(i.bindGroupLayouts, d.DestroyBindGroupLayout)
		n += releaseAll(i.shaderModules, d.DestroyShaderModule)
		n += releaseAll(i.samplers, d.DestroySampler)

		var textures []resource.Handle[gpucore.Texture]
		i.textures.Range(func(h resource.Handle[gpucore.Texture], _ gpucore.Texture) bool {
			textures = append(textures, h)
			return true
		})
		for _, h := range textures {
			i.ReleaseTexture(h)
		}
		var buffers []resource.Handle[gpucore.Buffer]
		i.buffers.Range(func(h resource.Handle[gpucore.Buffer], _ gpucore.Buffer) bool {
			buffers = append(buffers, h)
			return true
		})
		for _, h := range buffers {
			i.ReleaseBuffer(h)
		}
		n += len(textures) + len(buffers)

		var errs []error
		if c, ok := d.(io.Closer); ok && i.ownsDevice {
			if cerr := c.Close(); cerr != nil {
				i.logger().Warn("gpures: device close failed", "err", cerr)
				errs = append(errs, fmt.Errorf("gpures: close device: %w", cerr))
			}
		}
		err = errors.Join(errs...)
		i.logger().Info("gpures: instance closed", "released", n)
	})
	return err
}

// --------------------------------------------------------------------------
// Coherency hooks
// --------------------------------------------------------------------------

func (i *Instance) attachBuffer(h resource.Handle[gpucore.Buffer], m mirror) {
	i.mirrorMu.Lock()
	i.bufferMirrors[h] = m
	i.mirrorMu.Unlock()
}

func (i *Instance) attachTexture(h resource.Handle[gpucore.Texture], m mirror) {
	i.mirrorMu.Lock()
	i.textureMirrors[h] = m
	i.mirrorMu.Unlock()
}

func (i *Instance) bufferMirror(h resource.Handle[gpucore.Buffer]) mirror {
	i.mirrorMu.RLock()
	defer i.mirrorMu.RUnlock()
	return i.bufferMirrors[h]
}

func (i *Instance) textureMirror(h resource.Handle[gpucore.Texture]) mirror {
	i.mirrorMu.RLock()
	defer i.mirrorMu.RUnlock()
	return i.textureMirrors[h]
}

// syncBuffer flushes the host copy of h if it has one and it is newer.
func (i *Instance) syncBuffer(h resource.Handle[gpucore.Buffer]) error {
	if m := i.bufferMirror(h); m != nil {
		return m.syncDevice()
	}
	return nil
}

// syncTexture flushes the host copy of h if it has one and it is newer.
func (i *Instance) syncTexture(h resource.Handle[gpucore.Texture]) error {
	if m := i.textureMirror(h); m != nil {
		return m.syncDevice()
	}
	return nil
}

// --------------------------------------------------------------------------
// recording.Resolver
// --------------------------------------------------------------------------

// ComputePipeline implements recording.Resolver.
func (i *Instance) ComputePipeline(h resource.Handle[gpucore.ComputePipeline]) (gpucore.ComputePipeline, error) {
	return i.computePipelines.Resolve(h)
}

// RenderPipeline implements recording.Resolver.
func (i *Instance) RenderPipeline(h resource.Handle[gpucore.RenderPipeline]) (gpucore.RenderPipeline, error) {
	return i.renderPipelines.Resolve(h)
}

// BindGroup implements recording.Resolver.
// Every bound resource must still be live: a bind group referencing a
// released or resized buffer, texture or sampler fails with
// resource.ErrHandleNotFound. Host-side changes of the bound buffers and
// textures are flushed first.
func (i *Instance) BindGroup(h resource.Handle[gpucore.BindGroup]) (gpucore.BindGroup, error) {
	g, err := i.bindGroups.Resolve(h)
	if err != nil {
		return nil, err
	}
	desc, _ := i.bindGroups.Descriptor(h)
	for _, e := range desc.Entries {
		switch r := e.Resource.(type) {
		case BufferBinding:
			if _, err = i.buffers.Lookup(r.Buffer); err == nil {
				err = i.syncBuffer(r.Buffer)
			}
		case TextureBinding:
			if _, err = i.textures.Lookup(r.Texture); err == nil {
				err = i.syncTexture(r.Texture)
			}
		case SamplerBinding:
			_, err = i.samplers.Resolve(r.Sampler)
		}
		if err != nil {
			return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, e.Binding, err)
		}
	}
	return g, nil
}

// Buffer implements recording.Resolver.
// A host-side change of the buffer is flushed first.
func (i *Instance) Buffer(h resource.Handle[gpucore.Buffer]) (gpucore.Buffer, error) {
	if err := i.syncBuffer(h); err != nil {
		return nil, err
	}
	return i.buffers.Lookup(h)
}

// markWritten records device writes through the storage bindings of g.
func (i *Instance) markWritten(g resource.Handle[gpucore.BindGroup]) {
	desc, ok := i.bindGroups.Descriptor(g)
	if !ok {
		return
	}
	layout, ok := i.bindGroupLayouts.Descriptor(desc.Layout)
	if !ok {
		return
	}
	for _, e := range desc.Entries {
		b, ok := e.Resource.(BufferBinding)
		if !ok {
			continue
		}
		if le, ok := layout.entry(e.Binding); ok && le.Type == gpucore.BindingTypeStorageBuffer {
			if m := i.bufferMirror(b.Buffer); m != nil {
				m.deviceWrote()
			}
		}
	}
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats reports the live object counts and cache statistics of an
// instance.
type Stats struct {
	Buffers  int
	Textures int

	Samplers         resource.CacheStats
	BindGroupLayouts resource.CacheStats
	BindGroups       resource.CacheStats
	PipelineLayouts  resource.CacheStats
	ShaderModules    resource.CacheStats
	ComputePipelines resource.CacheStats
	RenderPipelines  resource.CacheStats
}

// Stats returns a snapshot of instance statistics.
func (i *Instance) Stats() Stats {
	return Stats{
		Buffers:          i.buffers.Len(),
		Textures:         i.textures.Len(),
		Samplers:         i.samplers.Stats(),
		BindGroupLayouts: i.bindGroupLayouts.Stats(),
		BindGroups:       i.bindGroups.Stats(),
		PipelineLayouts:  i.pipelineLayouts.Stats(),
		ShaderModules:    i.shaderModules.Stats(),
		ComputePipelines: i.computePipelines.Stats(),
		RenderPipelines:  i.renderPipelines.Stats(),
	}
}
