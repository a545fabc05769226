package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/gpucore"
)

// copyAlignment is the size and offset granularity of buffer copies.
const copyAlignment = 4

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// CreateBuffer implements gpucore.Device.
// Copy usages are always added so the buffer can take part in transfers.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("native: buffer %q has zero size", desc.Label)
	}
	rawSize := alignUp(desc.Size, copyAlignment)
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  rawSize,
		Usage: desc.Usage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}
	slogger().Debug("native: created buffer", "label", desc.Label, "size", desc.Size)
	return &Buffer{object: object{label: desc.Label}, size: desc.Size, rawSize: rawSize, raw: raw}, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(buf gpucore.Buffer) {
	if b, err := asBuffer(buf); err == nil {
		d.device.DestroyBuffer(b.raw)
	}
}

// CreateTexture implements gpucore.Device.
// The texture is 2D with one mip level and one sample. Copy usages are
// always added.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.Texture, error) {
	if gpucore.BytesPerTexel(desc.Format) == 0 {
		return nil, fmt.Errorf("%w: texture %q", ErrUnsupportedFormat, desc.Label)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("native: texture %q has zero extent", desc.Label)
	}
	usage := desc.Usage | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst

	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(raw)
		return nil, fmt.Errorf("native: create view of %q: %w", desc.Label, err)
	}
	slogger().Debug("native: created texture", "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return &Texture{
		object: object{label: desc.Label},
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		usage:  usage,
		raw:    raw,
		view:   view,
	}, nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(tex gpucore.Texture) {
	if t, err := asTexture(tex); err == nil {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.raw)
	}
}

// CreateSampler implements gpucore.Device.
func (d *Device) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.Sampler, error) {
	raw, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
		LodMinClamp:  desc.LodMinClamp,
		LodMaxClamp:  desc.LodMaxClamp,
		Compare:      desc.Compare,
		Anisotropy:   max(desc.MaxAnisotropy, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("native: create sampler %q: %w", desc.Label, err)
	}
	return &Sampler{object: object{label: desc.Label}, raw: raw}, nil
}

// DestroySampler implements gpucore.Device.
func (d *Device) DestroySampler(s gpucore.Sampler) {
	if o, err := asSampler(s); err == nil {
		d.device.DestroySampler(o.raw)
	}
}

// CreateBindGroupLayout implements gpucore.Device.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDescriptor) (gpucore.BindGroupLayout, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entries[i] = convertLayoutEntry(e)
	}
	raw, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create bind group layout %q: %w", desc.Label, err)
	}
	return &BindGroupLayout{object: object{label: desc.Label}, raw: raw}, nil
}

// convertLayoutEntry maps a gpucore layout entry to its gputypes form.
func convertLayoutEntry(e gpucore.BindGroupLayoutEntry) gputypes.BindGroupLayoutEntry {
	result := gputypes.BindGroupLayoutEntry{Binding: e.Binding}
	if e.Visibility&gpucore.ShaderStageVertex != 0 {
		result.Visibility |= gputypes.ShaderStageVertex
	}
	if e.Visibility&gpucore.ShaderStageFragment != 0 {
		result.Visibility |= gputypes.ShaderStageFragment
	}
	if e.Visibility&gpucore.ShaderStageCompute != 0 {
		result.Visibility |= gputypes.ShaderStageCompute
	}

	switch e.Type {
	case gpucore.BindingTypeUniformBuffer:
		result.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case gpucore.BindingTypeStorageBuffer:
		result.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case gpucore.BindingTypeReadOnlyStorageBuffer:
		result.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case gpucore.BindingTypeTexture:
		result.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case gpucore.BindingTypeSampler:
		result.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return result
}

// DestroyBindGroupLayout implements gpucore.Device.
func (d *Device) DestroyBindGroupLayout(l gpucore.BindGroupLayout) {
	if o, err := asBindGroupLayout(l); err == nil {
		d.device.DestroyBindGroupLayout(o.raw)
	}
}

// CreateBindGroup implements gpucore.Device.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDescriptor) (gpucore.BindGroup, error) {
	layout, err := asBindGroupLayout(desc.Layout)
	if err != nil {
		return nil, fmt.Errorf("native: bind group %q layout: %w", desc.Label, err)
	}
	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry, err := convertGroupEntry(e)
		if err != nil {
			return nil, fmt.Errorf("native: bind group %q binding %d: %w", desc.Label, e.Binding, err)
		}
		entries[i] = entry
	}
	raw, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.raw,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create bind group %q: %w", desc.Label, err)
	}
	return &BindGroup{object: object{label: desc.Label}, raw: raw}, nil
}

// convertGroupEntry maps a gpucore bind group entry to its gputypes form.
// Exactly one of Buffer, Texture and Sampler is expected to be set.
func convertGroupEntry(e gpucore.BindGroupEntry) (gputypes.BindGroupEntry, error) {
	result := gputypes.BindGroupEntry{Binding: e.Binding}
	switch {
	case e.Buffer != nil:
		b, err := asBuffer(e.Buffer)
		if err != nil {
			return result, err
		}
		size := e.Size
		if size == 0 {
			size = b.size - e.Offset
		}
		result.Resource = gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: e.Offset, Size: size}
	case e.Texture != nil:
		t, err := asTexture(e.Texture)
		if err != nil {
			return result, err
		}
		result.Resource = gputypes.TextureViewBinding{TextureView: t.view.NativeHandle()}
	case e.Sampler != nil:
		s, err := asSampler(e.Sampler)
		if err != nil {
			return result, err
		}
		result.Resource = gputypes.SamplerBinding{Sampler: s.raw.NativeHandle()}
	default:
		return result, fmt.Errorf("native: entry %d binds no resource", e.Binding)
	}
	return result, nil
}

// DestroyBindGroup implements gpucore.Device.
func (d *Device) DestroyBindGroup(g gpucore.BindGroup) {
	if o, err := asBindGroup(g); err == nil {
		d.device.DestroyBindGroup(o.raw)
	}
}

// CreatePipelineLayout implements gpucore.Device.
func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDescriptor) (gpucore.PipelineLayout, error) {
	layouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, bl := range desc.BindGroupLayouts {
		l, err := asBindGroupLayout(bl)
		if err != nil {
			return nil, fmt.Errorf("native: pipeline layout %q group %d: %w", desc.Label, i, err)
		}
		layouts[i] = l.raw
	}
	raw, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create pipeline layout %q: %w", desc.Label, err)
	}
	return &PipelineLayout{object: object{label: desc.Label}, raw: raw}, nil
}

// DestroyPipelineLayout implements gpucore.Device.
func (d *Device) DestroyPipelineLayout(l gpucore.PipelineLayout) {
	if o, err := asPipelineLayout(l); err == nil {
		d.device.DestroyPipelineLayout(o.raw)
	}
}

// CompileWGSL compiles WGSL source to SPIR-V words.
func CompileWGSL(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("native: compile shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// CreateShaderModule implements gpucore.Device.
func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDescriptor) (gpucore.ShaderModule, error) {
	if desc.WGSL == "" {
		return nil, fmt.Errorf("native: shader module %q has empty source", desc.Label)
	}
	d.mu.RLock()
	wgsl := d.wgsl
	d.mu.RUnlock()

	var source hal.ShaderSource
	if wgsl {
		source.WGSL = desc.WGSL
	} else {
		code, err := CompileWGSL(desc.WGSL)
		if err != nil {
			return nil, fmt.Errorf("shader module %q: %w", desc.Label, err)
		}
		source.SPIRV = code
	}
	raw, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: desc.Label, Source: source})
	if err != nil {
		return nil, fmt.Errorf("native: create shader module %q: %w", desc.Label, err)
	}
	return &ShaderModule{object: object{label: desc.Label}, raw: raw}, nil
}

// DestroyShaderModule implements gpucore.Device.
func (d *Device) DestroyShaderModule(m gpucore.ShaderModule) {
	if o, err := asShaderModule(m); err == nil {
		d.device.DestroyShaderModule(o.raw)
	}
}

// CreateComputePipeline implements gpucore.Device.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDescriptor) (gpucore.ComputePipeline, error) {
	layout, err := asPipelineLayout(desc.Layout)
	if err != nil {
		return nil, fmt.Errorf("native: compute pipeline %q layout: %w", desc.Label, err)
	}
	module, err := asShaderModule(desc.Module)
	if err != nil {
		return nil, fmt.Errorf("native: compute pipeline %q module: %w", desc.Label, err)
	}
	raw, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.raw,
		Compute: hal.ComputeState{
			Module:     module.raw,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create compute pipeline %q: %w", desc.Label, err)
	}
	return &ComputePipeline{object: object{label: desc.Label}, raw: raw}, nil
}

// DestroyComputePipeline implements gpucore.Device.
func (d *Device) DestroyComputePipeline(p gpucore.ComputePipeline) {
	if o, err := asComputePipeline(p); err == nil {
		d.device.DestroyComputePipeline(o.raw)
	}
}

// CreateRenderPipeline implements gpucore.Device.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDescriptor) (gpucore.RenderPipeline, error) {
	layout, err := asPipelineLayout(desc.Layout)
	if err != nil {
		return nil, fmt.Errorf("native: render pipeline %q layout: %w", desc.Label, err)
	}
	vertex, err := asShaderModule(desc.VertexModule)
	if err != nil {
		return nil, fmt.Errorf("native: render pipeline %q vertex module: %w", desc.Label, err)
	}

	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}
	halDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.raw,
		Vertex: hal.VertexState{
			Module:     vertex.raw,
			EntryPoint: desc.VertexEntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: desc.Topology,
			CullMode: desc.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: halDepthStencil(desc.DepthStencil),
	}
	if desc.FragmentModule != nil {
		fragment, err := asShaderModule(desc.FragmentModule)
		if err != nil {
			return nil, fmt.Errorf("native: render pipeline %q fragment module: %w", desc.Label, err)
		}
		halDesc.Fragment = &hal.FragmentState{
			Module:     fragment.raw,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    desc.Targets,
		}
	}

	raw, err := d.device.CreateRenderPipeline(halDesc)
	if err != nil {
		return nil, fmt.Errorf("native: create render pipeline %q: %w", desc.Label, err)
	}
	return &RenderPipeline{object: object{label: desc.Label}, raw: raw}, nil
}

func halDepthStencil(ds *gputypes.DepthStencilState) *hal.DepthStencilState {
	if ds == nil {
		return nil
	}
	return &hal.DepthStencilState{
		Format:              ds.Format,
		DepthWriteEnabled:   ds.DepthWriteEnabled,
		DepthCompare:        ds.DepthCompare,
		StencilFront:        halStencilFace(ds.StencilFront),
		StencilBack:         halStencilFace(ds.StencilBack),
		StencilReadMask:     ds.StencilReadMask,
		StencilWriteMask:    ds.StencilWriteMask,
		DepthBias:           ds.DepthBias,
		DepthBiasSlopeScale: ds.DepthBiasSlopeScale,
		DepthBiasClamp:      ds.DepthBiasClamp,
	}
}

func halStencilFace(f gputypes.StencilFaceState) hal.StencilFaceState {
	return hal.StencilFaceState{
		Compare:     f.Compare,
		FailOp:      halStencilOp(f.FailOp),
		DepthFailOp: halStencilOp(f.DepthFailOp),
		PassOp:      halStencilOp(f.PassOp),
	}
}

// halStencilOp maps a WebGPU stencil operation onto the HAL enum, which
// has no undefined value and starts at keep.
func halStencilOp(op gputypes.StencilOperation) hal.StencilOperation {
	switch op {
	case gputypes.StencilOperationZero:
		return hal.StencilOperationZero
	case gputypes.StencilOperationReplace:
		return hal.StencilOperationReplace
	case gputypes.StencilOperationInvert:
		return hal.StencilOperationInvert
	case gputypes.StencilOperationIncrementClamp:
		return hal.StencilOperationIncrementClamp
	case gputypes.StencilOperationDecrementClamp:
		return hal.StencilOperationDecrementClamp
	case gputypes.StencilOperationIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case gputypes.StencilOperationDecrementWrap:
		return hal.StencilOperationDecrementWrap
	default:
		return hal.StencilOperationKeep
	}
}

// DestroyRenderPipeline implements gpucore.Device.
func (d *Device) DestroyRenderPipeline(p gpucore.RenderPipeline) {
	if o, err := asRenderPipeline(p); err == nil {
		d.device.DestroyRenderPipeline(o.raw)
	}
}
