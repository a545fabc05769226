package memory

import (
	"fmt"

	"github.com/gogpu/gpures/gpucore"
)

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("Buffer", desc.Label); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: buffer %q has zero size", ErrInvalidDescriptor, desc.Label)
	}

	b := &Buffer{object: object{label: desc.Label}, usage: desc.Usage, data: make([]byte, desc.Size)}
	d.createdLocked("Buffer", desc.Label)
	return b, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(buf gpucore.Buffer) {
	if b, ok := buf.(*Buffer); ok && b != nil {
		d.mu.Lock()
		d.destroyLocked("Buffer", &b.object)
		d.mu.Unlock()
	}
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("Texture", desc.Label); err != nil {
		return nil, err
	}
	bpt := gpucore.BytesPerTexel(desc.Format)
	if bpt == 0 {
		return nil, fmt.Errorf("%w: texture %q has unsupported format %v", ErrInvalidDescriptor, desc.Label, desc.Format)
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %q has zero extent", ErrInvalidDescriptor, desc.Label)
	}

	t := &Texture{
		object: object{label: desc.Label},
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		usage:  desc.Usage,
		data:   make([]byte, int(desc.Width*bpt)*int(desc.Height)),
	}
	d.createdLocked("Texture", desc.Label)
	return t, nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(tex gpucore.Texture) {
	if t, ok := tex.(*Texture); ok && t != nil {
		d.mu.Lock()
		d.destroyLocked("Texture", &t.object)
		d.mu.Unlock()
	}
}

// CreateSampler implements gpucore.Device.
func (d *Device) CreateSampler(desc *gpucore.SamplerDescriptor) (gpucore.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("Sampler", desc.Label); err != nil {
		return nil, err
	}
	s := &Sampler{object: object{label: desc.Label}, desc: *desc}
	d.createdLocked("Sampler", desc.Label)
	return s, nil
}

// DestroySampler implements gpucore.Device.
func (d *Device) DestroySampler(s gpucore.Sampler) {
	if o, ok := s.(*Sampler); ok && o != nil {
		d.mu.Lock()
		d.destroyLocked("Sampler", &o.object)
		d.mu.Unlock()
	}
}

// CreateBindGroupLayout implements gpucore.Device.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDescriptor) (gpucore.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("BindGroupLayout", desc.Label); err != nil {
		return nil, err
	}
	seen := make(map[uint32]bool, len(desc.Entries))
	for _, e := range desc.Entries {
		if seen[e.Binding] {
			return nil, fmt.Errorf("%w: layout %q declares binding %d twice", ErrInvalidDescriptor, desc.Label, e.Binding)
		}
		seen[e.Binding] = true
	}

	l := &BindGroupLayout{
		object:  object{label: desc.Label},
		entries: append([]gpucore.BindGroupLayoutEntry(nil), desc.Entries...),
	}
	d.createdLocked("BindGroupLayout", desc.Label)
	return l, nil
}

// DestroyBindGroupLayout implements gpucore.Device.
func (d *Device) DestroyBindGroupLayout(l gpucore.BindGroupLayout) {
	if o, ok := l.(*BindGroupLayout); ok && o != nil {
		d.mu.Lock()
		d.destroyLocked("BindGroupLayout", &o.object)
		d.mu.Unlock()
	}
}

// CreateBindGroup implements gpucore.Device.
// Every entry must match a binding of the layout with a resource of the
// right kind, and buffer ranges must lie within their buffer.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDescriptor) (gpucore.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("BindGroup", desc.Label); err != nil {
		return nil, err
	}
	layout, err := asBindGroupLayout(desc.Layout)
	if err != nil {
		return nil, err
	}

	for _, e := range desc.Entries {
		le, ok := layout.entry(e.Binding)
		if !ok {
			return nil, fmt.Errorf("%w: bind group %q: binding %d not in layout %q",
				ErrInvalidDescriptor, desc.Label, e.Binding, layout.label)
		}
		if err := checkBindGroupEntry(le, e); err != nil {
			return nil, fmt.Errorf("bind group %q binding %d: %w", desc.Label, e.Binding, err)
		}
	}

	g := &BindGroup{
		object:  object{label: desc.Label},
		layout:  layout,
		entries: append([]gpucore.BindGroupEntry(nil), desc.Entries...),
	}
	d.createdLocked("BindGroup", desc.Label)
	return g, nil
}

// checkBindGroupEntry validates one entry against its layout slot.
func checkBindGroupEntry(le gpucore.BindGroupLayoutEntry, e gpucore.BindGroupEntry) error {
	switch {
	case le.Type.IsBuffer():
		b, err := asBuffer(e.Buffer)
		if err != nil {
			return err
		}
		if e.Offset > b.Size() || (e.Size != 0 && e.Offset+e.Size > b.Size()) {
			return fmt.Errorf("%w: range [%d,+%d) exceeds buffer %q of %d bytes",
				ErrOutOfRange, e.Offset, e.Size, b.label, b.Size())
		}
	case le.Type == gpucore.BindingTypeTexture:
		if _, err := asTexture(e.Texture); err != nil {
			return err
		}
	case le.Type == gpucore.BindingTypeSampler:
		if _, err := asSampler(e.Sampler); err != nil {
			return err
		}
	}
	return nil
}

// DestroyBindGroup implements gpucore.Device.
func (d *Device) DestroyBindGroup(g gpucore.BindGroup) {
	if o, ok := g.(*BindGroup); ok && o != nil {
		d.mu.Lock()
		d.destroyLocked("BindGroup", &o.object)
		d.mu.Unlock()
	}
}

// CreatePipelineLayout implements gpucore.Device.
func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDescriptor) (gpucore.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("PipelineLayout", desc.Label); err != nil {
		return nil, err
	}
	layouts := make([]*BindGroupLayout, 0, len(desc.BindGroupLayouts))
	for _, bl := range desc.BindGroupLayouts {
		l, err := asBindGroupLayout(bl)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}

	l := &PipelineLayout{object: object{label: desc.Label}, layouts: layouts}
	d.createdLocked("PipelineLayout", desc.Label)
	return l, nil
}

// DestroyPipelineLayout implements gpucore.Device.
func (d *Device) DestroyPipelineLayout(l gpucore.PipelineLayout) {
	if o, ok := l.(*PipelineLayout); ok && o != nil {
		d.mu.Lock()
		d.destroyLocked("PipelineLayout", &o.object)
		d.mu.Unlock()
	}
}

// CreateShaderModule implements gpucore.Device.
// The source is stored, not compiled.
func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDescriptor) (gpucore.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("ShaderModule", desc.Label); err != nil {
		return nil, err
	}
	if desc.WGSL == "" {
		return nil, fmt.Errorf("%w: shader module %q has empty source", ErrInvalidDescriptor, desc.Label)
	}

	m := &ShaderModule{object: object{label: desc.Label}, source: desc.WGSL}
	d.createdLocked("ShaderModule", desc.Label)
	return m, nil
}

// DestroyShaderModule implements gpucore.Device.
func (d *Device) DestroyShaderModule(m gpucore.ShaderModule) {
	if o, ok := m.(*ShaderModule); ok && o != nil {
		d.mu.Lock()
		d.destroyLocked("ShaderModule", &o.object)
		d.mu.Unlock()
	}
}

// CreateComputePipeline implements gpucore.Device.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDescriptor) (gpucore.ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("ComputePipeline", desc.Label); err != nil {
		return nil, err
	}
	layout, err := asPipelineLayout(desc.Layout)
	if err != nil {
		return nil, err
	}
	if _, err := asShaderModule(desc.Module); err != nil {
		return nil, err
	}
	if desc.EntryPoint == "" {
		return nil, fmt.Errorf("%w: compute pipeline %q has no entry point", ErrInvalidDescriptor, desc.Label)
	}

	p := &ComputePipeline{object: object{label: desc.Label}, layout: layout, entryPoint: desc.EntryPoint}
	d.createdLocked("ComputePipeline", desc.Label)
	return p, nil
}

// DestroyComputePipeline implements gpucore.Device.
func (d *Device) DestroyComputePipeline(p gpucore.ComputePipeline) {
	if o, ok := p.(*ComputePipeline); ok && o != nil {
		d.mu.Lock()
		d.destroyLocked("ComputePipeline", &o.object)
		d.mu.Unlock()
	}
}

// CreateRenderPipeline implements gpucore.Device.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDescriptor) (gpucore.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.beginCreateLocked("RenderPipeline", desc.Label); err != nil {
		return nil, err
	}
	layout, err := asPipelineLayout(desc.Layout)
	if err != nil {
		return nil, err
	}
	if _, err := asShaderModule(desc.VertexModule); err != nil {
		return nil, err
	}
	if desc.FragmentModule != nil {
		if _, err := asShaderModule(desc.FragmentModule); err != nil {
			return nil, err
		}
		if len(desc.Targets) == 0 {
			return nil, fmt.Errorf("%w: render pipeline %q has a fragment stage without targets",
				ErrInvalidDescriptor, desc.Label)
		}
	}

	p := &RenderPipeline{
		object:           object{label: desc.Label},
		layout:           layout,
		vertexEntryPoint: desc.VertexEntryPoint,
		fragmentEntry:    desc.FragmentEntryPoint,
	}
	d.createdLocked("RenderPipeline", desc.Label)
	return p, nil
}

// DestroyRenderPipeline implements gpucore.Device.
func (d *Device) DestroyRenderPipeline(p gpucore.RenderPipeline) {
	if o, ok := p.(*RenderPipeline); ok && o != nil {
		d.mu.Lock()
		d.destroyLocked("RenderPipeline", &o.object)
		d.mu.Unlock()
	}
}
