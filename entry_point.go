package gpures

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/resource"
)

// EntryPoint describes a shader entry point together with the resources it
// needs: one bind group layout per group index and the bind groups that
// fill them.
//
// ComputeEntryPoint and RenderEntryPoint cover the usual cases. Custom
// implementations let a type derive its layouts and bindings from its own
// fields.
type EntryPoint interface {
	// ShaderModule returns the module holding the entry point.
	ShaderModule() ShaderModuleDescriptor

	// EntryName returns the entry point symbol.
	EntryName() string

	// BindGroupLayouts returns the layouts in group index order.
	BindGroupLayouts() []BindGroupLayoutDescriptor

	// BindGroups returns one bind group per layout handle.
	BindGroups(layouts []resource.Handle[gpucore.BindGroupLayout]) ([]BindGroupDescriptor, error)
}

// Bindings lists the resources bound to each group, indexed by group.
type Bindings [][]BindGroupEntry

// Check reports whether every slot of layouts is bound exactly once with a
// resource of the expected kind.
func (b Bindings) Check(layouts []BindGroupLayoutDescriptor) error {
	if len(b) != len(layouts) {
		return fmt.Errorf("%w: %d bind groups for %d layouts", ErrInvalidDescriptor, len(b), len(layouts))
	}
	for g, layout := range layouts {
		entries := b[g]
		if len(entries) != len(layout.Entries) {
			return fmt.Errorf("%w: group %d binds %d resources, layout %q has %d slots",
				ErrInvalidDescriptor, g, len(entries), layout.Label, len(layout.Entries))
		}
		seen := make(map[uint32]bool, len(entries))
		for _, e := range entries {
			if seen[e.Binding] {
				return fmt.Errorf("%w: group %d binding %d bound twice", ErrInvalidDescriptor, g, e.Binding)
			}
			seen[e.Binding] = true
			slot, ok := layout.entry(e.Binding)
			if !ok {
				return fmt.Errorf("%w: group %d binding %d not in layout %q", ErrInvalidDescriptor, g, e.Binding, layout.Label)
			}
			if !resourceFits(slot.Type, e.Resource) {
				return fmt.Errorf("%w: group %d binding %d expects %v, got %T",
					ErrInvalidDescriptor, g, e.Binding, slot.Type, e.Resource)
			}
		}
	}
	return nil
}

// Groups builds the bind group descriptors for layouts. Group g is
// labelled "<label>_group<g>".
func (b Bindings) Groups(label string, layouts []resource.Handle[gpucore.BindGroupLayout]) ([]BindGroupDescriptor, error) {
	if len(b) != len(layouts) {
		return nil, fmt.Errorf("%w: %d bind groups for %d layouts", ErrInvalidDescriptor, len(b), len(layouts))
	}
	groups := make([]BindGroupDescriptor, len(b))
	for g, entries := range b {
		groups[g] = BindGroupDescriptor{
			Label:   fmt.Sprintf("%s_group%d", label, g),
			Layout:  layouts[g],
			Entries: entries,
		}
	}
	return groups, nil
}

func resourceFits(t gpucore.BindingType, r BindingResource) bool {
	switch r.(type) {
	case BufferBinding:
		return t.IsBuffer()
	case TextureBinding:
		return t == gpucore.BindingTypeTexture
	case SamplerBinding:
		return t == gpucore.BindingTypeSampler
	}
	return false
}

// Layout entry helpers.

// UniformEntry declares a uniform buffer slot.
func UniformEntry(binding uint32, visibility gpucore.ShaderStage) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Visibility: visibility, Type: gpucore.BindingTypeUniformBuffer}
}

// StorageEntry declares a read-write storage buffer slot.
func StorageEntry(binding uint32, visibility gpucore.ShaderStage) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Visibility: visibility, Type: gpucore.BindingTypeStorageBuffer}
}

// ReadOnlyStorageEntry declares a read-only storage buffer slot.
func ReadOnlyStorageEntry(binding uint32, visibility gpucore.ShaderStage) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Visibility: visibility, Type: gpucore.BindingTypeReadOnlyStorageBuffer}
}

// TextureEntry declares a sampled texture slot.
func TextureEntry(binding uint32, visibility gpucore.ShaderStage) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Visibility: visibility, Type: gpucore.BindingTypeTexture}
}

// SamplerEntry declares a sampler slot.
func SamplerEntry(binding uint32, visibility gpucore.ShaderStage) BindGroupLayoutEntry {
	return BindGroupLayoutEntry{Binding: binding, Visibility: visibility, Type: gpucore.BindingTypeSampler}
}

// Bind returns a bind group entry binding r to binding.
func Bind(binding uint32, r BindingResource) BindGroupEntry {
	return BindGroupEntry{Binding: binding, Resource: r}
}

// ComputeEntryPoint is a compute shader entry point with its bindings.
type ComputeEntryPoint struct {
	Label    string
	Source   string // WGSL
	Entry    string
	Layouts  []BindGroupLayoutDescriptor
	Bindings Bindings
}

// ShaderModule implements EntryPoint.
func (c *ComputeEntryPoint) ShaderModule() ShaderModuleDescriptor {
	return ShaderModuleDescriptor{Label: c.Label, Source: c.Source}
}

// EntryName implements EntryPoint.
func (c *ComputeEntryPoint) EntryName() string { return c.Entry }

// BindGroupLayouts implements EntryPoint.
func (c *ComputeEntryPoint) BindGroupLayouts() []BindGroupLayoutDescriptor { return c.Layouts }

// BindGroups implements EntryPoint. The bindings are checked against the
// layouts first.
func (c *ComputeEntryPoint) BindGroups(layouts []resource.Handle[gpucore.BindGroupLayout]) ([]BindGroupDescriptor, error) {
	if err := c.Bindings.Check(c.Layouts); err != nil {
		return nil, err
	}
	return c.Bindings.Groups(c.Label, layouts)
}

// RenderEntryPoint is a vertex entry point with an optional fragment entry
// point in the same module. An empty FragmentEntry makes a vertex-only
// pipeline.
type RenderEntryPoint struct {
	Label         string
	Source        string // WGSL
	VertexEntry   string
	FragmentEntry string

	Layouts  []BindGroupLayoutDescriptor
	Bindings Bindings

	VertexBuffers []gputypes.VertexBufferLayout
	Targets       []gputypes.ColorTargetState
	Topology      gputypes.PrimitiveTopology
	CullMode      gputypes.CullMode
	SampleCount   uint32
	DepthStencil  *gputypes.DepthStencilState
}

// ShaderModule implements EntryPoint.
func (r *RenderEntryPoint) ShaderModule() ShaderModuleDescriptor {
	return ShaderModuleDescriptor{Label: r.Label, Source: r.Source}
}

// EntryName implements EntryPoint and returns the vertex entry point.
func (r *RenderEntryPoint) EntryName() string { return r.VertexEntry }

// BindGroupLayouts implements EntryPoint.
func (r *RenderEntryPoint) BindGroupLayouts() []BindGroupLayoutDescriptor { return r.Layouts }

// BindGroups implements EntryPoint.
func (r *RenderEntryPoint) BindGroups(layouts []resource.Handle[gpucore.BindGroupLayout]) ([]BindGroupDescriptor, error) {
	if err := r.Bindings.Check(r.Layouts); err != nil {
		return nil, err
	}
	return r.Bindings.Groups(r.Label, layouts)
}

// pipeline builds the render pipeline descriptor for the given layout and
// module.
func (r *RenderEntryPoint) pipeline(layout resource.Handle[gpucore.PipelineLayout], module resource.Handle[gpucore.ShaderModule]) RenderPipelineDescriptor {
	desc := RenderPipelineDescriptor{
		Label:            r.Label,
		Layout:           layout,
		VertexModule:     module,
		VertexEntryPoint: r.VertexEntry,
		VertexBuffers:    r.VertexBuffers,
		Topology:         r.Topology,
		CullMode:         r.CullMode,
		SampleCount:      r.SampleCount,
		DepthStencil:     r.DepthStencil,
	}
	if r.FragmentEntry != "" {
		desc.Fragment = &FragmentState{
			Module:     module,
			EntryPoint: r.FragmentEntry,
			Targets:    r.Targets,
		}
	}
	return desc
}

// Compile-time interface checks.
var (
	_ EntryPoint = (*ComputeEntryPoint)(nil)
	_ EntryPoint = (*RenderEntryPoint)(nil)
)
