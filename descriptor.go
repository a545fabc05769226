package gpures

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/resource"
)

// Descriptors in this file are the caller-side descriptions of cached
// device objects. Nested objects are referenced by handle. Every field,
// the label included, takes part in equality: two descriptors share a
// device object exactly when their CacheKeys are equal.

// BufferDescriptor describes a raw buffer created with
// Instance.CreateBuffer.
type BufferDescriptor = gpucore.BufferDescriptor

// TextureDescriptor describes a raw texture created with
// Instance.CreateTexture.
type TextureDescriptor = gpucore.TextureDescriptor

// BindGroupLayoutEntry describes one binding slot of a layout.
type BindGroupLayoutEntry = gpucore.BindGroupLayoutEntry

// keyWriter builds canonical cache keys. Every value is terminated, and
// strings are quoted, so distinct field sequences never collide.
type keyWriter struct {
	b strings.Builder
}

func newKey(kind string) *keyWriter {
	w := &keyWriter{}
	w.b.WriteString(kind)
	w.b.WriteByte('{')
	return w
}

func (w *keyWriter) str(s string) *keyWriter {
	w.b.WriteString(strconv.Quote(s))
	w.b.WriteByte(';')
	return w
}

func (w *keyWriter) num(v uint64) *keyWriter {
	w.b.WriteString(strconv.FormatUint(v, 10))
	w.b.WriteByte(';')
	return w
}

// val writes a plain value struct or enum. v must not contain pointers.
func (w *keyWriter) val(v any) *keyWriter {
	fmt.Fprintf(&w.b, "%+v;", v)
	return w
}

func (w *keyWriter) String() string {
	w.b.WriteByte('}')
	return w.b.String()
}

// --------------------------------------------------------------------------
// Binding resources
// --------------------------------------------------------------------------

// BindingResource is the resource bound by a BindGroupEntry: a
// BufferBinding, TextureBinding or SamplerBinding.
type BindingResource interface {
	writeKey(w *keyWriter)
}

// BufferBinding binds Size bytes of a buffer starting at Offset.
// A Size of 0 binds the rest of the buffer.
type BufferBinding struct {
	Buffer resource.Handle[gpucore.Buffer]
	Offset uint64
	Size   uint64
}

func (b BufferBinding) writeKey(w *keyWriter) {
	w.str("buffer").num(b.Buffer.Value()).num(b.Offset).num(b.Size)
}

// TextureBinding binds the default view of a texture.
type TextureBinding struct {
	Texture resource.Handle[gpucore.Texture]
}

func (t TextureBinding) writeKey(w *keyWriter) {
	w.str("texture").num(t.Texture.Value())
}

// SamplerBinding binds a sampler.
type SamplerBinding struct {
	Sampler resource.Handle[gpucore.Sampler]
}

func (s SamplerBinding) writeKey(w *keyWriter) {
	w.str("sampler").num(s.Sampler.Value())
}

// --------------------------------------------------------------------------
// Descriptors
// --------------------------------------------------------------------------

// SamplerDescriptor describes a sampler.
//
// A zero LodMaxClamp means no upper clamp and a zero MaxAnisotropy means
// no anisotropic filtering; both equal their explicit spellings in the
// cache. Compare set to anything but CompareFunctionUndefined makes a
// comparison sampler.
type SamplerDescriptor struct {
	Label         string
	AddressModeU  gputypes.AddressMode
	AddressModeV  gputypes.AddressMode
	AddressModeW  gputypes.AddressMode
	MagFilter     gputypes.FilterMode
	MinFilter     gputypes.FilterMode
	MipmapFilter  gputypes.FilterMode
	LodMinClamp   float32
	LodMaxClamp   float32
	Compare       gputypes.CompareFunction
	MaxAnisotropy uint16
}

// normalized fills in the defaults for zero clamps.
func (d SamplerDescriptor) normalized() SamplerDescriptor {
	if d.LodMaxClamp == 0 {
		d.LodMaxClamp = gpucore.DefaultLodMaxClamp
	}
	if d.MaxAnisotropy == 0 {
		d.MaxAnisotropy = 1
	}
	return d
}

func (d SamplerDescriptor) validate() error {
	n := d.normalized()
	switch {
	case n.LodMinClamp < 0 || math.IsNaN(float64(n.LodMinClamp)) || math.IsNaN(float64(n.LodMaxClamp)):
		return fmt.Errorf("%w: sampler %q lod clamp [%v, %v]", ErrInvalidDescriptor, d.Label, d.LodMinClamp, d.LodMaxClamp)
	case n.LodMaxClamp < n.LodMinClamp:
		return fmt.Errorf("%w: sampler %q lod max %v below min %v", ErrInvalidDescriptor, d.Label, n.LodMaxClamp, n.LodMinClamp)
	case n.MaxAnisotropy > 16:
		return fmt.Errorf("%w: sampler %q anisotropy %d above 16", ErrInvalidDescriptor, d.Label, n.MaxAnisotropy)
	case n.MaxAnisotropy > 1 && (n.MagFilter != gputypes.FilterModeLinear ||
		n.MinFilter != gputypes.FilterModeLinear || n.MipmapFilter != gputypes.FilterModeLinear):
		return fmt.Errorf("%w: sampler %q anisotropy needs linear filtering", ErrInvalidDescriptor, d.Label)
	}
	return nil
}

// CacheKey implements resource.Descriptor. The LOD clamps enter the key
// by their bit patterns.
func (d SamplerDescriptor) CacheKey() string {
	n := d.normalized()
	return newKey("Sampler").str(n.Label).
		val(n.AddressModeU).val(n.AddressModeV).val(n.AddressModeW).
		val(n.MagFilter).val(n.MinFilter).val(n.MipmapFilter).
		num(uint64(math.Float32bits(n.LodMinClamp))).
		num(uint64(math.Float32bits(n.LodMaxClamp))).
		val(n.Compare).num(uint64(n.MaxAnisotropy)).String()
}

// BindGroupLayoutDescriptor describes a bind group layout.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// CacheKey implements resource.Descriptor.
func (d BindGroupLayoutDescriptor) CacheKey() string {
	w := newKey("BindGroupLayout").str(d.Label).num(uint64(len(d.Entries)))
	for _, e := range d.Entries {
		w.num(uint64(e.Binding)).num(uint64(e.Visibility)).num(uint64(e.Type))
	}
	return w.String()
}

// Clone returns a deep copy of d.
func (d BindGroupLayoutDescriptor) Clone() BindGroupLayoutDescriptor {
	d.Entries = slices.Clone(d.Entries)
	return d
}

// entry returns the layout slot for binding.
func (d BindGroupLayoutDescriptor) entry(binding uint32) (BindGroupLayoutEntry, bool) {
	for _, e := range d.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return BindGroupLayoutEntry{}, false
}

// BindGroupEntry binds one resource to a slot.
type BindGroupEntry struct {
	Binding  uint32
	Resource BindingResource
}

// BindGroupDescriptor describes a bind group against a layout.
type BindGroupDescriptor struct {
	Label   string
	Layout  resource.Handle[gpucore.BindGroupLayout]
	Entries []BindGroupEntry
}

// CacheKey implements resource.Descriptor.
func (d BindGroupDescriptor) CacheKey() string {
	w := newKey("BindGroup").str(d.Label).num(d.Layout.Value()).num(uint64(len(d.Entries)))
	for _, e := range d.Entries {
		w.num(uint64(e.Binding))
		if e.Resource == nil {
			w.str("nil")
			continue
		}
		e.Resource.writeKey(w)
	}
	return w.String()
}

// Clone returns a deep copy of d.
func (d BindGroupDescriptor) Clone() BindGroupDescriptor {
	d.Entries = slices.Clone(d.Entries)
	return d
}

// PipelineLayoutDescriptor describes a pipeline layout.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []resource.Handle[gpucore.BindGroupLayout]
}

// CacheKey implements resource.Descriptor.
func (d PipelineLayoutDescriptor) CacheKey() string {
	w := newKey("PipelineLayout").str(d.Label).num(uint64(len(d.BindGroupLayouts)))
	for _, h := range d.BindGroupLayouts {
		w.num(h.Value())
	}
	return w.String()
}

// Clone returns a deep copy of d.
func (d PipelineLayoutDescriptor) Clone() PipelineLayoutDescriptor {
	d.BindGroupLayouts = slices.Clone(d.BindGroupLayouts)
	return d
}

// ShaderModuleDescriptor describes a shader module from WGSL source.
type ShaderModuleDescriptor struct {
	Label  string
	Source string
}

// CacheKey implements resource.Descriptor.
func (d ShaderModuleDescriptor) CacheKey() string {
	return newKey("ShaderModule").str(d.Label).str(d.Source).String()
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     resource.Handle[gpucore.PipelineLayout]
	Module     resource.Handle[gpucore.ShaderModule]
	EntryPoint string
}

// CacheKey implements resource.Descriptor.
func (d ComputePipelineDescriptor) CacheKey() string {
	return newKey("ComputePipeline").str(d.Label).
		num(d.Layout.Value()).num(d.Module.Value()).str(d.EntryPoint).String()
}

// FragmentState is the fragment stage of a render pipeline.
type FragmentState struct {
	Module     resource.Handle[gpucore.ShaderModule]
	EntryPoint string
	Targets    []gputypes.ColorTargetState
}

// RenderPipelineDescriptor describes a render pipeline.
// A nil Fragment creates a vertex-only pipeline.
type RenderPipelineDescriptor struct {
	Label  string
	Layout resource.Handle[gpucore.PipelineLayout]

	VertexModule     resource.Handle[gpucore.ShaderModule]
	VertexEntryPoint string
	VertexBuffers    []gputypes.VertexBufferLayout

	Fragment *FragmentState

	Topology    gputypes.PrimitiveTopology
	CullMode    gputypes.CullMode
	SampleCount uint32

	// DepthStencil is required when the pass has a depth/stencil target.
	DepthStencil *gputypes.DepthStencilState
}

// CacheKey implements resource.Descriptor.
func (d RenderPipelineDescriptor) CacheKey() string {
	w := newKey("RenderPipeline").str(d.Label).num(d.Layout.Value()).
		num(d.VertexModule.Value()).str(d.VertexEntryPoint).
		num(uint64(len(d.VertexBuffers)))
	for _, vb := range d.VertexBuffers {
		w.val(vb.ArrayStride).val(vb.StepMode).num(uint64(len(vb.Attributes)))
		for _, a := range vb.Attributes {
			w.val(a.Format).val(a.Offset).val(a.ShaderLocation)
		}
	}
	if f := d.Fragment; f != nil {
		w.str("fragment").num(f.Module.Value()).str(f.EntryPoint).num(uint64(len(f.Targets)))
		for _, t := range f.Targets {
			w.val(t.Format).val(t.WriteMask)
			if t.Blend == nil {
				w.str("noblend")
			} else {
				w.val(*t.Blend)
			}
		}
	} else {
		w.str("nofragment")
	}
	w.val(d.Topology).val(d.CullMode).num(uint64(d.SampleCount))
	if ds := d.DepthStencil; ds != nil {
		w.str("depth").val(ds.Format).val(ds.DepthWriteEnabled).val(ds.DepthCompare).
			val(ds.StencilFront).val(ds.StencilBack).
			num(uint64(ds.StencilReadMask)).num(uint64(ds.StencilWriteMask)).
			val(ds.DepthBias).
			num(uint64(math.Float32bits(ds.DepthBiasSlopeScale))).
			num(uint64(math.Float32bits(ds.DepthBiasClamp)))
	} else {
		w.str("nodepth")
	}
	return w.String()
}

// Clone returns a deep copy of d.
func (d RenderPipelineDescriptor) Clone() RenderPipelineDescriptor {
	d.VertexBuffers = slices.Clone(d.VertexBuffers)
	for i := range d.VertexBuffers {
		d.VertexBuffers[i].Attributes = slices.Clone(d.VertexBuffers[i].Attributes)
	}
	if d.Fragment != nil {
		f := *d.Fragment
		f.Targets = slices.Clone(f.Targets)
		for i := range f.Targets {
			if b := f.Targets[i].Blend; b != nil {
				blend := *b
				f.Targets[i].Blend = &blend
			}
		}
		d.Fragment = &f
	}
	if d.DepthStencil != nil {
		ds := *d.DepthStencil
		d.DepthStencil = &ds
	}
	return d
}
