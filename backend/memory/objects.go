package memory

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
)

// object carries what every memory object shares.
type object struct {
	label     string
	destroyed bool
}

// Label implements gpucore.Object.
func (o *object) Label() string { return o.label }

// Buffer is a buffer backed by a byte slice.
type Buffer struct {
	object
	usage gputypes.BufferUsage
	data  []byte
}

// Size implements gpucore.Buffer.
func (b *Buffer) Size() uint64 { return uint64(len(b.data)) }

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Texture is a 2D texture backed by tightly packed rows.
type Texture struct {
	object
	width, height uint32
	format        gputypes.TextureFormat
	usage         gputypes.TextureUsage
	data          []byte
}

// Width implements gpucore.Texture.
func (t *Texture) Width() uint32 { return t.width }

// Height implements gpucore.Texture.
func (t *Texture) Height() uint32 { return t.height }

// Format implements gpucore.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// rowBytes returns the unpadded size of one row.
func (t *Texture) rowBytes() uint32 {
	return t.width * gpucore.BytesPerTexel(t.format)
}

// Sampler is a sampler that only remembers its descriptor.
type Sampler struct {
	object
	desc gpucore.SamplerDescriptor
}

// Descriptor returns the descriptor the sampler was created with.
func (s *Sampler) Descriptor() gpucore.SamplerDescriptor { return s.desc }

// BindGroupLayout remembers its entries for bind group validation.
type BindGroupLayout struct {
	object
	entries []gpucore.BindGroupLayoutEntry
}

// entry returns the layout entry for binding.
func (l *BindGroupLayout) entry(binding uint32) (gpucore.BindGroupLayoutEntry, bool) {
	for _, e := range l.entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return gpucore.BindGroupLayoutEntry{}, false
}

// BindGroup holds the resources bound at each binding.
type BindGroup struct {
	object
	layout  *BindGroupLayout
	entries []gpucore.BindGroupEntry
}

// PipelineLayout holds its bind group layouts.
type PipelineLayout struct {
	object
	layouts []*BindGroupLayout
}

// ShaderModule keeps the WGSL source.
type ShaderModule struct {
	object
	source string
}

// ComputePipeline remembers its entry point so Dispatch can find a kernel.
type ComputePipeline struct {
	object
	layout     *PipelineLayout
	entryPoint string
}

// RenderPipeline remembers its stages.
type RenderPipeline struct {
	object
	layout           *PipelineLayout
	vertexEntryPoint string
	fragmentEntry    string
}
