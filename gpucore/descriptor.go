package gpucore

import "github.com/gogpu/gputypes"

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// TextureDescriptor describes a 2D texture to create (single mip level,
// single sample).
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// SamplerDescriptor describes a sampler to create.
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

// DefaultLodMaxClamp is the LOD clamp that leaves every mip level
// reachable.
const DefaultLodMaxClamp float32 = 32

// BindGroupLayoutEntry describes one binding slot of a layout.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Visibility ShaderStage
	Type       BindingType
}

// BindGroupLayoutDescriptor describes a bind group layout to create.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry binds one resource to a slot. Exactly one of Buffer,
// Texture and Sampler is set.
type BindGroupEntry struct {
	Binding uint32

	Buffer Buffer
	Offset uint64
	Size   uint64 // 0 binds the rest of the buffer

	Texture Texture
	Sampler Sampler
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// PipelineLayoutDescriptor describes a pipeline layout to create.
type PipelineLayoutDescriptor struct {
	Label            string
	BindGroupLayouts []BindGroupLayout
}

// ShaderModuleDescriptor describes a shader module to create from WGSL.
type ShaderModuleDescriptor struct {
	Label string
	WGSL  string
}

// ComputePipelineDescriptor describes a compute pipeline to create.
type ComputePipelineDescriptor struct {
	Label      string
	Layout     PipelineLayout
	Module     ShaderModule
	EntryPoint string
}

// RenderPipelineDescriptor describes a render pipeline to create.
// A nil FragmentModule creates a vertex-only pipeline.
type RenderPipelineDescriptor struct {
	Label  string
	Layout PipelineLayout

	VertexModule     ShaderModule
	VertexEntryPoint string
	VertexBuffers    []gputypes.VertexBufferLayout

	FragmentModule     ShaderModule
	FragmentEntryPoint string
	Targets            []gputypes.ColorTargetState

	Topology     gputypes.PrimitiveTopology
	CullMode     gputypes.CullMode
	SampleCount  uint32
	DepthStencil *gputypes.DepthStencilState
}

// RenderPassColorAttachment describes one color target of a render pass.
// A non-nil ResolveTarget receives the multisample resolve of Target.
type RenderPassColorAttachment struct {
	Target        Texture
	ResolveTarget Texture
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	ClearValue    gputypes.Color
}

// RenderPassDepthStencilAttachment describes the depth/stencil target of a
// render pass. The stencil fields are ignored for depth-only formats.
type RenderPassDepthStencilAttachment struct {
	Target Texture

	DepthLoadOp     gputypes.LoadOp
	DepthStoreOp    gputypes.StoreOp
	DepthClearValue float32
	DepthReadOnly   bool

	StencilLoadOp     gputypes.LoadOp
	StencilStoreOp    gputypes.StoreOp
	StencilClearValue uint32
	StencilReadOnly   bool
}

// RenderPassDescriptor describes a render pass to begin.
type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []RenderPassColorAttachment
	DepthStencilAttachment *RenderPassDepthStencilAttachment
}
