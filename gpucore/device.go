package gpucore

import "github.com/gogpu/gputypes"

// Device abstracts over graphics device implementations.
//
// Implementations must be safe for concurrent use.
//
// Resource lifecycle:
//   - Objects are created via Create* methods from resolved descriptors
//   - Objects must be explicitly destroyed via Destroy* methods
//   - Destroying an object while a pass still uses it is undefined behavior
//   - Objects from one Device must not be passed to another
type Device interface {
	// === Resource Creation ===

	// CreateBuffer creates a buffer. Contents start zeroed.
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)

	// DestroyBuffer releases a buffer.
	DestroyBuffer(buf Buffer)

	// CreateTexture creates a 2D texture.
	CreateTexture(desc *TextureDescriptor) (Texture, error)

	// DestroyTexture releases a texture.
	DestroyTexture(tex Texture)

	// CreateSampler creates a sampler.
	CreateSampler(desc *SamplerDescriptor) (Sampler, error)

	// DestroySampler releases a sampler.
	DestroySampler(s Sampler)

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(l BindGroupLayout)

	// CreateBindGroup creates a bind group against a layout.
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(g BindGroup)

	// CreatePipelineLayout creates a pipeline layout.
	CreatePipelineLayout(desc *PipelineLayoutDescriptor) (PipelineLayout, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(l PipelineLayout)

	// CreateShaderModule compiles a shader module.
	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(m ShaderModule)

	// CreateComputePipeline creates a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDescriptor) (ComputePipeline, error)

	// DestroyComputePipeline releases a compute pipeline.
	DestroyComputePipeline(p ComputePipeline)

	// CreateRenderPipeline creates a render pipeline.
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)

	// DestroyRenderPipeline releases a render pipeline.
	DestroyRenderPipeline(p RenderPipeline)

	// === Transfers ===
	//
	// Transfers are synchronous: they return after the bytes have been
	// handed to (or received from) the device.

	// WriteBuffer copies data into buf at offset.
	WriteBuffer(buf Buffer, offset uint64, data []byte) error

	// ReadBuffer copies len(dst) bytes from buf at offset into dst.
	// This may cause a GPU-CPU synchronization stall.
	ReadBuffer(buf Buffer, offset uint64, dst []byte) error

	// WriteTexture uploads the whole texture. data holds Height rows of
	// bytesPerRow bytes each.
	WriteTexture(tex Texture, data []byte, bytesPerRow uint32) error

	// ReadTexture downloads the whole texture into dst using the same row
	// layout as WriteTexture.
	// This may cause a GPU-CPU synchronization stall.
	ReadTexture(tex Texture, dst []byte, bytesPerRow uint32) error

	// === Passes ===

	// BeginComputePass begins a compute pass.
	// The encoder must be ended with ComputePassEncoder.End().
	BeginComputePass(label string) (ComputePassEncoder, error)

	// BeginRenderPass begins a render pass.
	// The encoder must be ended with RenderPassEncoder.End().
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error)
}

// ComputePassEncoder records compute commands.
//
// Usage:
//  1. Obtain encoder from Device.BeginComputePass()
//  2. Set pipeline and bind groups
//  3. Dispatch compute workgroups
//  4. Call End() to finish recording and submit
//
// The encoder is single-use and cannot be reused after End().
type ComputePassEncoder interface {
	// SetPipeline sets the active compute pipeline.
	SetPipeline(pipeline ComputePipeline)

	// SetBindGroup sets a bind group at the specified index.
	SetBindGroup(index uint32, group BindGroup, offsets []uint32)

	// Dispatch dispatches x*y*z compute workgroups.
	Dispatch(x, y, z uint32)

	// DispatchIndirect dispatches workgroups with counts read from buffer
	// at offset (three consecutive uint32 values).
	DispatchIndirect(buffer Buffer, offset uint64)

	// End finishes the compute pass and submits it.
	End() error
}

// RenderPassEncoder records render commands.
//
// The encoder is single-use and cannot be reused after End().
type RenderPassEncoder interface {
	// SetPipeline sets the active render pipeline.
	SetPipeline(pipeline RenderPipeline)

	// SetBindGroup sets a bind group at the specified index.
	SetBindGroup(index uint32, group BindGroup, offsets []uint32)

	// SetVertexBuffer binds buf[offset:offset+size] to a vertex slot.
	// A size of 0 binds the rest of the buffer.
	SetVertexBuffer(slot uint32, buf Buffer, offset, size uint64)

	// SetIndexBuffer binds buf[offset:offset+size] as the index buffer.
	SetIndexBuffer(buf Buffer, format gputypes.IndexFormat, offset, size uint64)

	// SetViewport sets the viewport transform.
	SetViewport(x, y, width, height, minDepth, maxDepth float32)

	// SetScissorRect sets the scissor rectangle.
	SetScissorRect(x, y, width, height uint32)

	// Draw draws non-indexed primitives.
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// DrawIndexed draws indexed primitives.
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)

	// End finishes the render pass and submits it.
	End() error
}
