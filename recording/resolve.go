package recording

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
)

// ResolveError reports the first command of a list whose handle could not
// be resolved. It unwraps to the resolver's error, which wraps
// resource.ErrHandleNotFound for missing handles.
type ResolveError struct {
	// Index is the position of the failing command in recording order.
	Index int
	// Type is the failing command's type.
	Type CommandType
	// Err is the underlying resolver error.
	Err error
}

// Error implements error.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("recording: resolve command %d (%s): %v", e.Index, e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// resolvedCompute is a compute command whose handles were replaced by live
// objects. It lives only for one replay.
type resolvedCompute interface {
	applyCompute(enc gpucore.ComputePassEncoder)
}

// resolvedRender is a render command whose handles were replaced by live
// objects. It lives only for one replay.
type resolvedRender interface {
	applyRender(enc gpucore.RenderPassEncoder)
}

// --------------------------------------------------------------------------
// Resolved forms
// --------------------------------------------------------------------------

type resolvedComputePipeline struct{ pipeline gpucore.ComputePipeline }

func (c resolvedComputePipeline) applyCompute(enc gpucore.ComputePassEncoder) {
	enc.SetPipeline(c.pipeline)
}

type resolvedRenderPipeline struct{ pipeline gpucore.RenderPipeline }

func (c resolvedRenderPipeline) applyRender(enc gpucore.RenderPassEncoder) {
	enc.SetPipeline(c.pipeline)
}

type resolvedBindGroup struct {
	index   uint32
	group   gpucore.BindGroup
	offsets []uint32
}

func (c resolvedBindGroup) applyCompute(enc gpucore.ComputePassEncoder) {
	enc.SetBindGroup(c.index, c.group, c.offsets)
}

func (c resolvedBindGroup) applyRender(enc gpucore.RenderPassEncoder) {
	enc.SetBindGroup(c.index, c.group, c.offsets)
}

type resolvedVertexBuffer struct {
	slot         uint32
	buffer       gpucore.Buffer
	offset, size uint64
}

func (c resolvedVertexBuffer) applyRender(enc gpucore.RenderPassEncoder) {
	enc.SetVertexBuffer(c.slot, c.buffer, c.offset, c.size)
}

type resolvedIndexBuffer struct {
	buffer       gpucore.Buffer
	format       gputypes.IndexFormat
	offset, size uint64
}

func (c resolvedIndexBuffer) applyRender(enc gpucore.RenderPassEncoder) {
	enc.SetIndexBuffer(c.buffer, c.format, c.offset, c.size)
}

type resolvedDispatchIndirect struct {
	buffer gpucore.Buffer
	offset uint64
}

func (c resolvedDispatchIndirect) applyCompute(enc gpucore.ComputePassEncoder) {
	enc.DispatchIndirect(c.buffer, c.offset)
}

// Commands without handles are their own resolved form.

func (c SetViewportCommand) applyRender(enc gpucore.RenderPassEncoder) {
	enc.SetViewport(c.X, c.Y, c.Width, c.Height, c.MinDepth, c.MaxDepth)
}

func (c SetScissorRectCommand) applyRender(enc gpucore.RenderPassEncoder) {
	enc.SetScissorRect(c.X, c.Y, c.Width, c.Height)
}

func (c DispatchCommand) applyCompute(enc gpucore.ComputePassEncoder) {
	enc.Dispatch(c.X, c.Y, c.Z)
}

func (c DrawCommand) applyRender(enc gpucore.RenderPassEncoder) {
	enc.Draw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
}

func (c DrawIndexedCommand) applyRender(enc gpucore.RenderPassEncoder) {
	enc.DrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, c.BaseVertex, c.FirstInstance)
}

// --------------------------------------------------------------------------
// Resolution
// --------------------------------------------------------------------------

func (c SetComputePipelineCommand) resolveCompute(r Resolver) (resolvedCompute, error) {
	p, err := r.ComputePipeline(c.Pipeline)
	if err != nil {
		return nil, err
	}
	return resolvedComputePipeline{pipeline: p}, nil
}

func (c SetRenderPipelineCommand) resolveRender(r Resolver) (resolvedRender, error) {
	p, err := r.RenderPipeline(c.Pipeline)
	if err != nil {
		return nil, err
	}
	return resolvedRenderPipeline{pipeline: p}, nil
}

func (c SetBindGroupCommand) resolve(r Resolver) (resolvedBindGroup, error) {
	g, err := r.BindGroup(c.Group)
	if err != nil {
		return resolvedBindGroup{}, err
	}
	return resolvedBindGroup{index: c.Index, group: g, offsets: c.Offsets}, nil
}

func (c SetBindGroupCommand) resolveCompute(r Resolver) (resolvedCompute, error) {
	rc, err := c.resolve(r)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (c SetBindGroupCommand) resolveRender(r Resolver) (resolvedRender, error) {
	rc, err := c.resolve(r)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (c SetVertexBufferCommand) resolveRender(r Resolver) (resolvedRender, error) {
	buf, err := r.Buffer(c.Slice.Buffer)
	if err != nil {
		return nil, err
	}
	return resolvedVertexBuffer{slot: c.Slot, buffer: buf, offset: c.Slice.Offset, size: c.Slice.Size}, nil
}

func (c SetIndexBufferCommand) resolveRender(r Resolver) (resolvedRender, error) {
	buf, err := r.Buffer(c.Slice.Buffer)
	if err != nil {
		return nil, err
	}
	return resolvedIndexBuffer{buffer: buf, format: c.Format, offset: c.Slice.Offset, size: c.Slice.Size}, nil
}

func (c SetViewportCommand) resolveRender(Resolver) (resolvedRender, error)    { return c, nil }
func (c SetScissorRectCommand) resolveRender(Resolver) (resolvedRender, error) { return c, nil }
func (c DrawCommand) resolveRender(Resolver) (resolvedRender, error)           { return c, nil }
func (c DrawIndexedCommand) resolveRender(Resolver) (resolvedRender, error)    { return c, nil }
func (c DispatchCommand) resolveCompute(Resolver) (resolvedCompute, error)     { return c, nil }

func (c DispatchIndirectCommand) resolveCompute(r Resolver) (resolvedCompute, error) {
	buf, err := r.Buffer(c.Buffer)
	if err != nil {
		return nil, err
	}
	return resolvedDispatchIndirect{buffer: buf, offset: c.Offset}, nil
}
