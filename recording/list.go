package recording

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/resource"
)

// ComputeList is an ordered list of compute commands.
//
// Recording only stores handles and values. Nothing is looked up until
// Resolve, so a list may be recorded before its resources exist and
// replayed many times against the resources current at each replay.
//
// The ComputeList is not safe for concurrent use.
type ComputeList struct {
	commands []ComputeCommand
}

// NewComputeList creates an empty compute list.
func NewComputeList() *ComputeList {
	return &ComputeList{commands: make([]ComputeCommand, 0, 16)}
}

// Push appends a command.
func (l *ComputeList) Push(cmd ComputeCommand) {
	l.commands = append(l.commands, cmd)
}

// SetPipeline records a pipeline change.
func (l *ComputeList) SetPipeline(p resource.Handle[gpucore.ComputePipeline]) {
	l.Push(SetComputePipelineCommand{Pipeline: p})
}

// SetBindGroup records a bind group binding.
func (l *ComputeList) SetBindGroup(index uint32, g resource.Handle[gpucore.BindGroup], offsets ...uint32) {
	l.Push(SetBindGroupCommand{Index: index, Group: g, Offsets: cloneOffsets(offsets)})
}

// Dispatch records a dispatch of x*y*z workgroups.
func (l *ComputeList) Dispatch(x, y, z uint32) {
	l.Push(DispatchCommand{X: x, Y: y, Z: z})
}

// DispatchIndirect records an indirect dispatch.
func (l *ComputeList) DispatchIndirect(buf resource.Handle[gpucore.Buffer], offset uint64) {
	l.Push(DispatchIndirectCommand{Buffer: buf, Offset: offset})
}

// Len returns the number of recorded commands.
func (l *ComputeList) Len() int { return len(l.commands) }

// Commands returns the recorded commands in order.
// The returned slice must not be modified.
func (l *ComputeList) Commands() []ComputeCommand { return l.commands }

// Reset clears the list for reuse, keeping its capacity.
func (l *ComputeList) Reset() { l.commands = l.commands[:0] }

// Resolve looks up every handle in recording order.
//
// Resolution is all-or-nothing: on the first missing handle it returns a
// *ResolveError and no resolved list, so nothing is ever partially
// replayed.
func (l *ComputeList) Resolve(r Resolver) (*ResolvedComputeList, error) {
	resolved := make([]resolvedCompute, 0, len(l.commands))
	for i, cmd := range l.commands {
		rc, err := cmd.resolveCompute(r)
		if err != nil {
			return nil, &ResolveError{Index: i, Type: cmd.Type(), Err: err}
		}
		resolved = append(resolved, rc)
	}
	return &ResolvedComputeList{commands: resolved}, nil
}

// ResolvedComputeList is a compute list bound to live objects.
// It corresponds one-to-one with the list it was resolved from.
type ResolvedComputeList struct {
	commands []resolvedCompute
}

// Len returns the number of resolved commands.
func (l *ResolvedComputeList) Len() int { return len(l.commands) }

// Replay issues every command to enc in recording order.
// It does not call enc.End.
func (l *ResolvedComputeList) Replay(enc gpucore.ComputePassEncoder) {
	for _, c := range l.commands {
		c.applyCompute(enc)
	}
}

// RenderList is an ordered list of render commands.
//
// The RenderList is not safe for concurrent use.
type RenderList struct {
	commands []RenderCommand
}

// NewRenderList creates an empty render list.
func NewRenderList() *RenderList {
	return &RenderList{commands: make([]RenderCommand, 0, 16)}
}

// Push appends a command.
func (l *RenderList) Push(cmd RenderCommand) {
	l.commands = append(l.commands, cmd)
}

// SetPipeline records a pipeline change.
func (l *RenderList) SetPipeline(p resource.Handle[gpucore.RenderPipeline]) {
	l.Push(SetRenderPipelineCommand{Pipeline: p})
}

// SetBindGroup records a bind group binding.
func (l *RenderList) SetBindGroup(index uint32, g resource.Handle[gpucore.BindGroup], offsets ...uint32) {
	l.Push(SetBindGroupCommand{Index: index, Group: g, Offsets: cloneOffsets(offsets)})
}

// SetVertexBuffer records a vertex buffer binding.
func (l *RenderList) SetVertexBuffer(slot uint32, s BufferSlice) {
	l.Push(SetVertexBufferCommand{Slot: slot, Slice: s})
}

// SetIndexBuffer records an index buffer binding.
func (l *RenderList) SetIndexBuffer(s BufferSlice, format gputypes.IndexFormat) {
	l.Push(SetIndexBufferCommand{Slice: s, Format: format})
}

// SetViewport records a viewport change.
func (l *RenderList) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	l.Push(SetViewportCommand{X: x, Y: y, Width: width, Height: height, MinDepth: minDepth, MaxDepth: maxDepth})
}

// SetScissorRect records a scissor change.
func (l *RenderList) SetScissorRect(x, y, width, height uint32) {
	l.Push(SetScissorRectCommand{X: x, Y: y, Width: width, Height: height})
}

// Draw records a non-indexed draw.
func (l *RenderList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	l.Push(DrawCommand{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// DrawIndexed records an indexed draw.
func (l *RenderList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	l.Push(DrawIndexedCommand{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

// Len returns the number of recorded commands.
func (l *RenderList) Len() int { return len(l.commands) }

// Commands returns the recorded commands in order.
// The returned slice must not be modified.
func (l *RenderList) Commands() []RenderCommand { return l.commands }

// Reset clears the list for reuse, keeping its capacity.
func (l *RenderList) Reset() { l.commands = l.commands[:0] }

// Resolve looks up every handle in recording order.
// Like ComputeList.Resolve it is all-or-nothing.
func (l *RenderList) Resolve(r Resolver) (*ResolvedRenderList, error) {
	resolved := make([]resolvedRender, 0, len(l.commands))
	for i, cmd := range l.commands {
		rc, err := cmd.resolveRender(r)
		if err != nil {
			return nil, &ResolveError{Index: i, Type: cmd.Type(), Err: err}
		}
		resolved = append(resolved, rc)
	}
	return &ResolvedRenderList{commands: resolved}, nil
}

// ResolvedRenderList is a render list bound to live objects.
type ResolvedRenderList struct {
	commands []resolvedRender
}

// Len returns the number of resolved commands.
func (l *ResolvedRenderList) Len() int { return len(l.commands) }

// Replay issues every command to enc in recording order.
// It does not call enc.End.
func (l *ResolvedRenderList) Replay(enc gpucore.RenderPassEncoder) {
	for _, c := range l.commands {
		c.applyRender(enc)
	}
}

// cloneOffsets copies dynamic offsets so the list does not alias the
// caller's slice.
func cloneOffsets(offsets []uint32) []uint32 {
	if len(offsets) == 0 {
		return nil
	}
	return append([]uint32(nil), offsets...)
}
