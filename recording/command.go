package recording

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/resource"
)

// CommandType identifies the type of a command.
// Each command type corresponds to one pass encoder operation.
type CommandType uint8

const (
	// State commands
	CmdSetPipeline     CommandType = iota // Set compute or render pipeline
	CmdSetBindGroup                       // Bind a bind group at an index
	CmdSetVertexBuffer                    // Bind a vertex buffer slice
	CmdSetIndexBuffer                     // Bind an index buffer slice
	CmdSetViewport                        // Set viewport transform
	CmdSetScissorRect                     // Set scissor rectangle

	// Work commands
	CmdDispatch         // Dispatch compute workgroups
	CmdDispatchIndirect // Dispatch with counts read from a buffer
	CmdDraw             // Draw primitives
	CmdDrawIndexed      // Draw indexed primitives
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdSetPipeline:      "SetPipeline",
	CmdSetBindGroup:     "SetBindGroup",
	CmdSetVertexBuffer:  "SetVertexBuffer",
	CmdSetIndexBuffer:   "SetIndexBuffer",
	CmdSetViewport:      "SetViewport",
	CmdSetScissorRect:   "SetScissorRect",
	CmdDispatch:         "Dispatch",
	CmdDispatchIndirect: "DispatchIndirect",
	CmdDraw:             "Draw",
	CmdDrawIndexed:      "DrawIndexed",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all command types.
// Commands hold handles and plain values only; they never reference
// live device objects.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// ComputeCommand is a command that can appear in a ComputeList.
type ComputeCommand interface {
	Command
	resolveCompute(r Resolver) (resolvedCompute, error)
}

// RenderCommand is a command that can appear in a RenderList.
type RenderCommand interface {
	Command
	resolveRender(r Resolver) (resolvedRender, error)
}

// Resolver maps handles to live device objects at resolution time.
//
// Every method returns an error wrapping resource.ErrHandleNotFound when
// the handle is no longer present.
type Resolver interface {
	ComputePipeline(h resource.Handle[gpucore.ComputePipeline]) (gpucore.ComputePipeline, error)
	RenderPipeline(h resource.Handle[gpucore.RenderPipeline]) (gpucore.RenderPipeline, error)
	BindGroup(h resource.Handle[gpucore.BindGroup]) (gpucore.BindGroup, error)
	Buffer(h resource.Handle[gpucore.Buffer]) (gpucore.Buffer, error)
}

// --------------------------------------------------------------------------
// Reference Types
// --------------------------------------------------------------------------

// BufferSlice is a byte range of a buffer.
// A Size of 0 means from Offset to the end of the buffer.
type BufferSlice struct {
	Buffer resource.Handle[gpucore.Buffer]
	Offset uint64
	Size   uint64
}

// WholeBuffer returns a slice covering all of h.
func WholeBuffer(h resource.Handle[gpucore.Buffer]) BufferSlice {
	return BufferSlice{Buffer: h}
}

// --------------------------------------------------------------------------
// State Commands
// --------------------------------------------------------------------------

// SetComputePipelineCommand sets the active compute pipeline.
type SetComputePipelineCommand struct {
	Pipeline resource.Handle[gpucore.ComputePipeline]
}

// Type implements Command.
func (SetComputePipelineCommand) Type() CommandType { return CmdSetPipeline }

// SetRenderPipelineCommand sets the active render pipeline.
type SetRenderPipelineCommand struct {
	Pipeline resource.Handle[gpucore.RenderPipeline]
}

// Type implements Command.
func (SetRenderPipelineCommand) Type() CommandType { return CmdSetPipeline }

// SetBindGroupCommand binds a bind group at an index.
// It is valid in both compute and render lists.
type SetBindGroupCommand struct {
	// Index is the bind group slot in the pipeline layout.
	Index uint32
	// Group references the bind group.
	Group resource.Handle[gpucore.BindGroup]
	// Offsets are dynamic offsets, in binding order.
	Offsets []uint32
}

// Type implements Command.
func (SetBindGroupCommand) Type() CommandType { return CmdSetBindGroup }

// SetVertexBufferCommand binds a vertex buffer slice to a slot.
type SetVertexBufferCommand struct {
	Slot  uint32
	Slice BufferSlice
}

// Type implements Command.
func (SetVertexBufferCommand) Type() CommandType { return CmdSetVertexBuffer }

// SetIndexBufferCommand binds an index buffer slice.
type SetIndexBufferCommand struct {
	Slice  BufferSlice
	Format gputypes.IndexFormat
}

// Type implements Command.
func (SetIndexBufferCommand) Type() CommandType { return CmdSetIndexBuffer }

// SetViewportCommand sets the viewport transform.
type SetViewportCommand struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Type implements Command.
func (SetViewportCommand) Type() CommandType { return CmdSetViewport }

// SetScissorRectCommand sets the scissor rectangle.
type SetScissorRectCommand struct {
	X, Y, Width, Height uint32
}

// Type implements Command.
func (SetScissorRectCommand) Type() CommandType { return CmdSetScissorRect }

// --------------------------------------------------------------------------
// Work Commands
// --------------------------------------------------------------------------

// DispatchCommand dispatches X*Y*Z workgroups.
type DispatchCommand struct {
	X, Y, Z uint32
}

// Type implements Command.
func (DispatchCommand) Type() CommandType { return CmdDispatch }

// DispatchIndirectCommand dispatches with workgroup counts read from a
// buffer at Offset.
type DispatchIndirectCommand struct {
	Buffer resource.Handle[gpucore.Buffer]
	Offset uint64
}

// Type implements Command.
func (DispatchIndirectCommand) Type() CommandType { return CmdDispatchIndirect }

// DrawCommand draws non-indexed primitives.
type DrawCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

// DrawIndexedCommand draws indexed primitives.
type DrawIndexedCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// Type implements Command.
func (DrawIndexedCommand) Type() CommandType { return CmdDrawIndexed }
