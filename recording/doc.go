// Package recording provides record-then-resolve command lists for
// compute and render passes.
//
// Commands are captured as typed structs that reference resources by
// handle (resource.Handle) instead of by live device object. A list can
// therefore be recorded once and replayed many times, always against the
// objects that are current when it is executed.
//
// # Architecture
//
// Execution happens in two phases:
//
//  1. Resolve: every handle in the list is looked up through a Resolver,
//     producing a parallel resolved list of live gpucore objects. The
//     first missing handle aborts resolution with a *ResolveError that
//     unwraps to resource.ErrHandleNotFound.
//  2. Replay: the resolved list is issued to a gpucore pass encoder in
//     recording order.
//
// Because resolution completes before replay starts, a list with a
// dangling handle replays nothing. There is no partial execution.
//
// # Commands
//
// Compute lists accept:
//   - SetComputePipelineCommand, SetBindGroupCommand
//   - DispatchCommand, DispatchIndirectCommand
//
// Render lists accept:
//   - SetRenderPipelineCommand, SetBindGroupCommand
//   - SetVertexBufferCommand, SetIndexBufferCommand
//   - SetViewportCommand, SetScissorRectCommand
//   - DrawCommand, DrawIndexedCommand
//
// # Example
//
//	list := recording.NewComputeList()
//	list.SetPipeline(pipeline)
//	list.SetBindGroup(0, group)
//	list.Dispatch(64, 1, 1)
//
//	resolved, err := list.Resolve(instance)
//	if err != nil {
//	    return err // nothing was executed
//	}
//	enc, _ := device.BeginComputePass("blur")
//	resolved.Replay(enc)
//	err = enc.End()
package recording
