// Package gpucore defines the boundary between gpures and a graphics device.
//
// The [Device] interface is the external collaborator that actually creates
// GPU objects, moves bytes between host and device memory, and records
// passes. gpures never talks to a graphics API directly; it resolves its
// handles to live objects and calls a Device:
//
//	               +-----------------+
//	               |     gpures      |
//	               | (Instance, Pass)|
//	               +--------+--------+
//	                        |  resolved descriptors, live objects
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| backend/native  |          | backend/memory  |
//	|  (hal.Device)   |          |    (pure Go)    |
//	+--------+--------+          +-----------------+
//	         |
//	+--------v--------+
//	|   gogpu/wgpu    |
//	+-----------------+
//
// # Objects
//
// Live device objects are opaque interface values ([Buffer], [Texture],
// [BindGroup], ...). Each backend returns its own concrete types and only
// accepts objects it created.
//
// # Resolved Descriptors
//
// Descriptors in this package are fully resolved: where the gpures
// descriptors refer to other resources by handle, the descriptors here hold
// the live objects. They live only for the duration of one creation call.
//
// # Passes
//
// [ComputePassEncoder] and [RenderPassEncoder] receive resolved commands in
// recording order. End closes the pass scope and submits the work; it
// returns once the device has accepted the submission.
//
// Enumerations shared with the graphics API (formats, usages, vertex
// formats, load/store operations) come from github.com/gogpu/gputypes.
package gpucore
