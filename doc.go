// Package gpures is a host-side resource virtualization layer for GPU
// devices.
//
// # Overview
//
// Callers describe device objects (bind group layouts, bind groups,
// pipeline layouts, shader modules, pipelines, samplers) with plain value
// descriptors. An Instance deduplicates them: two equal descriptors always
// yield the same handle and only one device object. Buffers and textures
// mirrored on the host carry a coherency tracker, so contents move between
// host and device only when the other side is stale. Compute and render
// work is recorded as handle-based command lists and resolved to live
// device objects only when a pass is finished.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gpures"
//	    _ "github.com/gogpu/gpures/backend/memory"
//	)
//
//	inst, err := gpures.Open("memory")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close()
//
//	data, err := gpures.NewStorageBuffer(inst, "values", 1024, gputypes.BufferUsageStorage)
//	...
//	entry := &gpures.ComputeEntryPoint{
//	    Label:    "scale",
//	    Source:   wgsl,
//	    Entry:    "main",
//	    Layouts:  []gpures.BindGroupLayoutDescriptor{...},
//	    Bindings: gpures.Bindings{{gpures.Bind(0, data.Binding())}},
//	}
//	pass, err := gpures.NewComputePass(inst, entry)
//	pass.Dispatch(16, 1, 1)
//	err = pass.Finish()
//
// # Architecture
//
// The library is organized into:
//   - resource: typed handles, resource tables and the descriptor cache
//   - coherency: the host/device coherency state machine
//   - recording: command lists and their resolution against an Instance
//   - gpucore: the device collaborator boundary
//   - backend/native: a gpucore.Device over gogpu/wgpu HAL
//   - backend/memory: a pure-Go gpucore.Device for tests and headless use
//
// # Logging
//
// gpures is silent by default. Call SetLogger to enable structured logging
// through log/slog.
package gpures
