// Package native provides the production gpucore.Device over gogpu/wgpu/hal.
//
// A Device wraps a hal.Device and hal.Queue. Every gpucore object it returns
// owns the matching hal object; textures additionally own a default 2D view
// used for render attachments and texture bindings.
//
// # Shaders
//
// WGSL sources are compiled to SPIR-V with gogpu/naga before they reach the
// HAL. WithWGSL hands the source to the HAL unchanged instead, for HAL
// implementations that consume WGSL directly.
//
// # Transfers
//
// Writes go through hal.Queue. Reads copy into a staging buffer, submit with
// a fence and wait up to the readback timeout. Texture reads use rows padded
// to gpucore.CopyRowAlignment and strip the padding on the way out.
//
// # Passes
//
// Each pass records into its own command encoder. End finishes the pass,
// submits the command buffer and waits for it to complete.
//
// # Construction
//
//	dev, err := native.New(halDevice, halQueue)
//
//	// Share a device owned by the host application:
//	dev, err := native.NewFromProvider(provider)
//
//	// Headless device on the noop HAL, also registered as "noop":
//	dev, err := native.NewNoop()
package native
