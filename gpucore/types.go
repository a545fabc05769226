package gpucore

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Live objects
//
// These interfaces are implemented by each backend. Distinct interface
// types keep handles of different kinds apart even though the method sets
// coincide.

// Object is the common surface of every live device object.
type Object interface {
	// Label returns the debug label the object was created with.
	Label() string
}

// Buffer is a live linear memory allocation on the device.
type Buffer interface {
	Object

	// Size returns the buffer size in bytes.
	Size() uint64
}

// Texture is a live 2D image on the device.
type Texture interface {
	Object

	// Width returns the texture width in texels.
	Width() uint32

	// Height returns the texture height in texels.
	Height() uint32

	// Format returns the texel format.
	Format() gputypes.TextureFormat
}

// Sampler is a live texture sampler.
type Sampler interface{ Object }

// BindGroupLayout is a live bind group layout.
type BindGroupLayout interface{ Object }

// BindGroup is a live set of bound resources.
type BindGroup interface{ Object }

// PipelineLayout is a live pipeline layout.
type PipelineLayout interface{ Object }

// ShaderModule is a live compiled shader module.
type ShaderModule interface{ Object }

// ComputePipeline is a live compute pipeline.
type ComputePipeline interface{ Object }

// RenderPipeline is a live render pipeline.
type RenderPipeline interface{ Object }

// BindingType identifies the kind of resource a layout entry expects.
type BindingType uint8

// Binding types.
const (
	// BindingTypeUniformBuffer is a uniform buffer binding.
	BindingTypeUniformBuffer BindingType = iota

	// BindingTypeStorageBuffer is a read-write storage buffer binding.
	BindingTypeStorageBuffer

	// BindingTypeReadOnlyStorageBuffer is a read-only storage buffer binding.
	BindingTypeReadOnlyStorageBuffer

	// BindingTypeTexture is a sampled 2D float texture binding.
	BindingTypeTexture

	// BindingTypeSampler is a filtering sampler binding.
	BindingTypeSampler
)

var bindingTypeNames = [...]string{
	BindingTypeUniformBuffer:         "UniformBuffer",
	BindingTypeStorageBuffer:         "StorageBuffer",
	BindingTypeReadOnlyStorageBuffer: "ReadOnlyStorageBuffer",
	BindingTypeTexture:               "Texture",
	BindingTypeSampler:               "Sampler",
}

// String returns the string representation of BindingType.
func (t BindingType) String() string {
	if int(t) < len(bindingTypeNames) {
		return bindingTypeNames[t]
	}
	return fmt.Sprintf("BindingType(%d)", t)
}

// IsBuffer reports whether the binding expects a buffer.
func (t BindingType) IsBuffer() bool {
	return t <= BindingTypeReadOnlyStorageBuffer
}

// ShaderStage is a bitmask of shader stages that can see a binding.
type ShaderStage uint8

// Shader stages.
const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute
)

// String returns the stages joined with '|'.
func (s ShaderStage) String() string {
	if s == 0 {
		return "None"
	}
	out := ""
	add := func(name string) {
		if out != "" {
			out += "|"
		}
		out += name
	}
	if s&ShaderStageVertex != 0 {
		add("Vertex")
	}
	if s&ShaderStageFragment != 0 {
		add("Fragment")
	}
	if s&ShaderStageCompute != 0 {
		add("Compute")
	}
	return out
}

// BytesPerTexel returns the size of one texel of format in bytes, or 0 if
// the format is not supported for host-side texel access.
func BytesPerTexel(format gputypes.TextureFormat) uint32 {
	switch format {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	case gputypes.TextureFormatR32Float, gputypes.TextureFormatDepth32Float:
		return 4
	case gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// CopyRowAlignment is the required alignment in bytes of each row in a
// texture-to-buffer or buffer-to-texture copy.
const CopyRowAlignment = 256

// AlignedBytesPerRow returns the row pitch for a texture of the given
// width, rounded up to align (which must be a power of two).
func AlignedBytesPerRow(width, bytesPerTexel, align uint32) uint32 {
	unpadded := width * bytesPerTexel
	if align <= 1 {
		return unpadded
	}
	return (unpadded + align - 1) &^ (align - 1)
}
