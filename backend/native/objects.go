package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/gpucore"
)

// object carries the label shared by all native objects.
type object struct {
	label string
}

// Label implements gpucore.Object.
func (o *object) Label() string { return o.label }

// Buffer is a gpucore.Buffer backed by a hal.Buffer.
type Buffer struct {
	object
	size uint64
	// rawSize is size rounded up to the copy alignment.
	rawSize uint64
	raw     hal.Buffer
}

// Size implements gpucore.Buffer.
func (b *Buffer) Size() uint64 { return b.size }

// Raw returns the HAL buffer.
func (b *Buffer) Raw() hal.Buffer { return b.raw }

// Texture is a gpucore.Texture backed by a hal.Texture and its default view.
type Texture struct {
	object
	width  uint32
	height uint32
	format gputypes.TextureFormat
	usage  gputypes.TextureUsage
	raw    hal.Texture
	view   hal.TextureView
}

// Width implements gpucore.Texture.
func (t *Texture) Width() uint32 { return t.width }

// Height implements gpucore.Texture.
func (t *Texture) Height() uint32 { return t.height }

// Format implements gpucore.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Raw returns the HAL texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// View returns the default 2D view of the texture.
func (t *Texture) View() hal.TextureView { return t.view }

// Sampler is a gpucore.Sampler backed by a hal.Sampler.
type Sampler struct {
	object
	raw hal.Sampler
}

// BindGroupLayout is a gpucore.BindGroupLayout backed by a hal.BindGroupLayout.
type BindGroupLayout struct {
	object
	raw hal.BindGroupLayout
}

// BindGroup is a gpucore.BindGroup backed by a hal.BindGroup.
type BindGroup struct {
	object
	raw hal.BindGroup
}

// PipelineLayout is a gpucore.PipelineLayout backed by a hal.PipelineLayout.
type PipelineLayout struct {
	object
	raw hal.PipelineLayout
}

// ShaderModule is a gpucore.ShaderModule backed by a hal.ShaderModule.
type ShaderModule struct {
	object
	raw hal.ShaderModule
}

// ComputePipeline is a gpucore.ComputePipeline backed by a hal.ComputePipeline.
type ComputePipeline struct {
	object
	raw hal.ComputePipeline
}

// RenderPipeline is a gpucore.RenderPipeline backed by a hal.RenderPipeline.
type RenderPipeline struct {
	object
	raw hal.RenderPipeline
}

func foreign(v any) error {
	return fmt.Errorf("%w: %T", ErrForeignObject, v)
}

func asBuffer(v gpucore.Buffer) (*Buffer, error) {
	if b, ok := v.(*Buffer); ok && b != nil {
		return b, nil
	}
	return nil, foreign(v)
}

func asTexture(v gpucore.Texture) (*Texture, error) {
	if t, ok := v.(*Texture); ok && t != nil {
		return t, nil
	}
	return nil, foreign(v)
}

func asSampler(v gpucore.Sampler) (*Sampler, error) {
	if s, ok := v.(*Sampler); ok && s != nil {
		return s, nil
	}
	return nil, foreign(v)
}

func asBindGroupLayout(v gpucore.BindGroupLayout) (*BindGroupLayout, error) {
	if l, ok := v.(*BindGroupLayout); ok && l != nil {
		return l, nil
	}
	return nil, foreign(v)
}

func asBindGroup(v gpucore.BindGroup) (*BindGroup, error) {
	if g, ok := v.(*BindGroup); ok && g != nil {
		return g, nil
	}
	return nil, foreign(v)
}

func asPipelineLayout(v gpucore.PipelineLayout) (*PipelineLayout, error) {
	if l, ok := v.(*PipelineLayout); ok && l != nil {
		return l, nil
	}
	return nil, foreign(v)
}

func asShaderModule(v gpucore.ShaderModule) (*ShaderModule, error) {
	if m, ok := v.(*ShaderModule); ok && m != nil {
		return m, nil
	}
	return nil, foreign(v)
}

func asComputePipeline(v gpucore.ComputePipeline) (*ComputePipeline, error) {
	if p, ok := v.(*ComputePipeline); ok && p != nil {
		return p, nil
	}
	return nil, foreign(v)
}

func asRenderPipeline(v gpucore.RenderPipeline) (*RenderPipeline, error) {
	if p, ok := v.(*RenderPipeline); ok && p != nil {
		return p, nil
	}
	return nil, foreign(v)
}
