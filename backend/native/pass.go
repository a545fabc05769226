package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/gpucore"
)

// ErrPassEnded is returned by End on an encoder that was already ended.
var ErrPassEnded = errors.New("native: pass has already ended")

// ErrDispatchOffsetNotAligned is returned when an indirect dispatch offset
// is not 4-byte aligned.
var ErrDispatchOffsetNotAligned = errors.New("native: dispatch offset must be 4-byte aligned")

// computePass implements gpucore.ComputePassEncoder over a hal compute pass.
type computePass struct {
	dev     *Device
	label   string
	encoder hal.CommandEncoder
	pass    hal.ComputePassEncoder
	err     error
	ended   bool
}

// BeginComputePass implements gpucore.Device.
func (d *Device) BeginComputePass(label string) (gpucore.ComputePassEncoder, error) {
	encoder, err := d.newEncoder(label)
	if err != nil {
		return nil, err
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: label})
	return &computePass{dev: d, label: label, encoder: encoder, pass: pass}, nil
}

func (p *computePass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// SetPipeline implements gpucore.ComputePassEncoder.
func (p *computePass) SetPipeline(pipeline gpucore.ComputePipeline) {
	cp, err := asComputePipeline(pipeline)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetPipeline(cp.raw)
}

// SetBindGroup implements gpucore.ComputePassEncoder.
func (p *computePass) SetBindGroup(index uint32, group gpucore.BindGroup, offsets []uint32) {
	g, err := asBindGroup(group)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetBindGroup(index, g.raw, offsets)
}

// Dispatch implements gpucore.ComputePassEncoder.
func (p *computePass) Dispatch(x, y, z uint32) {
	p.pass.Dispatch(x, y, z)
}

// DispatchIndirect implements gpucore.ComputePassEncoder.
func (p *computePass) DispatchIndirect(buffer gpucore.Buffer, offset uint64) {
	b, err := asBuffer(buffer)
	if err != nil {
		p.fail(err)
		return
	}
	if offset%4 != 0 {
		p.fail(fmt.Errorf("%w: offset %d", ErrDispatchOffsetNotAligned, offset))
		return
	}
	p.pass.DispatchIndirect(b.raw, offset)
}

// End implements gpucore.ComputePassEncoder.
// The pass is submitted and waited on; a recorded error discards it.
func (p *computePass) End() error {
	if p.ended {
		return ErrPassEnded
	}
	p.ended = true
	p.pass.End()
	if p.err != nil {
		p.encoder.DiscardEncoding()
		return fmt.Errorf("compute pass %q: %w", p.label, p.err)
	}
	if err := p.dev.submit(p.encoder); err != nil {
		return fmt.Errorf("compute pass %q: %w", p.label, err)
	}
	slogger().Debug("native: compute pass submitted", "label", p.label)
	return nil
}

// renderPass implements gpucore.RenderPassEncoder over a hal render pass.
type renderPass struct {
	dev     *Device
	label   string
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder
	err     error
	ended   bool
}

// BeginRenderPass implements gpucore.Device.
// Attachments render into the default view of their texture.
func (d *Device) BeginRenderPass(desc *gpucore.RenderPassDescriptor) (gpucore.RenderPassEncoder, error) {
	attachments := make([]hal.RenderPassColorAttachment, len(desc.ColorAttachments))
	for i, a := range desc.ColorAttachments {
		t, err := asTexture(a.Target)
		if err != nil {
			return nil, fmt.Errorf("native: render pass %q attachment %d: %w", desc.Label, i, err)
		}
		attachments[i] = hal.RenderPassColorAttachment{
			View:       t.view,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
		if a.ResolveTarget != nil {
			r, err := asTexture(a.ResolveTarget)
			if err != nil {
				return nil, fmt.Errorf("native: render pass %q attachment %d resolve target: %w", desc.Label, i, err)
			}
			attachments[i].ResolveTarget = r.view
		}
	}
	var depth *hal.RenderPassDepthStencilAttachment
	if ds := desc.DepthStencilAttachment; ds != nil {
		t, err := asTexture(ds.Target)
		if err != nil {
			return nil, fmt.Errorf("native: render pass %q depth attachment: %w", desc.Label, err)
		}
		depth = &hal.RenderPassDepthStencilAttachment{
			View:              t.view,
			DepthLoadOp:       ds.DepthLoadOp,
			DepthStoreOp:      ds.DepthStoreOp,
			DepthClearValue:   ds.DepthClearValue,
			DepthReadOnly:     ds.DepthReadOnly,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    ds.StencilStoreOp,
			StencilClearValue: ds.StencilClearValue,
			StencilReadOnly:   ds.StencilReadOnly,
		}
	}

	encoder, err := d.newEncoder(desc.Label)
	if err != nil {
		return nil, err
	}
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:                  desc.Label,
		ColorAttachments:       attachments,
		DepthStencilAttachment: depth,
	})
	return &renderPass{dev: d, label: desc.Label, encoder: encoder, pass: pass}, nil
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// SetPipeline implements gpucore.RenderPassEncoder.
func (p *renderPass) SetPipeline(pipeline gpucore.RenderPipeline) {
	rp, err := asRenderPipeline(pipeline)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetPipeline(rp.raw)
}

// SetBindGroup implements gpucore.RenderPassEncoder.
func (p *renderPass) SetBindGroup(index uint32, group gpucore.BindGroup, offsets []uint32) {
	g, err := asBindGroup(group)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetBindGroup(index, g.raw, offsets)
}

// SetVertexBuffer implements gpucore.RenderPassEncoder.
// The HAL binds from offset to the end of the buffer; size is not forwarded.
func (p *renderPass) SetVertexBuffer(slot uint32, buf gpucore.Buffer, offset, _ uint64) {
	b, err := asBuffer(buf)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetVertexBuffer(slot, b.raw, offset)
}

// SetIndexBuffer implements gpucore.RenderPassEncoder.
func (p *renderPass) SetIndexBuffer(buf gpucore.Buffer, format gputypes.IndexFormat, offset, _ uint64) {
	b, err := asBuffer(buf)
	if err != nil {
		p.fail(err)
		return
	}
	p.pass.SetIndexBuffer(b.raw, format, offset)
}

// SetViewport implements gpucore.RenderPassEncoder.
func (p *renderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.pass.SetViewport(x, y, width, height, minDepth, maxDepth)
}

// SetScissorRect implements gpucore.RenderPassEncoder.
func (p *renderPass) SetScissorRect(x, y, width, height uint32) {
	p.pass.SetScissorRect(x, y, width, height)
}

// Draw implements gpucore.RenderPassEncoder.
func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed implements gpucore.RenderPassEncoder.
func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// End implements gpucore.RenderPassEncoder.
func (p *renderPass) End() error {
	if p.ended {
		return ErrPassEnded
	}
	p.ended = true
	p.pass.End()
	if p.err != nil {
		p.encoder.DiscardEncoding()
		return fmt.Errorf("render pass %q: %w", p.label, p.err)
	}
	if err := p.dev.submit(p.encoder); err != nil {
		return fmt.Errorf("render pass %q: %w", p.label, err)
	}
	slogger().Debug("native: render pass submitted", "label", p.label)
	return nil
}
