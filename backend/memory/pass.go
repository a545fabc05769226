package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
)

// ErrPassEnded is returned by End on an encoder that was already ended.
var ErrPassEnded = errors.New("memory: pass has already ended")

// computeOp is one recorded compute command.
type computeOp struct {
	call     string
	pipeline *ComputePipeline
	group    *BindGroup
	index    uint32
	dispatch *[3]uint32

	indirect       *Buffer
	indirectOffset uint64
}

// computePass implements gpucore.ComputePassEncoder.
// Commands are buffered and executed when End is called.
type computePass struct {
	dev   *Device
	label string
	ops   []computeOp
	err   error
	ended bool
}

// BeginComputePass implements gpucore.Device.
func (d *Device) BeginComputePass(label string) (gpucore.ComputePassEncoder, error) {
	return &computePass{dev: d, label: label}, nil
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
	p.ops = append(p.ops, computeOp{call: fmt.Sprintf("SetPipeline(%s)", cp.label), pipeline: cp})
}

// SetBindGroup implements gpucore.ComputePassEncoder.
func (p *computePass) SetBindGroup(index uint32, group gpucore.BindGroup, offsets []uint32) {
	g, err := asBindGroup(group)
	if err != nil {
		p.fail(err)
		return
	}
	p.ops = append(p.ops, computeOp{call: fmt.Sprintf("SetBindGroup(%d,%s)", index, g.label), group: g, index: index})
}

// Dispatch implements gpucore.ComputePassEncoder.
func (p *computePass) Dispatch(x, y, z uint32) {
	p.ops = append(p.ops, computeOp{call: fmt.Sprintf("Dispatch(%d,%d,%d)", x, y, z), dispatch: &[3]uint32{x, y, z}})
}

// DispatchIndirect implements gpucore.ComputePassEncoder.
// The workgroup counts are read from the buffer when the pass ends.
func (p *computePass) DispatchIndirect(buffer gpucore.Buffer, offset uint64) {
	b, err := asBuffer(buffer)
	if err != nil {
		p.fail(err)
		return
	}
	if offset+12 > b.Size() {
		p.fail(fmt.Errorf("%w: indirect args at %d in %q", ErrOutOfRange, offset, b.label))
		return
	}
	p.ops = append(p.ops, computeOp{
		call:           fmt.Sprintf("DispatchIndirect(%s,%d)", b.label, offset),
		indirect:       b,
		indirectOffset: offset,
	})
}

// indirectArgs decodes three little-endian uint32 workgroup counts.
func indirectArgs(b *Buffer, offset uint64) *[3]uint32 {
	args := new([3]uint32)
	for i := range args {
		o := offset + uint64(i)*4
		args[i] = uint32(b.data[o]) | uint32(b.data[o+1])<<8 | uint32(b.data[o+2])<<16 | uint32(b.data[o+3])<<24
	}
	return args
}

// End implements gpucore.ComputePassEncoder.
func (p *computePass) End() error {
	if p.ended {
		return ErrPassEnded
	}
	p.ended = true
	if p.err != nil {
		return p.err
	}

	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logLocked("BeginComputePass(%s)", p.label)
	var pipeline *ComputePipeline
	groups := make(map[uint32]*BindGroup)
	for _, op := range p.ops {
		d.logLocked("%s", op.call)
		switch {
		case op.pipeline != nil:
			pipeline = op.pipeline
		case op.group != nil:
			groups[op.index] = op.group
		case op.dispatch != nil, op.indirect != nil:
			if pipeline == nil {
				return fmt.Errorf("memory: pass %q dispatches without a pipeline", p.label)
			}
			size := op.dispatch
			if op.indirect != nil {
				size = indirectArgs(op.indirect, op.indirectOffset)
			}
			if k, ok := d.kernels[pipeline.entryPoint]; ok {
				k(&KernelContext{Workgroups: *size, groups: groups})
			}
		}
	}
	d.logLocked("EndComputePass(%s)", p.label)
	return nil
}

// renderPass implements gpucore.RenderPassEncoder.
// Draws are logged only. Attachment clears and resolves are applied at
// End.
type renderPass struct {
	dev         *Device
	label       string
	attachments []gpucore.RenderPassColorAttachment
	depth       *gpucore.RenderPassDepthStencilAttachment
	calls       []string
	err         error
	ended       bool
}

// BeginRenderPass implements gpucore.Device.
func (d *Device) BeginRenderPass(desc *gpucore.RenderPassDescriptor) (gpucore.RenderPassEncoder, error) {
	for i, a := range desc.ColorAttachments {
		t, err := asTexture(a.Target)
		if err != nil {
			return nil, fmt.Errorf("render pass %q attachment %d: %w", desc.Label, i, err)
		}
		if a.ResolveTarget == nil {
			continue
		}
		r, err := asTexture(a.ResolveTarget)
		if err != nil {
			return nil, fmt.Errorf("render pass %q attachment %d resolve target: %w", desc.Label, i, err)
		}
		if r.width != t.width || r.height != t.height || r.format != t.format {
			return nil, fmt.Errorf("%w: render pass %q attachment %d resolve target %s does not match %s",
				ErrInvalidDescriptor, desc.Label, i, r.label, t.label)
		}
	}
	p := &renderPass{
		dev:         d,
		label:       desc.Label,
		attachments: append([]gpucore.RenderPassColorAttachment(nil), desc.ColorAttachments...),
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		t, err := asTexture(ds.Target)
		if err != nil {
			return nil, fmt.Errorf("render pass %q depth attachment: %w", desc.Label, err)
		}
		if !isDepthFormat(t.format) {
			return nil, fmt.Errorf("%w: render pass %q depth attachment %s has format %v",
				ErrInvalidDescriptor, desc.Label, t.label, t.format)
		}
		depth := *ds
		p.depth = &depth
	}
	return p, nil
}

func isDepthFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth16Unorm, gputypes.TextureFormatDepth32Float:
		return true
	}
	return false
}

func (p *renderPass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *renderPass) add(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

// SetPipeline implements gpucore.RenderPassEncoder.
func (p *renderPass) SetPipeline(pipeline gpucore.RenderPipeline) {
	rp, err := asRenderPipeline(pipeline)
	if err != nil {
		p.fail(err)
		return
	}
	p.add("SetPipeline(%s)", rp.label)
}

// SetBindGroup implements gpucore.RenderPassEncoder.
func (p *renderPass) SetBindGroup(index uint32, group gpucore.BindGroup, _ []uint32) {
	g, err := asBindGroup(group)
	if err != nil {
		p.fail(err)
		return
	}
	p.add("SetBindGroup(%d,%s)", index, g.label)
}

// SetVertexBuffer implements gpucore.RenderPassEncoder.
func (p *renderPass) SetVertexBuffer(slot uint32, buf gpucore.Buffer, offset, size uint64) {
	b, err := asBuffer(buf)
	if err != nil {
		p.fail(err)
		return
	}
	p.add("SetVertexBuffer(%d,%s,%d,%d)", slot, b.label, offset, size)
}

// SetIndexBuffer implements gpucore.RenderPassEncoder.
func (p *renderPass) SetIndexBuffer(buf gpucore.Buffer, format gputypes.IndexFormat, offset, size uint64) {
	b, err := asBuffer(buf)
	if err != nil {
		p.fail(err)
		return
	}
	p.add("SetIndexBuffer(%s,%v,%d,%d)", b.label, format, offset, size)
}

// SetViewport implements gpucore.RenderPassEncoder.
func (p *renderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.add("SetViewport(%g,%g,%g,%g,%g,%g)", x, y, width, height, minDepth, maxDepth)
}

// SetScissorRect implements gpucore.RenderPassEncoder.
func (p *renderPass) SetScissorRect(x, y, width, height uint32) {
	p.add("SetScissorRect(%d,%d,%d,%d)", x, y, width, height)
}

// Draw implements gpucore.RenderPassEncoder.
func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.add("Draw(%d,%d,%d,%d)", vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed implements gpucore.RenderPassEncoder.
func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.add("DrawIndexed(%d,%d,%d,%d,%d)", indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// End implements gpucore.RenderPassEncoder.
func (p *renderPass) End() error {
	if p.ended {
		return ErrPassEnded
	}
	p.ended = true
	if p.err != nil {
		return p.err
	}

	d := p.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logLocked("BeginRenderPass(%s)", p.label)
	for _, a := range p.attachments {
		if a.LoadOp == gputypes.LoadOpClear {
			clearTexture(a.Target.(*Texture), a.ClearValue)
		}
	}
	if ds := p.depth; ds != nil {
		t := ds.Target.(*Texture)
		if ds.DepthLoadOp == gputypes.LoadOpClear && !ds.DepthReadOnly {
			clearDepth(t, ds.DepthClearValue)
		}
		d.logLocked("DepthStencilAttachment(%s,%v,%v)", t.label, ds.DepthLoadOp, ds.DepthStoreOp)
	}
	for _, c := range p.calls {
		d.logLocked("%s", c)
	}
	for _, a := range p.attachments {
		if a.ResolveTarget != nil {
			r := a.ResolveTarget.(*Texture)
			copy(r.data, a.Target.(*Texture).data)
			d.logLocked("Resolve(%s,%s)", a.Target.(*Texture).label, r.label)
		}
	}
	d.logLocked("EndRenderPass(%s)", p.label)
	return nil
}

// clearDepth fills a depth texture with v.
func clearDepth(t *Texture, v float32) {
	var texel []byte
	switch t.format {
	case gputypes.TextureFormatDepth32Float:
		texel = binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
	case gputypes.TextureFormatDepth16Unorm:
		u := math.Round(math.Max(0, math.Min(1, float64(v))) * 65535)
		texel = binary.LittleEndian.AppendUint16(nil, uint16(u))
	default:
		return
	}
	for i := 0; i+len(texel) <= len(t.data); i += len(texel) {
		copy(t.data[i:], texel)
	}
}

// clearTexture fills t with c. Only 8-bit formats are filled; other
// formats are left untouched.
func clearTexture(t *Texture, c gputypes.Color) {
	var texel []byte
	switch t.format {
	case gputypes.TextureFormatRGBA8Unorm:
		texel = []byte{unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)}
	case gputypes.TextureFormatBGRA8Unorm:
		texel = []byte{unorm8(c.B), unorm8(c.G), unorm8(c.R), unorm8(c.A)}
	case gputypes.TextureFormatR8Unorm:
		texel = []byte{unorm8(c.R)}
	default:
		return
	}
	for i := 0; i+len(texel) <= len(t.data); i += len(texel) {
		copy(t.data[i:], texel)
	}
}

// unorm8 converts a [0,1] float to an 8-bit unorm value.
func unorm8(v float64) byte {
	return byte(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
