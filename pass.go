package gpures

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/recording"
	"github.com/gogpu/gpures/resource"
)

// passObjects are the cached objects a pass is built from.
type passObjects struct {
	layouts        []resource.Handle[gpucore.BindGroupLayout]
	pipelineLayout resource.Handle[gpucore.PipelineLayout]
	module         resource.Handle[gpucore.ShaderModule]
	groups         []resource.Handle[gpucore.BindGroup]
}

// buildPassObjects creates or reuses the objects of ep in dependency
// order: bind group layouts, pipeline layout, shader module, bind groups.
func buildPassObjects(inst *Instance, label string, ep EntryPoint) (passObjects, error) {
	var objs passObjects

	layoutDescs := ep.BindGroupLayouts()
	objs.layouts = make([]resource.Handle[gpucore.BindGroupLayout], len(layoutDescs))
	for g, d := range layoutDescs {
		h, err := inst.CreateOrGetBindGroupLayout(d)
		if err != nil {
			return objs, fmt.Errorf("gpures: pass %q group %d layout: %w", label, g, err)
		}
		objs.layouts[g] = h
	}

	var err error
	objs.pipelineLayout, err = inst.CreateOrGetPipelineLayout(PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: objs.layouts,
	})
	if err != nil {
		return objs, fmt.Errorf("gpures: pass %q: %w", label, err)
	}

	objs.module, err = inst.CreateOrGetShaderModule(ep.ShaderModule())
	if err != nil {
		return objs, fmt.Errorf("gpures: pass %q: %w", label, err)
	}

	groupDescs, err := ep.BindGroups(objs.layouts)
	if err != nil {
		return objs, fmt.Errorf("gpures: pass %q: %w", label, err)
	}
	objs.groups = make([]resource.Handle[gpucore.BindGroup], len(groupDescs))
	for g, d := range groupDescs {
		h, err := inst.CreateOrGetBindGroup(d)
		if err != nil {
			return objs, fmt.Errorf("gpures: pass %q group %d: %w", label, g, err)
		}
		objs.groups[g] = h
	}
	return objs, nil
}

// ComputePass records a compute pass built from an entry point.
//
// NewComputePass records the pipeline and bind groups; the caller records
// dispatches and calls Finish exactly once. Work is only submitted by
// Finish: a pass that is never finished does nothing.
//
// A ComputePass is not safe for concurrent use.
type ComputePass struct {
	inst     *Instance
	label    string
	pipeline resource.Handle[gpucore.ComputePipeline]
	list     *recording.ComputeList
	finished bool
}

// NewComputePass creates or reuses the objects of ep and starts a pass
// with its pipeline and bind groups set. Bind group g is set at index g.
func NewComputePass(inst *Instance, ep EntryPoint) (*ComputePass, error) {
	label := ep.ShaderModule().Label
	objs, err := buildPassObjects(inst, label, ep)
	if err != nil {
		return nil, err
	}
	pipeline, err := inst.CreateOrGetComputePipeline(ComputePipelineDescriptor{
		Label:      label,
		Layout:     objs.pipelineLayout,
		Module:     objs.module,
		EntryPoint: ep.EntryName(),
	})
	if err != nil {
		return nil, fmt.Errorf("gpures: pass %q: %w", label, err)
	}

	list := recording.NewComputeList()
	list.SetPipeline(pipeline)
	for g, h := range objs.groups {
		list.SetBindGroup(uint32(g), h)
	}
	return &ComputePass{inst: inst, label: label, pipeline: pipeline, list: list}, nil
}

// Pipeline returns the handle of the pass pipeline.
func (p *ComputePass) Pipeline() resource.Handle[gpucore.ComputePipeline] { return p.pipeline }

// List returns the command list of the pass. Commands pushed to it are
// replayed by Finish.
func (p *ComputePass) List() *recording.ComputeList { return p.list }

// Dispatch records a dispatch of x*y*z workgroups.
func (p *ComputePass) Dispatch(x, y, z uint32) { p.list.Dispatch(x, y, z) }

// DispatchIndirect records a dispatch with workgroup counts read from buf
// at offset.
func (p *ComputePass) DispatchIndirect(buf resource.Handle[gpucore.Buffer], offset uint64) {
	p.list.DispatchIndirect(buf, offset)
}

// Finish resolves the recorded commands, replays them into a device pass
// and submits it. Host-side changes of bound resources are flushed during
// resolution; storage buffers bound read-write are marked as written by
// the device afterwards.
//
// Finish runs at most once. Later calls return ErrPassFinished. If
// resolution fails nothing is replayed.
func (p *ComputePass) Finish() error {
	if p.finished {
		return ErrPassFinished
	}
	p.finished = true
	if err := p.inst.checkOpen(); err != nil {
		return err
	}

	resolved, err := p.list.Resolve(p.inst)
	if err != nil {
		return fmt.Errorf("gpures: compute pass %q: %w", p.label, err)
	}
	enc, err := p.inst.device.BeginComputePass(p.inst.label(p.label))
	if err != nil {
		return fmt.Errorf("gpures: begin compute pass %q: %w", p.label, err)
	}
	resolved.Replay(enc)
	if err := enc.End(); err != nil {
		return fmt.Errorf("gpures: compute pass %q: %w", p.label, err)
	}

	for _, cmd := range p.list.Commands() {
		if c, ok := cmd.(recording.SetBindGroupCommand); ok {
			p.inst.markWritten(c.Group)
		}
	}
	p.inst.logger().Debug("gpures: compute pass finished", "label", p.label, "commands", resolved.Len())
	return nil
}

// ColorAttachment is a render target of a RenderPass. A non-nil
// ResolveTarget receives the multisample resolve of Target and is always
// written, whatever StoreOp says.
type ColorAttachment struct {
	Target        resource.Handle[gpucore.Texture]
	ResolveTarget *resource.Handle[gpucore.Texture]
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	ClearValue    gputypes.Color
}

// DepthStencilAttachment is the depth/stencil target of a RenderPass.
type DepthStencilAttachment struct {
	Target resource.Handle[gpucore.Texture]

	DepthLoadOp     gputypes.LoadOp
	DepthStoreOp    gputypes.StoreOp
	DepthClearValue float32
	DepthReadOnly   bool

	StencilLoadOp     gputypes.LoadOp
	StencilStoreOp    gputypes.StoreOp
	StencilClearValue uint32
	StencilReadOnly   bool
}

// writes reports whether the pass leaves new contents in the target.
func (a DepthStencilAttachment) writes() bool {
	return (a.DepthStoreOp == gputypes.StoreOpStore && !a.DepthReadOnly) ||
		(a.StencilStoreOp == gputypes.StoreOpStore && !a.StencilReadOnly)
}

// ClearDepth returns a depth attachment that clears target to depth and
// stores the result.
func ClearDepth(target resource.Handle[gpucore.Texture], depth float32) DepthStencilAttachment {
	return DepthStencilAttachment{
		Target:          target,
		DepthLoadOp:     gputypes.LoadOpClear,
		DepthStoreOp:    gputypes.StoreOpStore,
		DepthClearValue: depth,
	}
}

// ClearAttachment returns an attachment that clears target to c and
// stores the result.
func ClearAttachment(target resource.Handle[gpucore.Texture], c gputypes.Color) ColorAttachment {
	return ColorAttachment{
		Target:     target,
		LoadOp:     gputypes.LoadOpClear,
		StoreOp:    gputypes.StoreOpStore,
		ClearValue: c,
	}
}

// RenderPass records a render pass built from a RenderEntryPoint.
// It follows the ComputePass contract: Finish submits, exactly once.
//
// A RenderPass is not safe for concurrent use.
type RenderPass struct {
	inst        *Instance
	label       string
	pipeline    resource.Handle[gpucore.RenderPipeline]
	attachments []ColorAttachment
	depth       *DepthStencilAttachment
	list        *recording.RenderList
	finished    bool
}

// NewRenderPass creates or reuses the objects of ep and starts a pass
// rendering into attachments.
func NewRenderPass(inst *Instance, ep *RenderEntryPoint, attachments ...ColorAttachment) (*RenderPass, error) {
	label := ep.Label
	objs, err := buildPassObjects(inst, label, ep)
	if err != nil {
		return nil, err
	}
	pipeline, err := inst.CreateOrGetRenderPipeline(ep.pipeline(objs.pipelineLayout, objs.module))
	if err != nil {
		return nil, fmt.Errorf("gpures: pass %q: %w", label, err)
	}

	list := recording.NewRenderList()
	list.SetPipeline(pipeline)
	for g, h := range objs.groups {
		list.SetBindGroup(uint32(g), h)
	}
	return &RenderPass{
		inst:        inst,
		label:       label,
		pipeline:    pipeline,
		attachments: append([]ColorAttachment(nil), attachments...),
		list:        list,
	}, nil
}

// Pipeline returns the handle of the pass pipeline.
func (p *RenderPass) Pipeline() resource.Handle[gpucore.RenderPipeline] { return p.pipeline }

// List returns the command list of the pass.
func (p *RenderPass) List() *recording.RenderList { return p.list }

// SetDepthStencil sets the depth/stencil target, replacing any earlier
// one. The pipeline of the entry point needs a matching DepthStencil state.
func (p *RenderPass) SetDepthStencil(a DepthStencilAttachment) {
	p.depth = &a
}

// SetVertexBuffer records a vertex buffer binding.
func (p *RenderPass) SetVertexBuffer(slot uint32, s recording.BufferSlice) {
	p.list.SetVertexBuffer(slot, s)
}

// SetIndexBuffer records an index buffer binding.
func (p *RenderPass) SetIndexBuffer(s recording.BufferSlice, format gputypes.IndexFormat) {
	p.list.SetIndexBuffer(s, format)
}

// SetViewport records a viewport change.
func (p *RenderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.list.SetViewport(x, y, width, height, minDepth, maxDepth)
}

// SetScissorRect records a scissor rectangle change.
func (p *RenderPass) SetScissorRect(x, y, width, height uint32) {
	p.list.SetScissorRect(x, y, width, height)
}

// Draw records a non-indexed draw.
func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.list.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed records an indexed draw.
func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.list.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// Finish resolves the attachments and recorded commands, replays them into
// a device render pass and submits it. Attachments with a host copy are
// flushed first; those the pass stores to, resolve targets included, are
// marked as written by the device afterwards.
//
// Finish runs at most once. Later calls return ErrPassFinished.
func (p *RenderPass) Finish() error {
	if p.finished {
		return ErrPassFinished
	}
	p.finished = true
	if err := p.inst.checkOpen(); err != nil {
		return err
	}

	desc := &gpucore.RenderPassDescriptor{
		Label:            p.inst.label(p.label),
		ColorAttachments: make([]gpucore.RenderPassColorAttachment, len(p.attachments)),
	}
	for n, a := range p.attachments {
		tex, err := p.inst.Texture(a.Target)
		if err != nil {
			return fmt.Errorf("gpures: render pass %q attachment %d: %w", p.label, n, err)
		}
		desc.ColorAttachments[n] = gpucore.RenderPassColorAttachment{
			Target:     tex,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
		if a.ResolveTarget != nil {
			desc.ColorAttachments[n].ResolveTarget, err = p.inst.Texture(*a.ResolveTarget)
			if err != nil {
				return fmt.Errorf("gpures: render pass %q attachment %d resolve target: %w", p.label, n, err)
			}
		}
	}
	if ds := p.depth; ds != nil {
		tex, err := p.inst.Texture(ds.Target)
		if err != nil {
			return fmt.Errorf("gpures: render pass %q depth attachment: %w", p.label, err)
		}
		desc.DepthStencilAttachment = &gpucore.RenderPassDepthStencilAttachment{
			Target:            tex,
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
	resolved, err := p.list.Resolve(p.inst)
	if err != nil {
		return fmt.Errorf("gpures: render pass %q: %w", p.label, err)
	}

	enc, err := p.inst.device.BeginRenderPass(desc)
	if err != nil {
		return fmt.Errorf("gpures: begin render pass %q: %w", p.label, err)
	}
	resolved.Replay(enc)
	if err := enc.End(); err != nil {
		return fmt.Errorf("gpures: render pass %q: %w", p.label, err)
	}

	for _, cmd := range p.list.Commands() {
		if c, ok := cmd.(recording.SetBindGroupCommand); ok {
			p.inst.markWritten(c.Group)
		}
	}
	for _, a := range p.attachments {
		if a.StoreOp == gputypes.StoreOpStore {
			p.textureWritten(a.Target)
		}
		if a.ResolveTarget != nil {
			p.textureWritten(*a.ResolveTarget)
		}
	}
	if p.depth != nil && p.depth.writes() {
		p.textureWritten(p.depth.Target)
	}
	p.inst.logger().Debug("gpures: render pass finished", "label", p.label, "commands", resolved.Len())
	return nil
}

func (p *RenderPass) textureWritten(h resource.Handle[gpucore.Texture]) {
	if m := p.inst.textureMirror(h); m != nil {
		m.deviceWrote()
	}
}

// ExecuteCompute builds a compute pass from ep, dispatches x*y*z
// workgroups and finishes it.
func (i *Instance) ExecuteCompute(ep EntryPoint, x, y, z uint32) error {
	pass, err := NewComputePass(i, ep)
	if err != nil {
		return err
	}
	pass.Dispatch(x, y, z)
	return pass.Finish()
}
