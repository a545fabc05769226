package recording

import (
	"testing"

	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/resource"
)

func TestCommandType_String(t *testing.T) {
	tests := []struct {
		ct   CommandType
		want string
	}{
		{CmdSetPipeline, "SetPipeline"},
		{CmdSetBindGroup, "SetBindGroup"},
		{CmdSetVertexBuffer, "SetVertexBuffer"},
		{CmdSetIndexBuffer, "SetIndexBuffer"},
		{CmdSetViewport, "SetViewport"},
		{CmdSetScissorRect, "SetScissorRect"},
		{CmdDispatch, "Dispatch"},
		{CmdDispatchIndirect, "DispatchIndirect"},
		{CmdDraw, "Draw"},
		{CmdDrawIndexed, "DrawIndexed"},
		{CommandType(254), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.ct.String(); got != tt.want {
				t.Errorf("CommandType.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandInterface(t *testing.T) {
	buf := resource.FromRaw[gpucore.Buffer](0)

	compute := []ComputeCommand{
		SetComputePipelineCommand{},
		SetBindGroupCommand{},
		DispatchCommand{X: 1, Y: 1, Z: 1},
		DispatchIndirectCommand{Buffer: buf},
	}
	render := []RenderCommand{
		SetRenderPipelineCommand{},
		SetBindGroupCommand{},
		SetVertexBufferCommand{Slice: WholeBuffer(buf)},
		SetIndexBufferCommand{Slice: WholeBuffer(buf)},
		SetViewportCommand{},
		SetScissorRectCommand{},
		DrawCommand{},
		DrawIndexedCommand{},
	}

	wantCompute := []CommandType{CmdSetPipeline, CmdSetBindGroup, CmdDispatch, CmdDispatchIndirect}
	for i, cmd := range compute {
		if cmd.Type() != wantCompute[i] {
			t.Errorf("compute command %d: Type() = %v, want %v", i, cmd.Type(), wantCompute[i])
		}
	}

	wantRender := []CommandType{
		CmdSetPipeline, CmdSetBindGroup, CmdSetVertexBuffer, CmdSetIndexBuffer,
		CmdSetViewport, CmdSetScissorRect, CmdDraw, CmdDrawIndexed,
	}
	for i, cmd := range render {
		if cmd.Type() != wantRender[i] {
			t.Errorf("render command %d: Type() = %v, want %v", i, cmd.Type(), wantRender[i])
		}
	}
}

func TestWholeBuffer(t *testing.T) {
	h := resource.FromRaw[gpucore.Buffer](5)
	s := WholeBuffer(h)
	if s.Buffer != h || s.Offset != 0 || s.Size != 0 {
		t.Errorf("WholeBuffer = %+v, want whole slice of %s", s, h)
	}
}
