package gpures

import "github.com/gogpu/gputypes"

// VertexLayout returns a tightly packed vertex buffer layout with one
// attribute per format. Attribute n is at shader location n and follows
// attribute n-1 directly; the stride is the sum of the format sizes.
func VertexLayout(step gputypes.VertexStepMode, formats ...gputypes.VertexFormat) gputypes.VertexBufferLayout {
	return VertexLayoutAt(0, step, formats...)
}

// VertexLayoutAt is VertexLayout with shader locations starting at first,
// for a second buffer whose attributes follow those of the first.
func VertexLayoutAt(first uint32, step gputypes.VertexStepMode, formats ...gputypes.VertexFormat) gputypes.VertexBufferLayout {
	attrs := make([]gputypes.VertexAttribute, len(formats))
	var offset uint64
	for n, f := range formats {
		attrs[n] = gputypes.VertexAttribute{
			Format:         f,
			Offset:         offset,
			ShaderLocation: first + uint32(n),
		}
		offset += f.Size()
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    step,
		Attributes:  attrs,
	}
}
