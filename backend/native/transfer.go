package native

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpures/gpucore"
)

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(buf gpucore.Buffer, offset uint64, data []byte) error {
	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("%w: write [%d,+%d) into %q of %d bytes", ErrOutOfRange, offset, len(data), b.label, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(b.raw, offset, data); err != nil {
		return fmt.Errorf("native: write %q: %w", b.label, err)
	}
	return nil
}

// ReadBuffer implements gpucore.Device.
// The range is widened to the copy alignment for the staging copy.
func (d *Device) ReadBuffer(buf gpucore.Buffer, offset uint64, dst []byte) error {
	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	end := offset + uint64(len(dst))
	if end > b.size {
		return fmt.Errorf("%w: read [%d,+%d) from %q of %d bytes", ErrOutOfRange, offset, len(dst), b.label, b.size)
	}
	if len(dst) == 0 {
		return nil
	}

	start := offset &^ (copyAlignment - 1)
	size := alignUp(end, copyAlignment) - start

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: b.label + "_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.newEncoder("buffer_readback")
	if err != nil {
		return err
	}
	encoder.CopyBufferToBuffer(b.raw, staging, []hal.BufferCopy{{
		SrcOffset: start,
		DstOffset: 0,
		Size:      size,
	}})
	if err := d.submit(encoder); err != nil {
		return fmt.Errorf("read %q: %w", b.label, err)
	}

	if err := d.mapRead(staging, size, func(src []byte) {
		copy(dst, src[offset-start:])
	}); err != nil {
		return fmt.Errorf("native: read staging buffer of %q: %w", b.label, err)
	}
	return nil
}

// mapRead maps the first size bytes of a completed staging buffer and
// passes them to fn. The slice is only valid during fn.
func (d *Device) mapRead(staging hal.Buffer, size uint64, fn func([]byte)) error {
	m, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return err
	}
	fn(unsafe.Slice((*byte)(m.Ptr), size))
	return d.device.UnmapBuffer(staging)
}

// checkTextureLayout validates a host row layout for t and returns the
// tight row size.
func checkTextureLayout(t *Texture, n int, bytesPerRow uint32) (uint32, error) {
	row := t.width * gpucore.BytesPerTexel(t.format)
	if bytesPerRow < row {
		return 0, fmt.Errorf("%w: bytesPerRow %d below row size %d of %q", ErrOutOfRange, bytesPerRow, row, t.label)
	}
	need := int(bytesPerRow)*int(t.height-1) + int(row)
	if n < need {
		return 0, fmt.Errorf("%w: %d bytes for %q, need %d", ErrOutOfRange, n, t.label, need)
	}
	return row, nil
}

// WriteTexture implements gpucore.Device.
func (d *Device) WriteTexture(tex gpucore.Texture, data []byte, bytesPerRow uint32) error {
	t, err := asTexture(tex)
	if err != nil {
		return err
	}
	if _, err := checkTextureLayout(t, len(data), bytesPerRow); err != nil {
		return err
	}
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: t.height},
		&hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: write %q: %w", t.label, err)
	}
	return nil
}

// ReadTexture implements gpucore.Device.
// The texture is copied into a staging buffer with rows padded to
// gpucore.CopyRowAlignment, then unpadded into dst using bytesPerRow.
func (d *Device) ReadTexture(tex gpucore.Texture, dst []byte, bytesPerRow uint32) error {
	t, err := asTexture(tex)
	if err != nil {
		return err
	}
	row, err := checkTextureLayout(t, len(dst), bytesPerRow)
	if err != nil {
		return err
	}

	padded := gpucore.AlignedBytesPerRow(t.width, gpucore.BytesPerTexel(t.format), gpucore.CopyRowAlignment)
	size := uint64(padded) * uint64(t.height)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: t.label + "_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.newEncoder("texture_readback")
	if err != nil {
		return err
	}
	if t.usage&gputypes.TextureUsageRenderAttachment != 0 {
		// Attachments must leave the render layout before the copy.
		encoder.TransitionTextures([]hal.TextureBarrier{{
			Texture: t.raw,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
	}
	encoder.CopyTextureToBuffer(t.raw, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: padded, RowsPerImage: t.height},
		TextureBase:  hal.ImageCopyTexture{Texture: t.raw, MipLevel: 0},
		Size:         hal.Extent3D{Width: t.width, Height: t.height, DepthOrArrayLayers: 1},
	}})
	if err := d.submit(encoder); err != nil {
		return fmt.Errorf("read %q: %w", t.label, err)
	}

	err = d.mapRead(staging, size, func(src []byte) {
		for y := uint32(0); y < t.height; y++ {
			copy(dst[y*bytesPerRow:y*bytesPerRow+row], src[y*padded:y*padded+row])
		}
	})
	if err != nil {
		return fmt.Errorf("native: read staging buffer of %q: %w", t.label, err)
	}
	return nil
}
