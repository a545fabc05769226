package memory

import (
	"fmt"

	"github.com/gogpu/gpures/gpucore"
)

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(buf gpucore.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	if err := d.beginTransferLocked(); err != nil {
		return err
	}
	if offset+uint64(len(data)) > b.Size() {
		return fmt.Errorf("%w: write [%d,+%d) into %q of %d bytes", ErrOutOfRange, offset, len(data), b.label, b.Size())
	}

	copy(b.data[offset:], data)
	d.transfers.BufferWrites++
	d.logLocked("WriteBuffer(%s,%d,%d)", b.label, offset, len(data))
	return nil
}

// ReadBuffer implements gpucore.Device.
func (d *Device) ReadBuffer(buf gpucore.Buffer, offset uint64, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, err := asBuffer(buf)
	if err != nil {
		return err
	}
	if err := d.beginTransferLocked(); err != nil {
		return err
	}
	if offset+uint64(len(dst)) > b.Size() {
		return fmt.Errorf("%w: read [%d,+%d) from %q of %d bytes", ErrOutOfRange, offset, len(dst), b.label, b.Size())
	}

	copy(dst, b.data[offset:])
	d.transfers.BufferReads++
	d.logLocked("ReadBuffer(%s,%d,%d)", b.label, offset, len(dst))
	return nil
}

// WriteTexture implements gpucore.Device.
func (d *Device) WriteTexture(tex gpucore.Texture, data []byte, bytesPerRow uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := asTexture(tex)
	if err != nil {
		return err
	}
	if err := d.beginTransferLocked(); err != nil {
		return err
	}
	if err := checkTextureLayout(t, len(data), bytesPerRow); err != nil {
		return err
	}

	row := t.rowBytes()
	for y := uint32(0); y < t.height; y++ {
		copy(t.data[y*row:(y+1)*row], data[y*bytesPerRow:])
	}
	d.transfers.TextureWrites++
	d.logLocked("WriteTexture(%s)", t.label)
	return nil
}

// ReadTexture implements gpucore.Device.
func (d *Device) ReadTexture(tex gpucore.Texture, dst []byte, bytesPerRow uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, err := asTexture(tex)
	if err != nil {
		return err
	}
	if err := d.beginTransferLocked(); err != nil {
		return err
	}
	if err := checkTextureLayout(t, len(dst), bytesPerRow); err != nil {
		return err
	}

	row := t.rowBytes()
	for y := uint32(0); y < t.height; y++ {
		copy(dst[y*bytesPerRow:y*bytesPerRow+row], t.data[y*row:(y+1)*row])
	}
	d.transfers.TextureReads++
	d.logLocked("ReadTexture(%s)", t.label)
	return nil
}

// checkTextureLayout validates a host-side row layout for t.
func checkTextureLayout(t *Texture, n int, bytesPerRow uint32) error {
	if bytesPerRow < t.rowBytes() {
		return fmt.Errorf("%w: bytesPerRow %d below row size %d of %q",
			ErrOutOfRange, bytesPerRow, t.rowBytes(), t.label)
	}
	need := int(bytesPerRow)*int(t.height-1) + int(t.rowBytes())
	if n < need {
		return fmt.Errorf("%w: %d bytes for %q, need %d", ErrOutOfRange, n, t.label, need)
	}
	return nil
}
