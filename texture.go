package gpures

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/gpures/coherency"
	"github.com/gogpu/gpures/gpucore"
	"github.com/gogpu/gpures/resource"
)

// Texture2D is a 2D texture with a host copy under coherency tracking.
//
// The host copy stores Height rows of BytesPerRow bytes, where the row
// pitch is the texel row rounded up to Config.TextureRowAlignment. Render
// passes that target the texture mark the device copy newer, so the next
// host read pulls it.
type Texture2D struct {
	inst   *Instance
	label  string
	width  uint32
	height uint32
	format gputypes.TextureFormat
	texel  uint32
	pitch  uint32

	// op serializes host accesses and device syncs; it is taken before
	// the tracker mutex.
	op      sync.Mutex
	handle  resource.Handle[gpucore.Texture]
	tracker *coherency.Tracker
	data    []byte
}

// NewTexture2D creates a zeroed texture. Sampling and copy usages are
// always added to usage.
func NewTexture2D(inst *Instance, label string, width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (*Texture2D, error) {
	texel := gpucore.BytesPerTexel(format)
	if texel == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: texture %q of %dx%d", ErrInvalidDescriptor, label, width, height)
	}
	usage |= gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst

	h, err := inst.CreateTexture(TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Format: format,
		Usage:  usage,
	})
	if err != nil {
		return nil, err
	}

	pitch := gpucore.AlignedBytesPerRow(width, texel, inst.config.TextureRowAlignment)
	t := &Texture2D{
		inst:    inst,
		label:   label,
		width:   width,
		height:  height,
		format:  format,
		texel:   texel,
		pitch:   pitch,
		handle:  h,
		tracker: coherency.NewTracker(coherency.DirtyHost),
		data:    make([]byte, int(pitch)*int(height)),
	}
	inst.attachTexture(h, t)
	return t, nil
}

// Width returns the width in texels.
func (t *Texture2D) Width() uint32 { return t.width }

// Height returns the height in texels.
func (t *Texture2D) Height() uint32 { return t.height }

// Format returns the texel format.
func (t *Texture2D) Format() gputypes.TextureFormat { return t.format }

// BytesPerRow returns the row pitch of the host copy.
func (t *Texture2D) BytesPerRow() uint32 { return t.pitch }

// flush uploads the host copy. Must be called with op held.
func (t *Texture2D) flush() error {
	tex, err := t.inst.textures.Lookup(t.handle)
	if err != nil {
		return fmt.Errorf("%w: flush %q: %w", ErrTransfer, t.label, err)
	}
	if err := t.inst.device.WriteTexture(tex, t.data, t.pitch); err != nil {
		return fmt.Errorf("%w: flush %q: %w", ErrTransfer, t.label, err)
	}
	return nil
}

// pull downloads the device copy. Must be called with op held.
func (t *Texture2D) pull() error {
	tex, err := t.inst.textures.Lookup(t.handle)
	if err != nil {
		return fmt.Errorf("%w: pull %q: %w", ErrTransfer, t.label, err)
	}
	tmp := make([]byte, len(t.data))
	if err := t.inst.device.ReadTexture(tex, tmp, t.pitch); err != nil {
		return fmt.Errorf("%w: pull %q: %w", ErrTransfer, t.label, err)
	}
	// Keep the host padding as it was; only texel bytes come from the device.
	row := t.width * t.texel
	for y := uint32(0); y < t.height; y++ {
		copy(t.data[y*t.pitch:y*t.pitch+row], tmp[y*t.pitch:y*t.pitch+row])
	}
	return nil
}

func (t *Texture2D) syncDevice() error {
	t.op.Lock()
	defer t.op.Unlock()
	return t.tracker.BeforeDeviceUse(t.flush)
}

func (t *Texture2D) deviceWrote() {
	t.op.Lock()
	t.tracker.MarkDevice()
	t.op.Unlock()
}

func (t *Texture2D) read(fn func() error) error {
	t.op.Lock()
	defer t.op.Unlock()
	if err := t.tracker.BeforeRead(t.pull); err != nil {
		return err
	}
	return fn()
}

// write leaves the state alone when fn fails.
func (t *Texture2D) write(fn func() error) error {
	t.op.Lock()
	defer t.op.Unlock()
	if err := t.tracker.BeforeRead(t.pull); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	t.tracker.MarkHost()
	return nil
}

func (t *Texture2D) offset(x, y uint32) (int, error) {
	if x >= t.width || y >= t.height {
		return 0, fmt.Errorf("%w: texel (%d,%d) of %dx%d", ErrOutOfRange, x, y, t.width, t.height)
	}
	return int(y*t.pitch + x*t.texel), nil
}

// At returns a copy of the bytes of texel (x, y).
func (t *Texture2D) At(x, y uint32) ([]byte, error) {
	var out []byte
	err := t.read(func() error {
		off, err := t.offset(x, y)
		if err != nil {
			return err
		}
		out = append([]byte(nil), t.data[off:off+int(t.texel)]...)
		return nil
	})
	return out, err
}

// Set replaces the bytes of texel (x, y). len(texel) must equal the texel
// size of the format.
func (t *Texture2D) Set(x, y uint32, texel []byte) error {
	if len(texel) != int(t.texel) {
		return fmt.Errorf("%w: %d bytes for a %d-byte texel", ErrSizeMismatch, len(texel), t.texel)
	}
	return t.write(func() error {
		off, err := t.offset(x, y)
		if err != nil {
			return err
		}
		copy(t.data[off:], texel)
		return nil
	})
}

// Bytes returns a copy of the host storage, BytesPerRow bytes per row.
func (t *Texture2D) Bytes() ([]byte, error) {
	var out []byte
	err := t.read(func() error {
		out = append([]byte(nil), t.data...)
		return nil
	})
	return out, err
}

// SetImage converts img to the texture format and replaces the contents.
// An image of a different size is scaled to fit. Only RGBA8Unorm,
// BGRA8Unorm and R8Unorm textures accept images.
func (t *Texture2D) SetImage(img image.Image) error {
	if !imageFormat(t.format) {
		return fmt.Errorf("%w: SetImage on %v", ErrUnsupportedFormat, t.format)
	}
	w, h := int(t.width), int(t.height)
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		xdraw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(rgba, rgba.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	}

	return t.write(func() error {
		for y := 0; y < h; y++ {
			src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+4*w]
			dst := t.data[y*int(t.pitch):]
			for x := 0; x < w; x++ {
				p := src[4*x : 4*x+4]
				switch t.format {
				case gputypes.TextureFormatRGBA8Unorm:
					copy(dst[4*x:], p)
				case gputypes.TextureFormatBGRA8Unorm:
					dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = p[2], p[1], p[0], p[3]
				case gputypes.TextureFormatR8Unorm:
					dst[x] = p[0]
				}
			}
		}
		return nil
	})
}

// Image returns the contents as an image: *image.RGBA for RGBA8Unorm and
// BGRA8Unorm textures, *image.Gray for R8Unorm.
func (t *Texture2D) Image() (image.Image, error) {
	if !imageFormat(t.format) {
		return nil, fmt.Errorf("%w: Image on %v", ErrUnsupportedFormat, t.format)
	}
	w, h := int(t.width), int(t.height)
	var out image.Image
	err := t.read(func() error {
		if t.format == gputypes.TextureFormatR8Unorm {
			gray := image.NewGray(image.Rect(0, 0, w, h))
			for y := 0; y < h; y++ {
				copy(gray.Pix[y*gray.Stride:y*gray.Stride+w], t.data[y*int(t.pitch):])
			}
			out = gray
			return nil
		}
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			src := t.data[y*int(t.pitch):]
			dst := rgba.Pix[y*rgba.Stride:]
			copy(dst[:4*w], src[:4*w])
			if t.format == gputypes.TextureFormatBGRA8Unorm {
				for x := 0; x < w; x++ {
					dst[4*x], dst[4*x+2] = dst[4*x+2], dst[4*x]
				}
			}
		}
		out = rgba
		return nil
	})
	return out, err
}

func imageFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatR8Unorm:
		return true
	}
	return false
}

// Flush uploads host changes now.
func (t *Texture2D) Flush() error { return t.syncDevice() }

// Pull downloads device changes now.
func (t *Texture2D) Pull() error {
	t.op.Lock()
	defer t.op.Unlock()
	return t.tracker.BeforeRead(t.pull)
}

// State returns the coherency state.
func (t *Texture2D) State() coherency.State { return t.tracker.State() }

// Handle returns the device texture handle without flushing.
func (t *Texture2D) Handle() resource.Handle[gpucore.Texture] { return t.handle }

// Raw flushes host changes and returns the device texture handle.
func (t *Texture2D) Raw() (resource.Handle[gpucore.Texture], error) {
	if err := t.syncDevice(); err != nil {
		return resource.Handle[gpucore.Texture]{}, err
	}
	return t.handle, nil
}

// Binding returns a TextureBinding of the texture.
func (t *Texture2D) Binding() TextureBinding {
	return TextureBinding{Texture: t.handle}
}

// Release destroys the device texture. The host copy stays readable.
func (t *Texture2D) Release() {
	t.inst.ReleaseTexture(t.handle)
}
