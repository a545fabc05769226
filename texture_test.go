package gpures

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gpures/coherency"
)

func TestTexture2DLayout(t *testing.T) {
	inst, _ := newTestInstance(t)

	tex, err := NewTexture2D(inst, "albedo", 3, 2, gputypes.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), tex.Width())
	assert.Equal(t, uint32(2), tex.Height())
	assert.Equal(t, gputypes.TextureFormatRGBA8Unorm, tex.Format())
	assert.Equal(t, uint32(256), tex.BytesPerRow())

	b, err := tex.Bytes()
	require.NoError(t, err)
	assert.Len(t, b, 512)
}

func TestTexture2DCustomAlignment(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TextureRowAlignment = 4
	inst, _ := newTestInstance(t, WithConfig(cfg))

	tex, err := NewTexture2D(inst, "mask", 5, 2, gputypes.TextureFormatR8Unorm, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), tex.BytesPerRow())
}

func TestTexture2DInvalid(t *testing.T) {
	inst, _ := newTestInstance(t)

	_, err := NewTexture2D(inst, "bad", 4, 4, gputypes.TextureFormatUndefined, 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = NewTexture2D(inst, "empty", 0, 4, gputypes.TextureFormatRGBA8Unorm, 0)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestTexture2DTexelAccess(t *testing.T) {
	inst, dev := newTestInstance(t)
	tex, err := NewTexture2D(inst, "albedo", 2, 2, gputypes.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)

	require.NoError(t, tex.Set(1, 1, []byte{1, 2, 3, 4}))
	got, err := tex.At(1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
	assert.Zero(t, dev.Transfers().TextureReads)

	assert.ErrorIs(t, tex.Set(0, 0, []byte{1, 2}), ErrSizeMismatch)
	assert.ErrorIs(t, tex.Set(2, 0, []byte{1, 2, 3, 4}), ErrOutOfRange)
	_, err = tex.At(0, 2)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestTexture2DFlushAndPull(t *testing.T) {
	inst, dev := newTestInstance(t)
	tex, err := NewTexture2D(inst, "albedo", 2, 1, gputypes.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)
	require.NoError(t, tex.Set(0, 0, []byte{10, 20, 30, 40}))

	h, err := tex.Raw()
	require.NoError(t, err)
	assert.Equal(t, tex.Handle(), h)
	assert.Equal(t, coherency.Clean, tex.State())
	assert.Equal(t, 1, dev.Transfers().TextureWrites)

	tex.deviceWrote()
	require.NoError(t, tex.Pull())
	assert.Equal(t, coherency.Clean, tex.State())
	assert.Equal(t, 1, dev.Transfers().TextureReads)

	got, err := tex.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 40}, got)
}

func TestTexture2DPullFailureKeepsState(t *testing.T) {
	inst, dev := newTestInstance(t)
	tex, err := NewTexture2D(inst, "albedo", 2, 2, gputypes.TextureFormatR8Unorm, 0)
	require.NoError(t, err)
	require.NoError(t, tex.Flush())

	tex.deviceWrote()
	dev.FailNextTransfer(nil)
	_, err = tex.At(0, 0)
	assert.ErrorIs(t, err, ErrTransfer)
	assert.Equal(t, coherency.DirtyDevice, tex.State())
}

func TestTexture2DImageRGBA(t *testing.T) {
	inst, _ := newTestInstance(t)
	tex, err := NewTexture2D(inst, "albedo", 2, 2, gputypes.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)

	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	src.SetRGBA(1, 1, color.RGBA{B: 255, A: 255})
	require.NoError(t, tex.SetImage(src))

	got, err := tex.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255}, got)

	img, err := tex.Image()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, img.At(0, 0))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, img.At(1, 1))
}

func TestTexture2DImageBGRASwizzles(t *testing.T) {
	inst, _ := newTestInstance(t)
	tex, err := NewTexture2D(inst, "swapchain", 1, 1, gputypes.TextureFormatBGRA8Unorm, 0)
	require.NoError(t, err)

	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	require.NoError(t, tex.SetImage(src))

	raw, err := tex.At(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{30, 20, 10, 255}, raw)

	img, err := tex.Image()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.At(0, 0))
}

func TestTexture2DImageGray(t *testing.T) {
	inst, _ := newTestInstance(t)
	tex, err := NewTexture2D(inst, "mask", 2, 1, gputypes.TextureFormatR8Unorm, 0)
	require.NoError(t, err)
	require.NoError(t, tex.Set(1, 0, []byte{200}))

	img, err := tex.Image()
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "image is %T", img)
	assert.Equal(t, uint8(0), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(200), gray.GrayAt(1, 0).Y)
}

func TestTexture2DImageScales(t *testing.T) {
	inst, _ := newTestInstance(t)
	tex, err := NewTexture2D(inst, "thumb", 2, 2, gputypes.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)

	src := image.NewUniform(color.RGBA{G: 255, A: 255})
	require.NoError(t, tex.SetImage(&boundedUniform{Uniform: src, r: image.Rect(0, 0, 8, 8)}))

	got, err := tex.At(1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0, 255}, got)
}

// boundedUniform is a uniform image with finite bounds.
type boundedUniform struct {
	*image.Uniform
	r image.Rectangle
}

func (b *boundedUniform) Bounds() image.Rectangle { return b.r }

func TestTexture2DImageUnsupportedFormat(t *testing.T) {
	inst, _ := newTestInstance(t)
	tex, err := NewTexture2D(inst, "depth", 2, 2, gputypes.TextureFormatR32Float, 0)
	require.NoError(t, err)

	_, err = tex.Image()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.ErrorIs(t, tex.SetImage(image.NewRGBA(image.Rect(0, 0, 2, 2))), ErrUnsupportedFormat)
}

func TestTexture2DFailedSetKeepsCleanState(t *testing.T) {
	inst, dev := newTestInstance(t)
	tex, err := NewTexture2D(inst, "albedo", 2, 2, gputypes.TextureFormatRGBA8Unorm, 0)
	require.NoError(t, err)
	require.NoError(t, tex.Flush())
	require.Equal(t, 1, dev.Transfers().TextureWrites)

	assert.ErrorIs(t, tex.Set(2, 0, []byte{1, 2, 3, 4}), ErrOutOfRange)
	assert.ErrorIs(t, tex.Set(0, 0, []byte{1}), ErrSizeMismatch)
	assert.Equal(t, coherency.Clean, tex.State())

	require.NoError(t, tex.Flush())
	assert.Equal(t, 1, dev.Transfers().TextureWrites)
}
