// Package yuv converts packed ARGB frames into the NV21 planar layout the
// face detector consumes.
package yuv

import (
	"errors"
	"image"
	"sync/atomic"
)

// ErrInvalidDimensions is returned when a frame has no pixels or its pixel
// count does not match width*height.
var ErrInvalidDimensions = errors.New("invalid frame dimensions")

// Converter turns packed 0xAARRGGBB pixels into NV21 (a full-resolution luma
// plane followed by interleaved V,U samples for every 2x2 block).
//
// The converter keeps two scratch buffers sized for the last frame it saw
// and only reallocates them when the frame dimensions change. A Converter
// is not safe for concurrent use; the returned planar slice is overwritten
// by the next call.
type Converter struct {
	width  int
	height int
	planar []byte
	packed []uint32

	allocs atomic.Int64
}

// NewConverter creates a Converter with no buffers allocated yet.
func NewConverter() *Converter {
	return &Converter{}
}

// Allocations returns how many times the scratch buffers were (re)allocated.
func (c *Converter) Allocations() int64 {
	return c.allocs.Load()
}

// Size returns the dimensions the scratch buffers are currently sized for.
func (c *Converter) Size() (width, height int) {
	return c.width, c.height
}

// PlanarSize returns the NV21 buffer length for a width x height frame.
func PlanarSize(width, height int) int {
	return width * height * 3 / 2
}

// ensure sizes the scratch buffers for width x height.
func (c *Converter) ensure(width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidDimensions
	}
	if c.planar != nil && width == c.width && height == c.height {
		return nil
	}

	n := width * height
	if n/width != height {
		return ErrInvalidDimensions
	}

	c.planar = make([]byte, PlanarSize(width, height))
	c.packed = make([]uint32, n)
	c.width = width
	c.height = height
	c.allocs.Add(1)
	return nil
}

// Convert encodes packed pixels into the converter's planar buffer.
// len(packed) must equal width*height.
func (c *Converter) Convert(packed []uint32, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || len(packed) != width*height {
		return nil, ErrInvalidDimensions
	}
	if err := c.ensure(width, height); err != nil {
		return nil, err
	}

	encodeNV21(c.planar, packed, width, height)
	return c.planar, nil
}

// ConvertImage packs img into the converter's packed scratch buffer and then
// encodes it. The image bounds decide the frame dimensions.
func (c *Converter) ConvertImage(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, ErrInvalidDimensions
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if err := c.ensure(width, height); err != nil {
		return nil, err
	}

	if rgba, ok := img.(*image.RGBA); ok {
		packRGBA(c.packed, rgba)
	} else {
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				c.packed[i] = Pack(uint8(r>>8), uint8(g>>8), uint8(bl>>8), uint8(a>>8))
				i++
			}
		}
	}

	encodeNV21(c.planar, c.packed, width, height)
	return c.planar, nil
}

func packRGBA(dst []uint32, img *image.RGBA) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+4 : x*4+4]
			dst[i] = Pack(p[0], p[1], p[2], p[3])
			i++
		}
	}
}

// Pack builds a 0xAARRGGBB pixel.
func Pack(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Unpack splits a 0xAARRGGBB pixel into its colour channels.
func Unpack(p uint32) (r, g, b uint8) {
	return uint8(p >> 16), uint8(p >> 8), uint8(p)
}
