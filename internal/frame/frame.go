// Package frame holds the in-memory picture type passed between pipeline
// stages, plus the pixel format conversions and the letterbox compositor.
package frame

import (
	"fmt"
	"image"
	"time"
)

// Layout tags the byte layout of a Frame's pixels.
type Layout int

const (
	// LayoutBGR24 is the camera-native layout: three bytes per pixel, B G R.
	LayoutBGR24 Layout = iota
	// LayoutBGR565 is the packed 16-bit device layout, little endian,
	// red in the high 5 bits and blue in the low 5 bits.
	LayoutBGR565
	// LayoutBGRX8888 is the packed 32-bit device layout: B G R and a pad byte.
	LayoutBGRX8888
)

// BytesPerPixel returns the storage size of one pixel.
func (l Layout) BytesPerPixel() int {
	switch l {
	case LayoutBGR24:
		return 3
	case LayoutBGR565:
		return 2
	case LayoutBGRX8888:
		return 4
	default:
		return 0
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutBGR24:
		return "bgr24"
	case LayoutBGR565:
		return "bgr565"
	case LayoutBGRX8888:
		return "bgrx8888"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Frame is a 2-D grid of pixels. A Frame is owned by one pipeline stage at
// a time; once handed on it must not be mutated.
type Frame struct {
	Width     int
	Height    int
	Stride    int // bytes per row
	Layout    Layout
	Pix       []byte
	Seq       uint64
	Timestamp time.Time
}

// New allocates a zeroed frame with a tightly packed stride.
func New(width, height int, layout Layout) *Frame {
	stride := width * layout.BytesPerPixel()
	return &Frame{
		Width:  width,
		Height: height,
		Stride: stride,
		Layout: layout,
		Pix:    make([]byte, stride*height),
	}
}

// Validate reports an InvalidFrameError for empty or malformed frames.
func (f *Frame) Validate() error {
	if f == nil {
		return invalid(0, 0, "nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return invalid(f.Width, f.Height, "zero area")
	}
	bpp := f.Layout.BytesPerPixel()
	if bpp == 0 {
		return invalid(f.Width, f.Height, "unknown layout "+f.Layout.String())
	}
	if f.Stride < f.Width*bpp {
		return invalid(f.Width, f.Height, fmt.Sprintf("stride %d shorter than row of %d bytes", f.Stride, f.Width*bpp))
	}
	if len(f.Pix) < f.Stride*(f.Height-1)+f.Width*bpp {
		return invalid(f.Width, f.Height, fmt.Sprintf("pixel buffer of %d bytes too small", len(f.Pix)))
	}
	return nil
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// RowBytes is the number of meaningful bytes in one row.
func (f *Frame) RowBytes() int {
	return f.Width * f.Layout.BytesPerPixel()
}

// Row returns the pixel bytes of row y without the stride padding.
func (f *Frame) Row(y int) []byte {
	start := y * f.Stride
	return f.Pix[start : start+f.RowBytes()]
}

// Clone returns a deep, tightly packed copy.
func (f *Frame) Clone() *Frame {
	c := New(f.Width, f.Height, f.Layout)
	c.Seq = f.Seq
	c.Timestamp = f.Timestamp
	for y := 0; y < f.Height; y++ {
		copy(c.Row(y), f.Row(y))
	}
	return c
}

// Crop copies the part of f inside r into a new frame. A rectangle that
// covers the whole frame returns f itself.
func (f *Frame) Crop(r image.Rectangle) (*Frame, error) {
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		return nil, invalid(r.Dx(), r.Dy(), "crop outside frame")
	}
	if r == f.Bounds() {
		return f, nil
	}
	bpp := f.Layout.BytesPerPixel()
	c := New(r.Dx(), r.Dy(), f.Layout)
	c.Seq = f.Seq
	c.Timestamp = f.Timestamp
	for y := 0; y < c.Height; y++ {
		src := f.Pix[(r.Min.Y+y)*f.Stride+r.Min.X*bpp:]
		copy(c.Row(y), src[:c.RowBytes()])
	}
	return c, nil
}
