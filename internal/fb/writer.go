package fb

import (
	"fmt"
	"image"
	"io"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

// Placement says where a frame lands on the display and which part of it
// is kept when it is larger than the visible area.
type Placement struct {
	X, Y int             // destination offset in pixels
	Crop image.Rectangle // source region to write
}

// Writer writes device-layout frames into display memory, one row at a time.
type Writer struct {
	dev    io.WriterAt
	geo    Geometry
	layout frame.Layout
}

// NewWriter validates the geometry and returns a writer for dev.
func NewWriter(dev io.WriterAt, geo Geometry) (*Writer, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	layout, _ := geo.Layout()
	return &Writer{dev: dev, geo: geo, layout: layout}, nil
}

// Geometry returns the display geometry.
func (w *Writer) Geometry() Geometry {
	return w.geo
}

// Layout returns the frame layout the device expects.
func (w *Writer) Layout() frame.Layout {
	return w.layout
}

// RowOffset is the byte offset of frame row y placed at (xOffset, yOffset):
// ((y + yOffset) * virtualRowWidth + xOffset) * bytesPerPixel.
func (w *Writer) RowOffset(y, xOffset, yOffset int) int64 {
	return (int64(y+yOffset)*int64(w.geo.XresVirtual) + int64(xOffset)) * int64(w.geo.BytesPerPixel())
}

// RowBytes is the number of bytes written per row for a frame of the given width.
func (w *Writer) RowBytes(width int) int {
	return width * w.geo.BytesPerPixel()
}

// Center places a width×height frame in the middle of the visible area,
// cropping it around its own center when it does not fit.
func (w *Writer) Center(width, height int) Placement {
	visW, visH := w.geo.VisibleWidth(), w.geo.VisibleHeight()
	cw, ch := min(width, visW), min(height, visH)
	sx, sy := (width-cw)/2, (height-ch)/2
	return Placement{
		X:    (visW - cw) / 2,
		Y:    (visH - ch) / 2,
		Crop: image.Rect(sx, sy, sx+cw, sy+ch),
	}
}

// Origin places a frame at the top-left corner, cropping what does not fit.
func (w *Writer) Origin(width, height int) Placement {
	return Placement{
		Crop: image.Rect(0, 0, min(width, w.geo.VisibleWidth()), min(height, w.geo.VisibleHeight())),
	}
}

// WriteFrame writes every row of f at (xOffset, yOffset).
//
// The caller guarantees xOffset+f.Width <= XresVirtual and
// yOffset+f.Height <= Rows(). Breaking that would scribble over unrelated
// display memory, so it panics. A write error stops at the failing row;
// rows already written stay on screen.
func (w *Writer) WriteFrame(f *frame.Frame, xOffset, yOffset int) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Layout != w.layout {
		return &frame.InvalidFrameError{
			Width:  f.Width,
			Height: f.Height,
			Reason: fmt.Sprintf("layout %s does not match device layout %s", f.Layout, w.layout),
		}
	}
	if xOffset < 0 || yOffset < 0 ||
		xOffset+f.Width > int(w.geo.XresVirtual) ||
		yOffset+f.Height > w.geo.Rows() {
		panic(fmt.Sprintf("fb: %dx%d frame at (%d,%d) exceeds %d-wide, %d-row display",
			f.Width, f.Height, xOffset, yOffset, w.geo.XresVirtual, w.geo.Rows()))
	}

	n := w.RowBytes(f.Width)
	for y := 0; y < f.Height; y++ {
		row := f.Row(y)
		if _, err := w.dev.WriteAt(row[:n], w.RowOffset(y, xOffset, yOffset)); err != nil {
			return fmt.Errorf("write row %d: %w", y, err)
		}
	}
	return nil
}
