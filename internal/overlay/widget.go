// Package overlay stamps text onto recorded frames: a timestamp, a REC
// badge and free-form labels.
package overlay

import (
	"image"
	"image/color"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	xdraw "golang.org/x/image/draw"
)

// Widget draws onto an encoder image. f is the frame being recorded; its
// pixels are already in img and must not be touched.
type Widget interface {
	ID() string
	Render(img *image.RGBA, f *frame.Frame) error
	Enabled() bool
	SetEnabled(enabled bool)
}

// Anchor is the corner a widget's position is measured from.
type Anchor int

const (
	TopLeft Anchor = iota
	TopRight
	BottomLeft
	BottomRight
)

// ParseAnchor accepts top-left, top-right, bottom-left and bottom-right.
func ParseAnchor(s string) (Anchor, bool) {
	switch s {
	case "top-left", "":
		return TopLeft, true
	case "top-right":
		return TopRight, true
	case "bottom-left":
		return BottomLeft, true
	case "bottom-right":
		return BottomRight, true
	}
	return TopLeft, false
}

// base holds what every widget has: identity, placement and opacity.
type base struct {
	id      string
	enabled bool
	anchor  Anchor
	margin  int
	opacity float64
}

func newBase(id string, anchor Anchor) base {
	return base{id: id, enabled: true, anchor: anchor, margin: 8, opacity: 1}
}

func (b *base) ID() string              { return b.id }
func (b *base) Enabled() bool           { return b.enabled }
func (b *base) SetEnabled(enabled bool) { b.enabled = enabled }

// origin returns the top-left corner of a w×h box anchored inside bounds.
func (b *base) origin(bounds image.Rectangle, w, h int) image.Point {
	x, y := bounds.Min.X+b.margin, bounds.Min.Y+b.margin
	if b.anchor == TopRight || b.anchor == BottomRight {
		x = bounds.Max.X - b.margin - w
	}
	if b.anchor == BottomLeft || b.anchor == BottomRight {
		y = bounds.Max.Y - b.margin - h
	}
	return image.Pt(x, y)
}

// blend composites src over dst at, scaling src alpha by opacity.
// DrawMask clips to dst.
func blend(dst *image.RGBA, src *image.RGBA, at image.Point, opacity float64) {
	if opacity <= 0 {
		return
	}
	r := src.Bounds().Sub(src.Bounds().Min).Add(at)
	mask := image.NewUniform(color.Alpha{A: uint8(min(opacity, 1)*255 + 0.5)})
	xdraw.DrawMask(dst, r, src, src.Bounds().Min, mask, image.Point{}, xdraw.Over)
}
