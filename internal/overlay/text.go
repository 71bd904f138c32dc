package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// label renders one line of 7x13 text on an optional background box.
type label struct {
	fg      color.RGBA
	bg      *color.RGBA
	padding int
}

var face = basicfont.Face7x13

// size returns the pixel size of the box around text.
func (l label) size(text string) (w, h int) {
	d := &font.Drawer{Face: face}
	return d.MeasureString(text).Ceil() + 2*l.padding, face.Height + 2*l.padding
}

// draw renders text into a fresh box image.
func (l label) draw(text string) *image.RGBA {
	w, h := l.size(text)
	box := image.NewRGBA(image.Rect(0, 0, w, h))
	if l.bg != nil {
		draw.Draw(box, box.Bounds(), image.NewUniform(*l.bg), image.Point{}, draw.Src)
	}
	d := &font.Drawer{
		Dst:  box,
		Src:  image.NewUniform(l.fg),
		Face: face,
		Dot:  fixed.P(l.padding, l.padding+face.Ascent),
	}
	d.DrawString(text)
	return box
}

// TextWidget shows a fixed caption.
type TextWidget struct {
	base
	label
	text string
}

// NewTextWidget returns white text on a translucent black box.
func NewTextWidget(id, text string, anchor Anchor) *TextWidget {
	return &TextWidget{
		base:  newBase(id, anchor),
		label: label{fg: color.RGBA{255, 255, 255, 255}, bg: &color.RGBA{0, 0, 0, 160}, padding: 3},
		text:  text,
	}
}

// SetText replaces the caption.
func (w *TextWidget) SetText(text string) {
	w.text = text
}

// Render implements Widget.
func (w *TextWidget) Render(img *image.RGBA, _ *frame.Frame) error {
	if w.text == "" {
		return nil
	}
	box := w.draw(w.text)
	blend(img, box, w.origin(img.Bounds(), box.Bounds().Dx(), box.Bounds().Dy()), w.opacity)
	return nil
}
