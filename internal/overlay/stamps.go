package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

// DefaultTimeLayout is the timestamp printed on recordings.
const DefaultTimeLayout = "2006-01-02 15:04:05.000"

// TimestampWidget prints the capture time and frame number.
type TimestampWidget struct {
	base
	label
	layout string
}

// NewTimestampWidget returns a timestamp in the given corner.
func NewTimestampWidget(id string, anchor Anchor) *TimestampWidget {
	return &TimestampWidget{
		base:   newBase(id, anchor),
		label:  label{fg: color.RGBA{255, 255, 0, 255}, bg: &color.RGBA{0, 0, 0, 160}, padding: 3},
		layout: DefaultTimeLayout,
	}
}

// Text is what Render prints for f.
func (w *TimestampWidget) Text(f *frame.Frame) string {
	if f.Timestamp.IsZero() {
		return fmt.Sprintf("#%d", f.Seq)
	}
	return fmt.Sprintf("%s  #%d", f.Timestamp.Format(w.layout), f.Seq)
}

// Render implements Widget.
func (w *TimestampWidget) Render(img *image.RGBA, f *frame.Frame) error {
	box := w.draw(w.Text(f))
	blend(img, box, w.origin(img.Bounds(), box.Bounds().Dx(), box.Bounds().Dy()), w.opacity)
	return nil
}

// RecBadge is a red dot followed by "REC". The dot blinks once a second
// at the given frame rate.
type RecBadge struct {
	base
	label
	fps int
}

// NewRecBadge returns a badge in the given corner.
func NewRecBadge(id string, anchor Anchor, fps int) *RecBadge {
	return &RecBadge{
		base:  newBase(id, anchor),
		label: label{fg: color.RGBA{255, 255, 255, 255}, bg: &color.RGBA{0, 0, 0, 160}, padding: 3},
		fps:   fps,
	}
}

// DotVisible reports whether the dot is drawn for frame seq.
func (w *RecBadge) DotVisible(seq uint64) bool {
	if w.fps <= 1 {
		return true
	}
	return (seq/uint64(w.fps/2))%2 == 0
}

// Render implements Widget.
func (w *RecBadge) Render(img *image.RGBA, f *frame.Frame) error {
	box := w.draw("   REC")
	if w.DotVisible(f.Seq) {
		h := box.Bounds().Dy()
		r := h / 4
		cx, cy := w.padding+r+1, h/2
		dot := image.NewUniform(color.RGBA{230, 20, 20, 255})
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if (x-cx)*(x-cx)+(y-cy)*(y-cy) <= r*r {
					draw.Draw(box, image.Rect(x, y, x+1, y+1), dot, image.Point{}, draw.Src)
				}
			}
		}
	}
	blend(img, box, w.origin(img.Bounds(), box.Bounds().Dx(), box.Bounds().Dy()), w.opacity)
	return nil
}
