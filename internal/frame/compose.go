package frame

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Fit selects how the compositor sizes the source inside the canvas.
type Fit int

const (
	// FitCanvas clamps one side to the canvas and derives the other from the
	// canvas aspect ratio, so the scaled source always covers the canvas.
	FitCanvas Fit = iota
	// FitContain keeps the source aspect ratio and pads the remainder.
	FitContain
)

// ParseFit maps "canvas" and "contain" to a Fit.
func ParseFit(s string) (Fit, error) {
	switch strings.ToLower(s) {
	case "", "canvas":
		return FitCanvas, nil
	case "contain":
		return FitContain, nil
	default:
		return FitCanvas, fmt.Errorf("unknown fit mode %q (want canvas or contain)", s)
	}
}

func (f Fit) String() string {
	if f == FitContain {
		return "contain"
	}
	return "canvas"
}

// Compositor centers a source frame in a fixed-size canvas.
type Compositor struct {
	Width  int
	Height int
	Fill   color.RGBA
	Fit    Fit

	// Interp resamples BGR24 sources through x/image/draw when set.
	// Other layouts always use the nearest-neighbour copy.
	Interp xdraw.Interpolator
}

// NewCompositor returns a compositor with a black fill.
func NewCompositor(width, height int, fit Fit) Compositor {
	return Compositor{
		Width:  width,
		Height: height,
		Fill:   color.RGBA{A: 0xff},
		Fit:    fit,
	}
}

// ScaledSize returns the size the source is scaled to before centering.
//
// In FitCanvas mode a source wider than the canvas (by aspect) gets the
// canvas height and a width derived from the canvas aspect; otherwise it
// gets the canvas width and a height derived from the inverse aspect.
// Aspects are compared by cross-multiplication to stay in integers.
func (c Compositor) ScaledSize(srcW, srcH int) (w, h int) {
	wider := srcW*c.Height > c.Width*srcH
	switch c.Fit {
	case FitContain:
		if wider {
			w = c.Width
			h = c.Width * srcH / srcW
		} else {
			h = c.Height
			w = c.Height * srcW / srcH
		}
	default:
		if wider {
			h = c.Height
			w = h * c.Width / c.Height
		} else {
			w = c.Width
			h = w * c.Height / c.Width
		}
	}
	return clamp(w, 1, c.Width), clamp(h, 1, c.Height)
}

// Offsets returns the top-left corner of a w×h block centered in the canvas.
func (c Compositor) Offsets(w, h int) (x, y int) {
	return (c.Width - w) / 2, (c.Height - h) / 2
}

// Compose scales src and centers it on a canvas-sized frame of the same
// layout, filling the border with c.Fill. The result is always exactly
// c.Width × c.Height.
func (c Compositor) Compose(src *Frame) (*Frame, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("compositor canvas %dx%d has no area", c.Width, c.Height)
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	w, h := c.ScaledSize(src.Width, src.Height)
	x, y := c.Offsets(w, h)

	if c.Interp != nil && src.Layout == LayoutBGR24 {
		return c.composeInterp(src, image.Rect(x, y, x+w, y+h))
	}

	dst := New(c.Width, c.Height, src.Layout)
	dst.Seq, dst.Timestamp = src.Seq, src.Timestamp
	if w != c.Width || h != c.Height {
		dst.Fill(c.Fill)
	}
	scaleInto(dst, image.Rect(x, y, x+w, y+h), src)
	return dst, nil
}

func (c Compositor) composeInterp(src *Frame, dr image.Rectangle) (*Frame, error) {
	img, err := src.ToRGBA()
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.Fill), image.Point{}, xdraw.Src)
	c.Interp.Scale(canvas, dr, img, img.Bounds(), xdraw.Src, nil)

	dst, err := FromImage(canvas)
	if err != nil {
		return nil, err
	}
	dst.Seq, dst.Timestamp = src.Seq, src.Timestamp
	return dst, nil
}

// ParseInterp maps a scaler name to an interpolator. "nearest" and ""
// return nil, selecting the built-in copy.
func ParseInterp(s string) (xdraw.Interpolator, error) {
	switch strings.ToLower(s) {
	case "", "nearest":
		return nil, nil
	case "bilinear":
		return xdraw.ApproxBiLinear, nil
	case "catmullrom":
		return xdraw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown scaler %q (use nearest, bilinear or catmullrom)", s)
	}
}

// Scale returns src resized to w×h with nearest-neighbour sampling.
func Scale(src *Frame, w, h int) (*Frame, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, invalid(w, h, "scale target has no area")
	}
	if w == src.Width && h == src.Height {
		return src, nil
	}
	dst := New(w, h, src.Layout)
	dst.Seq, dst.Timestamp = src.Seq, src.Timestamp
	scaleInto(dst, dst.Bounds(), src)
	return dst, nil
}

// scaleInto maps every pixel of dr in dst to its nearest source pixel.
func scaleInto(dst *Frame, dr image.Rectangle, src *Frame) {
	bpp := src.Layout.BytesPerPixel()
	dw, dh := dr.Dx(), dr.Dy()

	// Column lookup is the same for every row.
	cols := make([]int, dw)
	for dx := 0; dx < dw; dx++ {
		cols[dx] = (dx * src.Width / dw) * bpp
	}

	for dy := 0; dy < dh; dy++ {
		in := src.Row(dy * src.Height / dh)
		out := dst.Pix[(dr.Min.Y+dy)*dst.Stride+dr.Min.X*bpp:]
		if dw == src.Width {
			copy(out[:dw*bpp], in)
			continue
		}
		for dx, sx := range cols {
			copy(out[dx*bpp:dx*bpp+bpp], in[sx:sx+bpp])
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
