package frame

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// FromImage copies any image into a BGR24 frame.
func FromImage(img image.Image) (*Frame, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, invalid(b.Dx(), b.Dy(), "empty image")
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), img, b.Min, xdraw.Src)
	}

	f := New(b.Dx(), b.Dy(), LayoutBGR24)
	for y := 0; y < f.Height; y++ {
		in := rgba.Pix[y*rgba.Stride:]
		out := f.Row(y)
		for x := 0; x < f.Width; x++ {
			out[x*3] = in[x*4+2]
			out[x*3+1] = in[x*4+1]
			out[x*3+2] = in[x*4]
		}
	}
	return f, nil
}

// ToRGBA renders the frame as an opaque RGBA image for encoders.
func (f *Frame) ToRGBA() (*image.RGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(f.Bounds())
	bpp := f.Layout.BytesPerPixel()
	for y := 0; y < f.Height; y++ {
		in := f.Row(y)
		out := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			b, g, r := decodePixel(f.Layout, in[x*bpp:])
			out[x*4], out[x*4+1], out[x*4+2], out[x*4+3] = r, g, b, 0xff
		}
	}
	return img, nil
}

// Fill paints every pixel with c.
func (f *Frame) Fill(c color.RGBA) {
	bpp := f.Layout.BytesPerPixel()
	px := make([]byte, bpp)
	encodePixel(f.Layout, px, c.B, c.G, c.R)
	for y := 0; y < f.Height; y++ {
		row := f.Row(y)
		for x := 0; x < len(row); x += bpp {
			copy(row[x:], px)
		}
	}
}
