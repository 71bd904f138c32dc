// Package fb talks to Linux framebuffer devices: it reads the display
// geometry once at startup and writes device-layout frames row by row.
package fb

import (
	"fmt"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"golang.org/x/sys/unix"
)

// Geometry describes the display memory layout. It is read once and never
// changes for the life of the process.
type Geometry struct {
	BitsPerPixel uint32 `json:"bits_per_pixel" yaml:"bits_per_pixel"`
	XresVirtual  uint32 `json:"xres_virtual" yaml:"xres_virtual"`
	Xres         uint32 `json:"xres" yaml:"xres"`
	Yres         uint32 `json:"yres" yaml:"yres"`
	YresVirtual  uint32 `json:"yres_virtual" yaml:"yres_virtual"`
}

// BytesPerPixel is BitsPerPixel / 8.
func (g Geometry) BytesPerPixel() int {
	return int(g.BitsPerPixel / 8)
}

// Stride is the number of bytes between the starts of two device rows.
func (g Geometry) Stride() int {
	return int(g.XresVirtual) * g.BytesPerPixel()
}

// VisibleWidth is the on-screen width, falling back to the virtual width.
func (g Geometry) VisibleWidth() int {
	if g.Xres == 0 || g.Xres > g.XresVirtual {
		return int(g.XresVirtual)
	}
	return int(g.Xres)
}

// VisibleHeight is the on-screen height, falling back to the virtual height.
func (g Geometry) VisibleHeight() int {
	if g.Yres == 0 {
		return int(g.YresVirtual)
	}
	return int(g.Yres)
}

// Rows is the number of addressable device rows.
func (g Geometry) Rows() int {
	if g.YresVirtual > g.Yres {
		return int(g.YresVirtual)
	}
	return int(g.Yres)
}

// Size is the byte size of the addressable display memory.
func (g Geometry) Size() int {
	return g.Stride() * g.Rows()
}

// Layout maps the pixel depth to the frame layout the device expects.
// Only packed 16 and 32 bit depths are supported.
func (g Geometry) Layout() (frame.Layout, error) {
	switch g.BitsPerPixel {
	case 16:
		return frame.LayoutBGR565, nil
	case 32:
		return frame.LayoutBGRX8888, nil
	default:
		return 0, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedDepth, g.BitsPerPixel)
	}
}

// Validate checks the geometry is usable for writing frames.
func (g Geometry) Validate() error {
	if _, err := g.Layout(); err != nil {
		return err
	}
	if g.XresVirtual == 0 {
		return fmt.Errorf("framebuffer geometry has zero virtual row width")
	}
	if g.Rows() == 0 {
		return fmt.Errorf("framebuffer geometry has zero height")
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d (virtual %dx%d) @ %d bpp", g.Xres, g.Yres, g.XresVirtual, g.YresVirtual, g.BitsPerPixel)
}

// QueryGeometry opens the device, issues FBIOGET_VSCREENINFO and closes it
// again. Failures are DeviceOpenError or GeometryQueryError; both are fatal.
func QueryGeometry(path string) (Geometry, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return Geometry{}, &DeviceOpenError{Path: path, Err: err}
	}
	defer unix.Close(fd)

	vinfo, err := getVarScreeninfo(fd)
	if err != nil {
		return Geometry{}, &GeometryQueryError{Path: path, Err: err}
	}

	g := FromVarScreeninfo(vinfo)
	logger.WithComponent("fb").Debug().
		Str("device", path).
		Uint32("bits_per_pixel", g.BitsPerPixel).
		Uint32("xres_virtual", g.XresVirtual).
		Uint32("xres", g.Xres).
		Uint32("yres", g.Yres).
		Msg("Framebuffer geometry")
	return g, nil
}

// FromVarScreeninfo keeps the fields the writer needs.
func FromVarScreeninfo(v VarScreeninfo) Geometry {
	return Geometry{
		BitsPerPixel: v.BitsPerPixel,
		XresVirtual:  v.XresVirtual,
		Xres:         v.Xres,
		Yres:         v.Yres,
		YresVirtual:  v.YresVirtual,
	}
}
