package commands

import (
	"fmt"

	"github.com/bryanchriswhite/fbcam/internal/config"
	"github.com/bryanchriswhite/fbcam/internal/fb"
)

// geometryFor returns the configured override, or queries the device.
func geometryFor(d config.DisplayConfig) (fb.Geometry, error) {
	var (
		geo fb.Geometry
		err error
	)
	if o := d.Geometry; o.BitsPerPixel != 0 {
		geo = fb.Geometry{
			BitsPerPixel: o.BitsPerPixel,
			XresVirtual:  o.XresVirtual,
			Xres:         o.Xres,
			Yres:         o.Yres,
			YresVirtual:  o.Yres,
		}
	} else if geo, err = fb.QueryGeometry(d.Device); err != nil {
		return fb.Geometry{}, err
	}

	if err := geo.Validate(); err != nil {
		return fb.Geometry{}, fmt.Errorf("%s: %w", d.Device, err)
	}
	return geo, nil
}

// openDevice opens the display for writing in the configured mode.
func openDevice(d config.DisplayConfig, geo fb.Geometry) (fb.Device, error) {
	if d.Mode == "mmap" {
		dev, err := fb.OpenMmap(d.Device, geo)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	f, err := fb.OpenFile(d.Device)
	if err != nil {
		return nil, err
	}
	return f, nil
}
