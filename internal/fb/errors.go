package fb

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceOpen matches every DeviceOpenError.
	ErrDeviceOpen = errors.New("cannot open framebuffer device")
	// ErrGeometryQuery matches every GeometryQueryError.
	ErrGeometryQuery = errors.New("cannot query framebuffer geometry")
	// ErrUnsupportedDepth is returned for pixel depths other than 16 and 32.
	ErrUnsupportedDepth = errors.New("unsupported framebuffer depth")
)

// DeviceOpenError is fatal at startup: without the device nothing can be shown.
type DeviceOpenError struct {
	Path string
	Err  error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("open framebuffer %s: %v", e.Path, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }

func (e *DeviceOpenError) Is(target error) bool { return target == ErrDeviceOpen }

// GeometryQueryError is fatal at startup: row math needs the geometry.
type GeometryQueryError struct {
	Path string
	Err  error
}

func (e *GeometryQueryError) Error() string {
	return fmt.Sprintf("FBIOGET_VSCREENINFO on %s: %v", e.Path, e.Err)
}

func (e *GeometryQueryError) Unwrap() error { return e.Err }

func (e *GeometryQueryError) Is(target error) bool { return target == ErrGeometryQuery }
