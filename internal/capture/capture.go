// Package capture provides camera sources for the display loop. Backends
// live in subpackages and register themselves by name; Open picks one.
package capture

import (
	"context"
	"errors"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

var (
	// ErrNoFrame means the source produced an empty frame this time.
	// The loop applies its empty-frame policy and carries on.
	ErrNoFrame = errors.New("no frame available")
	// ErrClosed means the source has ended and will never deliver again.
	ErrClosed = errors.New("capture source closed")
)

// Source delivers camera frames in BGR24 layout.
type Source interface {
	// Start opens the device and begins streaming.
	Start(ctx context.Context) error

	// Next blocks until a frame is available. It returns ErrNoFrame for
	// an empty frame, ErrClosed once the stream has ended, or ctx.Err().
	Next(ctx context.Context) (*frame.Frame, error)

	// Stop releases the device. It is safe to call more than once.
	Stop() error

	// Name returns a human-readable backend name
	Name() string
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend  string // v4l2, gstreamer, gstlaunch, x11, testpattern or auto
	Device   string
	Width    int
	Height   int
	FPS      int
	Pipeline string // gstreamer backends; replaces the generated source
}
