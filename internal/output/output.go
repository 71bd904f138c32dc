// Package output feeds the last displayed frame to secondary sinks, such
// as the MJPEG preview served over HTTP.
package output

import (
	"github.com/bryanchriswhite/fbcam/internal/frame"
)

// Output is a sink for displayed frames.
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a frame to the output. The frame is shared and
	// must not be modified.
	WriteFrame(f *frame.Frame) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	FPS     int
	Quality int
}
