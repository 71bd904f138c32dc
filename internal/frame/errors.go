package frame

import (
	"errors"
	"fmt"
)

// ErrInvalidFrame matches every InvalidFrameError via errors.Is.
var ErrInvalidFrame = errors.New("invalid frame")

// InvalidFrameError describes an empty or malformed frame. It is a
// per-frame condition: the pipeline drops the frame and carries on.
type InvalidFrameError struct {
	Width  int
	Height int
	Reason string
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame %dx%d: %s", e.Width, e.Height, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidFrame) match.
func (e *InvalidFrameError) Is(target error) bool {
	return target == ErrInvalidFrame
}

func invalid(w, h int, reason string) error {
	return &InvalidFrameError{Width: w, Height: h, Reason: reason}
}
