package persist

import (
	"errors"
	"fmt"
)

// ErrPersistence matches every Error.
var ErrPersistence = errors.New("persistence failed")

// Error reports a failed screenshot or recording write. It never reaches
// the display loop; the side-channel logs it and moves on.
type Error struct {
	Op   string // encode, create, write, close
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrPersistence }
