// Package pipeline runs the display loop: pull a camera frame, convert it
// to the device layout, write it to the framebuffer, publish it for the
// side-channel and check the keyboard.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanchriswhite/fbcam/internal/capture"
	"github.com/bryanchriswhite/fbcam/internal/fb"
	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/input"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/bryanchriswhite/fbcam/internal/state"
)

// ErrCaptureTerminated ends the loop when the camera can no longer
// deliver frames, or when an empty frame arrives under PolicyAbort.
var ErrCaptureTerminated = errors.New("capture terminated")

// errQuit ends the loop cleanly on the quit key.
var errQuit = errors.New("quit requested")

// Policy decides what an empty or undecodable frame does to the loop.
type Policy int

const (
	// PolicySkip logs the frame and moves on to the next iteration.
	PolicySkip Policy = iota
	// PolicyAbort stops the loop with ErrCaptureTerminated.
	PolicyAbort
)

// ParsePolicy accepts "skip" and "abort".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "skip":
		return PolicySkip, nil
	case "abort":
		return PolicyAbort, nil
	default:
		return 0, fmt.Errorf("unknown empty-frame policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "skip"
}

// Recorder accepts frames for the recording side-channel without blocking.
type Recorder interface {
	Offer(f *frame.Frame) bool
}

// Loop owns the camera and the display for its lifetime.
type Loop struct {
	Source   capture.Source
	Writer   *fb.Writer
	Shared   *state.Shared
	Input    input.Poller
	Keymap   input.Keymap
	Recorder Recorder // may be nil
	Policy   Policy
	Center   bool

	convert frame.Converter
}

// Run iterates until ctx is cancelled, the quit key is pressed or the
// camera fails. A cancelled context and the quit key return nil.
func (l *Loop) Run(ctx context.Context) error {
	log := logger.WithComponent("loop")

	if err := l.init(); err != nil {
		return err
	}

	log.Info().
		Str("source", l.Source.Name()).
		Str("layout", l.Writer.Layout().String()).
		Str("on_empty", l.Policy.String()).
		Msg("Display loop started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Display loop stopped")
			return nil
		}

		err := l.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, errQuit):
			log.Info().Msg("Quit key pressed")
			return nil
		case ctx.Err() != nil:
			log.Info().Msg("Display loop stopped")
			return nil
		default:
			return err
		}
	}
}

func (l *Loop) init() error {
	if l.convert != nil {
		return nil
	}
	if l.Input == nil {
		l.Input = input.None{}
	}
	if l.Keymap == (input.Keymap{}) {
		l.Keymap = input.DefaultKeymap
	}
	conv, err := frame.ConverterFor(l.Writer.Layout())
	if err != nil {
		return err
	}
	l.convert = conv
	return nil
}

// Step runs one iteration. Per-frame problems are absorbed according to
// the policy; only ErrCaptureTerminated, errQuit and context errors
// escape.
func (l *Loop) Step(ctx context.Context) error {
	if err := l.init(); err != nil {
		return err
	}

	log := logger.WithComponent("loop")
	counters := &l.Shared.Counters

	src, err := l.Source.Next(ctx)
	switch {
	case err == nil:
		counters.FramesCaptured.Add(1)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, capture.ErrClosed):
		return fmt.Errorf("%w: %s: %v", ErrCaptureTerminated, l.Source.Name(), err)
	default:
		counters.FramesSkipped.Add(1)
		if l.Policy == PolicyAbort {
			return fmt.Errorf("%w: %v", ErrCaptureTerminated, err)
		}
		log.Debug().Err(err).Msg("Skipping empty frame")
		return l.pollInput()
	}

	if err := l.display(src); err != nil {
		counters.FramesSkipped.Add(1)
		if !errors.Is(err, frame.ErrInvalidFrame) {
			log.Warn().Err(err).Uint64("frame", src.Seq).Msg("Frame write failed")
		} else {
			log.Debug().Err(err).Uint64("frame", src.Seq).Msg("Skipping invalid frame")
		}
		return l.pollInput()
	}

	if l.Recorder != nil {
		l.Recorder.Offer(src)
	}
	return l.pollInput()
}

// display converts, places and writes one frame, then publishes it.
func (l *Loop) display(src *frame.Frame) error {
	out, err := l.convert(src)
	if err != nil {
		return err
	}

	var p fb.Placement
	if l.Center {
		p = l.Writer.Center(out.Width, out.Height)
	} else {
		p = l.Writer.Origin(out.Width, out.Height)
	}
	if out, err = out.Crop(p.Crop); err != nil {
		return err
	}

	if err := l.Writer.WriteFrame(out, p.X, p.Y); err != nil {
		return err
	}
	l.Shared.Counters.FramesDisplayed.Add(1)
	l.Shared.Snapshot.Publish(out)
	return nil
}

func (l *Loop) pollInput() error {
	key, ok := l.Input.Poll()
	if !ok {
		return nil
	}

	log := logger.WithComponent("loop")
	switch action := l.Keymap.Action(key); action {
	case input.ActionScreenshot:
		if l.Shared.Trigger.Set() {
			log.Info().Msg("Screenshot requested")
		}
	case input.ActionToggleRecording:
		log.Info().Bool("recording", l.Shared.ToggleRecording()).Msg("Recording toggled")
	case input.ActionQuit:
		return errQuit
	}
	return nil
}
