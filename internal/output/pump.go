package output

import (
	"context"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
)

// Source yields the most recently displayed frame, or nil.
type Source interface {
	Load() *frame.Frame
}

// Pump copies new snapshot frames into an output at a capped rate. It
// reads the shared snapshot and never touches the display loop.
type Pump struct {
	src Source
	out Output
	fps int
}

// NewPump returns a pump running at fps (10 when zero).
func NewPump(src Source, out Output, fps int) *Pump {
	if fps <= 0 {
		fps = 10
	}
	return &Pump{src: src, out: out, fps: fps}
}

// Run pumps frames until ctx is done, then stops the output.
func (p *Pump) Run(ctx context.Context) error {
	if err := p.out.Start(); err != nil {
		return err
	}
	defer p.out.Stop()

	ticker := time.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()

	var last *frame.Frame
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			last = p.Tick(last)
		}
	}
}

// Tick forwards the current frame if it differs from last and anyone is
// watching. It returns the frame now considered sent.
func (p *Pump) Tick(last *frame.Frame) *frame.Frame {
	f := p.src.Load()
	if f == nil || f == last {
		return last
	}
	if c, ok := p.out.(interface{ Clients() int }); ok && c.Clients() == 0 {
		return last
	}
	if err := p.out.WriteFrame(f); err != nil {
		logger.WithComponent("mjpeg").Debug().Err(err).Msg("Preview frame dropped")
	}
	return f
}
