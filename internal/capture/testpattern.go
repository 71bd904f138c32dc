package capture

import (
	"context"
	"sync"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

func init() {
	Register("testpattern", func(cfg Config) (Source, error) {
		return NewTestPattern(cfg.Width, cfg.Height, cfg.FPS), nil
	})
}

// bars are the SMPTE colour bars, as B, G, R.
var bars = [][3]byte{
	{192, 192, 192}, // grey
	{0, 192, 192},   // yellow
	{192, 192, 0},   // cyan
	{0, 192, 0},     // green
	{192, 0, 192},   // magenta
	{0, 0, 192},     // red
	{192, 0, 0},     // blue
}

// TestPattern generates colour bars with a sweeping white column, paced
// at a fixed frame rate. It needs no hardware.
type TestPattern struct {
	width, height int
	interval      time.Duration

	mu      sync.Mutex
	ticker  *time.Ticker
	seq     uint64
	stopped bool
}

// NewTestPattern returns a generator. Zero sizes default to 640x480 and a
// non-positive fps delivers frames as fast as they are asked for.
func NewTestPattern(width, height, fps int) *TestPattern {
	if width <= 0 || height <= 0 {
		width, height = 640, 480
	}
	p := &TestPattern{width: width, height: height}
	if fps > 0 {
		p.interval = time.Second / time.Duration(fps)
	}
	return p
}

// Start begins pacing.
func (p *TestPattern) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.interval > 0 {
		p.ticker = time.NewTicker(p.interval)
	}
	p.stopped = false
	return nil
}

// Next renders the next frame.
func (p *TestPattern) Next(ctx context.Context) (*frame.Frame, error) {
	p.mu.Lock()
	ticker, stopped := p.ticker, p.stopped
	p.mu.Unlock()
	if stopped {
		return nil, ErrClosed
	}

	if ticker != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	seq := p.seq
	p.seq++
	p.mu.Unlock()

	f := frame.New(p.width, p.height, frame.LayoutBGR24)
	f.Seq = seq
	f.Timestamp = time.Now()
	sweep := int(seq) % p.width
	for y := 0; y < p.height; y++ {
		row := f.Row(y)
		for x := 0; x < p.width; x++ {
			c := bars[x*len(bars)/p.width]
			if x == sweep {
				c = [3]byte{255, 255, 255}
			}
			copy(row[x*3:], c[:])
		}
	}
	return f, nil
}

// Stop ends the stream; later calls to Next return ErrClosed.
func (p *TestPattern) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	p.stopped = true
	return nil
}

// Name returns the backend name
func (p *TestPattern) Name() string {
	return "testpattern"
}
