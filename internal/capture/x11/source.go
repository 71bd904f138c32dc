// Package x11 mirrors a region of an X11 desktop as a camera source.
package x11

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/fbcam/internal/capture"
	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
)

func init() {
	capture.Register("x11", func(cfg capture.Config) (capture.Source, error) {
		return New(cfg), nil
	})
}

// Source grabs the top-left Width x Height region of the root window.
// Device, when set, is the X display name (e.g. ":0").
type Source struct {
	cfg capture.Config

	mu       sync.Mutex
	conn     *xgb.Conn
	dead     chan struct{} // closed once the X connection is gone
	screen   *xproto.ScreenInfo
	width    int
	height   int
	interval time.Duration
	last     time.Time
	seq      uint64
}

// New returns an unstarted source.
func New(cfg capture.Config) *Source {
	s := &Source{cfg: cfg}
	if cfg.FPS > 0 {
		s.interval = time.Second / time.Duration(cfg.FPS)
	}
	return s
}

// Start connects to the X server.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := xgb.NewConnDisplay(s.cfg.Device)
	if err != nil {
		return fmt.Errorf("failed to connect to X server: %w", err)
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	if screen.RootDepth != 24 && screen.RootDepth != 32 {
		conn.Close()
		return fmt.Errorf("unsupported root depth %d", screen.RootDepth)
	}

	w, h := s.cfg.Width, s.cfg.Height
	if w <= 0 || w > int(screen.WidthInPixels) {
		w = int(screen.WidthInPixels)
	}
	if h <= 0 || h > int(screen.HeightInPixels) {
		h = int(screen.HeightInPixels)
	}

	s.conn, s.screen, s.width, s.height = conn, screen, w, h
	s.dead = make(chan struct{})
	go watch(conn, s.dead)
	logger.WithComponent("x11").Info().
		Int("width", w).
		Int("height", h).
		Msg("X11 screen source connected")
	return nil
}

// Next paces to the configured rate and grabs the region.
func (s *Source) Next(ctx context.Context) (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, capture.ErrClosed
	}
	select {
	case <-s.dead:
		return nil, capture.ErrClosed
	default:
	}
	if wait := s.interval - time.Since(s.last); s.interval > 0 && wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.dead:
			return nil, capture.ErrClosed
		case <-time.After(wait):
		}
	}
	s.last = time.Now()

	data, err := s.grab(ctx)
	if err != nil {
		return nil, err
	}

	f, err := FromBGRX(data, s.width, s.height)
	if err != nil {
		return nil, err
	}
	f.Seq = s.seq
	s.seq++
	f.Timestamp = s.last
	return f, nil
}

// grab requests the region and waits for the reply, the end of the
// connection or ctx, whichever comes first.
func (s *Source) grab(ctx context.Context) (data []byte, err error) {
	defer func() {
		// xgb panics on requests sent after it shut the connection down.
		if recover() != nil {
			data, err = nil, capture.ErrClosed
		}
	}()

	cookie := xproto.GetImage(
		s.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(s.screen.Root),
		0, 0,
		uint16(s.width), uint16(s.height),
		0xffffffff,
	)

	type result struct {
		reply *xproto.GetImageReply
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := cookie.Reply()
		done <- result{reply, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.dead:
		return nil, capture.ErrClosed
	case r := <-done:
		if r.err != nil {
			return nil, classify(r.err)
		}
		if r.reply == nil {
			return nil, capture.ErrNoFrame
		}
		return r.reply.Data, nil
	}
}

// classify keeps X protocol errors per-frame. Anything else means the
// connection is unusable.
func classify(err error) error {
	var xerr xgb.Error
	if errors.As(err, &xerr) {
		return fmt.Errorf("failed to get image: %w", err)
	}
	return fmt.Errorf("%w: %v", capture.ErrClosed, err)
}

// watch drains the event queue and closes dead when the connection ends,
// whether through Stop or a lost server.
func watch(conn *xgb.Conn, dead chan<- struct{}) {
	defer close(dead)
	for {
		ev, xerr := conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
	}
}

// FromBGRX converts ZPixmap data at depth 24/32 (B G R X) to BGR24.
func FromBGRX(data []byte, w, h int) (*frame.Frame, error) {
	if len(data) == 0 {
		return nil, capture.ErrNoFrame
	}
	if len(data) < w*h*4 {
		return nil, fmt.Errorf("image of %d bytes too small for %dx%d", len(data), w, h)
	}
	f := frame.New(w, h, frame.LayoutBGR24)
	for y := 0; y < h; y++ {
		src := data[y*w*4:]
		dst := f.Row(y)
		for x := 0; x < w; x++ {
			copy(dst[x*3:x*3+3], src[x*4:x*4+3])
		}
	}
	return f, nil
}

// Stop closes the X connection.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

// Name returns the backend name
func (s *Source) Name() string {
	return "x11"
}
