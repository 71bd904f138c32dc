// Package v4l2 captures from Video4Linux2 cameras.
package v4l2

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/capture"
	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

func init() {
	capture.Register("v4l2", func(cfg capture.Config) (capture.Source, error) {
		return New(cfg), nil
	})
}

// DefaultDevice is used when no device path is configured.
const DefaultDevice = "/dev/video0"

// Source streams MJPEG (preferred) or YUYV buffers from a V4L2 device.
type Source struct {
	cfg capture.Config

	mu     sync.Mutex
	dev    *device.Device
	cancel context.CancelFunc
	pix    v4l2.PixFormat
	seq    uint64
}

// New returns an unstarted source.
func New(cfg capture.Config) *Source {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	return &Source{cfg: cfg}
}

// Start opens the device and starts streaming. MJPEG is tried first
// since most USB cameras only reach full frame rate with it.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.WithComponent("v4l2")

	var lastErr error
	for _, pf := range []v4l2.FourCCType{v4l2.PixelFmtMJPEG, v4l2.PixelFmtYUYV} {
		dev, err := s.open(pf)
		if err != nil {
			lastErr = err
			log.Debug().Err(err).Str("device", s.cfg.Device).Msg("Pixel format rejected")
			continue
		}

		pix, err := dev.GetPixFormat()
		if err != nil {
			dev.Close()
			return fmt.Errorf("get pixel format: %w", err)
		}
		if pix.PixelFormat != v4l2.PixelFmtMJPEG && pix.PixelFormat != v4l2.PixelFmtYUYV {
			dev.Close()
			lastErr = fmt.Errorf("device negotiated unsupported pixel format %v", pix.PixelFormat)
			continue
		}

		streamCtx, cancel := context.WithCancel(ctx)
		if err := dev.Start(streamCtx); err != nil {
			cancel()
			dev.Close()
			return fmt.Errorf("start streaming %s: %w", s.cfg.Device, err)
		}

		s.dev, s.cancel, s.pix = dev, cancel, pix
		log.Info().
			Str("device", s.cfg.Device).
			Uint32("width", pix.Width).
			Uint32("height", pix.Height).
			Str("format", v4l2.PixelFormats[pix.PixelFormat]).
			Msg("V4L2 camera streaming")
		return nil
	}
	return fmt.Errorf("open %s: %w", s.cfg.Device, lastErr)
}

func (s *Source) open(pf v4l2.FourCCType) (*device.Device, error) {
	opts := []device.Option{
		device.WithIOType(v4l2.IOTypeMMAP),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: pf,
			Width:       uint32(s.cfg.Width),
			Height:      uint32(s.cfg.Height),
			Field:       v4l2.FieldNone,
		}),
	}
	if s.cfg.FPS > 0 {
		opts = append(opts, device.WithFPS(uint32(s.cfg.FPS)))
	}
	return device.Open(s.cfg.Device, opts...)
}

// Next waits for the next buffer and decodes it.
func (s *Source) Next(ctx context.Context) (*frame.Frame, error) {
	s.mu.Lock()
	dev, pix := s.dev, s.pix
	s.mu.Unlock()
	if dev == nil {
		return nil, capture.ErrClosed
	}

	var buf []byte
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b, ok := <-dev.GetOutput():
		if !ok {
			return nil, capture.ErrClosed
		}
		buf = b
	}

	var (
		f   *frame.Frame
		err error
	)
	switch pix.PixelFormat {
	case v4l2.PixelFmtMJPEG:
		f, err = capture.DecodeJPEG(buf)
	default:
		f, err = capture.DecodeYUYV(buf, int(pix.Width), int(pix.Height))
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	f.Seq = s.seq
	s.seq++
	s.mu.Unlock()
	f.Timestamp = time.Now()
	return f, nil
}

// Stop stops streaming and closes the device.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	s.cancel()
	err := s.dev.Close()
	s.dev = nil
	logger.WithComponent("v4l2").Info().Str("device", s.cfg.Device).Msg("V4L2 camera closed")
	return err
}

// Name returns the backend name
func (s *Source) Name() string {
	return "v4l2"
}
