// Package gstreamer captures camera frames through a GStreamer pipeline
// ending in an appsink that produces BGR buffers.
package gstreamer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/capture"
	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

func init() {
	capture.Register("gstreamer", func(cfg capture.Config) (capture.Source, error) {
		return New(cfg), nil
	})
}

// pullTimeout bounds each appsink pull so Next notices cancellation.
const pullTimeout = 100 * time.Millisecond

var initOnce sync.Once

// Source runs a pipeline and pulls samples from its "sink" element.
type Source struct {
	cfg capture.Config

	mu       sync.Mutex
	pipeline *gst.Pipeline
	appsink  *app.Sink
	seq      uint64
}

// New returns an unstarted source.
func New(cfg capture.Config) *Source {
	return &Source{cfg: cfg}
}

// Pipeline returns the launch string for cfg. A configured pipeline is
// used as is; it must end in "appsink name=sink" producing format=BGR.
func Pipeline(cfg capture.Config) string {
	if cfg.Pipeline != "" {
		return cfg.Pipeline
	}
	device := cfg.Device
	if device == "" {
		device = "/dev/video0"
	}
	caps := "video/x-raw,format=BGR"
	if cfg.Width > 0 && cfg.Height > 0 {
		caps += fmt.Sprintf(",width=%d,height=%d", cfg.Width, cfg.Height)
	}
	return fmt.Sprintf(
		"v4l2src device=%s ! "+
			"videoconvert ! videoscale ! "+
			"%s ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=true sync=false",
		device, caps,
	)
}

// Start builds the pipeline and sets it playing.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipeline != nil {
		return fmt.Errorf("pipeline already running")
	}

	log := logger.WithComponent("gstreamer")
	initOnce.Do(func() { gst.Init(nil) })

	launch := Pipeline(s.cfg)
	log.Debug().Str("pipeline", launch).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to get appsink: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	s.pipeline = pipeline
	s.appsink = app.SinkFromElement(sinkElement)
	log.Info().Msg("GStreamer pipeline started")
	return nil
}

// Next pulls the next sample, waking up regularly to check ctx.
func (s *Source) Next(ctx context.Context) (*frame.Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		appsink := s.appsink
		s.mu.Unlock()
		if appsink == nil {
			return nil, capture.ErrClosed
		}

		sample := appsink.TryPullSample(pullTimeout)
		if sample == nil {
			if appsink.IsEOS() {
				return nil, capture.ErrClosed
			}
			continue
		}

		f, err := s.frameFromSample(sample)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

func (s *Source) frameFromSample(sample *gst.Sample) (*frame.Frame, error) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, capture.ErrNoFrame
	}

	caps := sample.GetCaps()
	if caps == nil {
		return nil, capture.ErrNoFrame
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return nil, capture.ErrNoFrame
	}

	width, _ := structure.GetValue("width")
	height, _ := structure.GetValue("height")
	w, ok := width.(int)
	if !ok {
		return nil, fmt.Errorf("caps without width: %s", caps)
	}
	h, ok := height.(int)
	if !ok {
		return nil, fmt.Errorf("caps without height: %s", caps)
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, capture.ErrNoFrame
	}
	defer buffer.Unmap()

	f, err := FromBGR(mapInfo.Bytes(), w, h)
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

// FromBGR copies a mapped video/x-raw BGR buffer into a frame.
func FromBGR(data []byte, w, h int) (*frame.Frame, error) {
	return capture.DecodeBGR(data, w, h)
}

// Stop tears the pipeline down.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pipeline == nil {
		return nil
	}
	s.appsink = nil
	s.pipeline.SetState(gst.StateNull)
	s.pipeline.Unref()
	s.pipeline = nil

	logger.WithComponent("gstreamer").Info().Msg("GStreamer pipeline stopped")
	return nil
}

// Name returns the backend name
func (s *Source) Name() string {
	return "gstreamer"
}
