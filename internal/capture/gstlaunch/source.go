// Package gstlaunch captures camera frames by running gst-launch-1.0 as a
// subprocess and reading raw BGR frames from its stdout. It needs the
// GStreamer command line tools but no cgo.
package gstlaunch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/capture"
	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
)

func init() {
	capture.Register("gstlaunch", func(cfg capture.Config) (capture.Source, error) {
		return New(cfg), nil
	})
}

// discoverTimeout bounds the one-buffer pipeline used to discover the size.
const discoverTimeout = 10 * time.Second

// Source runs a gst-launch-1.0 pipeline ending in fdsink fd=1.
type Source struct {
	cfg capture.Config

	// command builds the subprocess for a launch string.
	command func(launch string) *exec.Cmd

	mu      sync.Mutex
	cmd     *exec.Cmd
	frames  chan *frame.Frame
	exited  chan struct{}
	width   int
	height  int
	running bool
}

// New returns an unstarted source.
func New(cfg capture.Config) *Source {
	return &Source{cfg: cfg, command: gstLaunch}
}

func gstLaunch(launch string) *exec.Cmd {
	// exec so that killing the shell kills gst-launch
	return exec.Command("sh", "-c", "exec gst-launch-1.0 -q "+launch)
}

// SourceElement is the head of the pipeline: a configured pipeline
// prefix, or v4l2src on the configured device.
func SourceElement(cfg capture.Config) string {
	if cfg.Pipeline != "" {
		return cfg.Pipeline
	}
	device := cfg.Device
	if device == "" {
		device = "/dev/video0"
	}
	return "v4l2src device=" + device
}

// Pipeline returns the launch string producing width x height BGR frames
// on stdout.
func Pipeline(cfg capture.Config, width, height int) string {
	caps := fmt.Sprintf("video/x-raw,format=BGR,width=%d,height=%d", width, height)
	if cfg.FPS > 0 {
		caps += fmt.Sprintf(",framerate=%d/1", cfg.FPS)
	}
	return SourceElement(cfg) + " ! " +
		"videoconvert ! " +
		"videorate ! " +
		"videoscale ! " +
		caps + " ! " +
		"fdsink fd=1 sync=false"
}

// Start launches the subprocess and the frame reader.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("pipeline already running")
	}

	log := logger.WithComponent("gstlaunch")

	width, height := s.cfg.Width, s.cfg.Height
	if width <= 0 || height <= 0 {
		var err error
		width, height, err = discoverDimensions(ctx, s.cfg)
		if err != nil {
			return err
		}
	}
	s.width, s.height = width, height
	log.Info().Int("width", width).Int("height", height).Msg("Video dimensions")

	launch := Pipeline(s.cfg, width, height)
	log.Debug().Str("pipeline", launch).Msg("Starting gst-launch subprocess")

	cmd := s.command(launch)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start gst-launch: %w", err)
	}

	s.cmd = cmd
	s.frames = make(chan *frame.Frame, 1)
	s.exited = make(chan struct{})
	s.running = true

	go s.readFrames(stdout, width, height)
	go logStderr(stderr)

	log.Info().Int("pid", cmd.Process.Pid).Msg("gst-launch subprocess started")
	return nil
}

// discoverDimensions runs a one-buffer pipeline and reads the negotiated
// caps from its verbose output.
func discoverDimensions(ctx context.Context, cfg capture.Config) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	launch := SourceElement(cfg) + " num-buffers=1 ! fakesink"
	if cfg.Pipeline != "" {
		launch = cfg.Pipeline + " ! fakesink num-buffers=1"
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", "gst-launch-1.0 -v "+launch)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// caps may have been printed before the error
		logger.WithComponent("gstlaunch").Debug().Str("output", string(output)).Msg("Size discovery output")
	}

	if w, h := dimensionsFromCaps(string(output)); w > 0 && h > 0 {
		return w, h, nil
	}
	return 0, 0, fmt.Errorf("could not determine video dimensions")
}

// dimensionsFromCaps finds the first video/x-raw caps line with a size.
func dimensionsFromCaps(output string) (int, int) {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "video/x-raw") || !strings.Contains(line, "width=") {
			continue
		}
		w := extractIntFromCaps(line, "width")
		h := extractIntFromCaps(line, "height")
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return 0, 0
}

// extractIntFromCaps reads "key=(int)N" or "key=N" from a caps string.
func extractIntFromCaps(caps, key string) int {
	for _, pattern := range []string{key + "=(int)", key + "="} {
		idx := strings.Index(caps, pattern)
		if idx < 0 {
			continue
		}
		start := idx + len(pattern)
		end := start
		for end < len(caps) && caps[end] >= '0' && caps[end] <= '9' {
			end++
		}
		if end > start {
			if val, err := strconv.Atoi(caps[start:end]); err == nil {
				return val
			}
		}
	}
	return 0
}

// readFrames reads whole frames until the subprocess ends. Only the newest
// unread frame is kept.
func (s *Source) readFrames(stdout io.Reader, width, height int) {
	log := logger.WithComponent("gstlaunch")

	size := capture.BGRStride(width) * height
	reader := bufio.NewReaderSize(stdout, size*2)
	buf := make([]byte, size)
	var seq uint64

	defer func() {
		s.cmd.Wait()
		close(s.frames)
		close(s.exited)
	}()

	for {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Error().Err(err).Msg("Error reading frame")
			}
			log.Debug().Uint64("frames", seq).Msg("gst-launch output ended")
			return
		}

		f, err := capture.DecodeBGR(buf, width, height)
		if err != nil {
			log.Debug().Err(err).Msg("Dropping undecodable frame")
			continue
		}
		f.Seq = seq
		f.Timestamp = time.Now()
		seq++

		select {
		case <-s.frames:
		default:
		}
		s.frames <- f
	}
}

// logStderr forwards subprocess output to the log.
func logStderr(stderr io.Reader) {
	log := logger.WithComponent("gstlaunch")
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "ERROR") || strings.Contains(line, "WARN") {
			log.Warn().Str("gst", line).Msg("GStreamer message")
		} else {
			log.Debug().Str("gst", line).Msg("GStreamer output")
		}
	}
}

// Next waits for the next frame. It returns ErrClosed once the subprocess
// has exited and every frame has been consumed.
func (s *Source) Next(ctx context.Context) (*frame.Frame, error) {
	s.mu.Lock()
	frames := s.frames
	s.mu.Unlock()
	if frames == nil {
		return nil, capture.ErrClosed
	}

	select {
	case f, ok := <-frames:
		if !ok {
			return nil, capture.ErrClosed
		}
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop kills the subprocess and waits for the reader to finish.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	<-s.exited

	logger.WithComponent("gstlaunch").Info().Msg("gst-launch subprocess stopped")
	return nil
}

// Name returns the backend name
func (s *Source) Name() string {
	return "gstlaunch"
}
