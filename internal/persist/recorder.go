package persist

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Decorator draws on a frame's image before it is encoded.
type Decorator func(img *image.RGBA, f *frame.Frame)

// Sink receives recorded frames until closed.
type Sink interface {
	Append(f *frame.Frame) error
	Close() error
	Path() string
}

// Recorder opens one sink per recording session.
type Recorder interface {
	Open() (Sink, error)
}

// MJPEGRecorder writes each session as a Motion JPEG stream: JPEG images
// back to back, playable with ffplay -f mjpeg or VLC. Session files are
// named after the configured path with the session id inserted before
// the extension, e.g. recording-1a2b3c4d.mjpeg.
type MJPEGRecorder struct {
	fs       afero.Fs
	path     string
	quality  int
	decorate Decorator
}

// NewMJPEGRecorder returns a recorder writing next to path.
func NewMJPEGRecorder(fs afero.Fs, path string, quality int, decorate Decorator) *MJPEGRecorder {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &MJPEGRecorder{fs: fs, path: path, quality: quality, decorate: decorate}
}

// Open starts a new session file.
func (r *MJPEGRecorder) Open() (Sink, error) {
	id := uuid.New()
	path := SessionPath(r.path, id)

	if err := r.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &Error{Op: "mkdir", Path: path, Err: err}
	}
	f, err := r.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &Error{Op: "create", Path: path, Err: err}
	}

	logger.WithComponent("recorder").Info().
		Str("session", id.String()).
		Str("path", path).
		Msg("Recording started")

	return &mjpegSink{
		id:       id,
		file:     f,
		w:        bufio.NewWriterSize(f, 256<<10),
		path:     path,
		quality:  r.quality,
		decorate: r.decorate,
		started:  time.Now(),
	}, nil
}

// SessionPath inserts the first eight characters of id before the extension.
func SessionPath(base string, id uuid.UUID) string {
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".mjpeg"
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s-%s%s", stem, id.String()[:8], ext)
}

type mjpegSink struct {
	id       uuid.UUID
	file     afero.File
	w        *bufio.Writer
	path     string
	quality  int
	decorate Decorator
	started  time.Time
	frames   int
}

func (s *mjpegSink) Append(f *frame.Frame) error {
	img, err := f.ToRGBA()
	if err != nil {
		return &Error{Op: "encode", Path: s.path, Err: err}
	}
	if s.decorate != nil {
		s.decorate(img, f)
	}
	if err := jpeg.Encode(s.w, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return &Error{Op: "write", Path: s.path, Err: err}
	}
	s.frames++
	return nil
}

func (s *mjpegSink) Close() error {
	flushErr := s.w.Flush()
	closeErr := s.file.Close()

	logger.WithComponent("recorder").Info().
		Str("session", s.id.String()).
		Str("path", s.path).
		Int("frames", s.frames).
		Dur("duration", time.Since(s.started)).
		Msg("Recording stopped")

	if flushErr != nil {
		return &Error{Op: "write", Path: s.path, Err: flushErr}
	}
	if closeErr != nil {
		return &Error{Op: "close", Path: s.path, Err: closeErr}
	}
	return nil
}

func (s *mjpegSink) Path() string {
	return s.path
}
