// Package persist stores screenshots and recordings through an afero
// filesystem, so tests can swap in memory-backed storage.
package persist

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/spf13/afero"
)

// Format is an image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts png, jpeg and jpg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unknown image format %q", s)
	}
}

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Encode writes img in this format.
func (f Format) Encode(w io.Writer, img image.Image, quality int) error {
	if f == FormatJPEG {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
	return png.Encode(w, img)
}

var shotName = regexp.MustCompile(`^screenshot_(\d+)\.(png|jpg)$`)

// ImageStore writes numbered screenshots (screenshot_0.png, screenshot_1.png, ...)
// into one directory. Numbering continues after the highest existing file.
// The counter is owned by the store; only the side-channel worker saves.
type ImageStore struct {
	fs      afero.Fs
	dir     string
	format  Format
	quality int

	mu   sync.Mutex
	next int
}

// NewImageStore creates dir if needed and scans it for existing screenshots.
func NewImageStore(fs afero.Fs, dir string, format Format, quality int) (*ImageStore, error) {
	if ok, _ := afero.DirExists(fs, dir); !ok {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, &Error{Op: "mkdir", Path: dir, Err: err}
		}
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, &Error{Op: "scan", Path: dir, Err: err}
	}

	next := 0
	for _, e := range entries {
		m := shotName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}

	logger.WithComponent("persist").Debug().
		Str("dir", dir).
		Int("next", next).
		Msg("Screenshot store ready")

	return &ImageStore{fs: fs, dir: dir, format: format, quality: quality, next: next}, nil
}

// Next is the number the next screenshot will get.
func (s *ImageStore) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Save encodes f and returns the written path. A failed save does not
// consume a number.
func (s *ImageStore) Save(f *frame.Frame) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("screenshot_%d.%s", s.next, s.format.Ext()))

	img, err := f.ToRGBA()
	if err != nil {
		return "", &Error{Op: "encode", Path: path, Err: err}
	}
	if err := writeFile(s.fs, path, func(w io.Writer) error {
		return s.format.Encode(w, img, s.quality)
	}); err != nil {
		return "", err
	}

	s.next++
	return path, nil
}

// writeFile creates path, lets fill write to it and removes the file again
// when anything fails.
func writeFile(fs afero.Fs, path string, fill func(io.Writer) error) error {
	out, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &Error{Op: "create", Path: path, Err: err}
	}
	if err := fill(out); err != nil {
		out.Close()
		fs.Remove(path)
		return &Error{Op: "write", Path: path, Err: err}
	}
	if err := out.Close(); err != nil {
		fs.Remove(path)
		return &Error{Op: "close", Path: path, Err: err}
	}
	return nil
}
