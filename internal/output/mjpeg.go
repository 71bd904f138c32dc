package output

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
)

// Boundary separates parts of the multipart preview stream.
const Boundary = "frame"

// MJPEGOutput streams frames as Motion JPEG over HTTP.
type MJPEGOutput struct {
	config Config

	mu      sync.RWMutex
	running bool

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	frameCount atomic.Uint64
}

// NewMJPEGOutput creates a new MJPEG stream output
func NewMJPEGOutput(config Config) *MJPEGOutput {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = 80
	}
	return &MJPEGOutput{
		config:  config,
		clients: make(map[chan []byte]struct{}),
	}
}

// Start marks the output running. The handler is mounted separately.
func (m *MJPEGOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG output already running")
	}
	m.running = true
	m.frameCount.Store(0)

	logger.WithComponent("mjpeg").Info().
		Int("fps", m.config.FPS).
		Int("quality", m.config.Quality).
		Msg("Preview stream started")
	return nil
}

// Stop disconnects every client.
func (m *MJPEGOutput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("mjpeg").Info().
		Uint64("frames", m.frameCount.Load()).
		Msg("Preview stream stopped")
	return nil
}

// WriteFrame encodes f once and offers it to every client. Slow clients
// miss frames rather than holding the others back.
func (m *MJPEGOutput) WriteFrame(f *frame.Frame) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return fmt.Errorf("MJPEG output not running")
	}

	img, err := f.ToRGBA()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: m.config.Quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	data := buf.Bytes()
	m.frameCount.Add(1)

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- data:
		default:
		}
	}
	m.clientsMu.RUnlock()
	return nil
}

// Name returns the output type name
func (m *MJPEGOutput) Name() string {
	return "MJPEG HTTP Stream"
}

// IsRunning returns true if the output is active
func (m *MJPEGOutput) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Clients is the number of connected viewers.
func (m *MJPEGOutput) Clients() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

// ServeHTTP streams frames until the client goes away or the output stops.
func (m *MJPEGOutput) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !m.IsRunning() {
		http.Error(w, "preview stream not running", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Connection", "close")

	frames := make(chan []byte, 2)

	m.clientsMu.Lock()
	m.clients[frames] = struct{}{}
	count := len(m.clients)
	m.clientsMu.Unlock()

	log := logger.WithComponent("mjpeg")
	log.Info().Str("remote", r.RemoteAddr).Int("clients", count).Msg("Preview client connected")

	defer func() {
		m.clientsMu.Lock()
		if _, ok := m.clients[frames]; ok {
			delete(m.clients, frames)
		}
		count := len(m.clients)
		m.clientsMu.Unlock()
		log.Info().Str("remote", r.RemoteAddr).Int("clients", count).Msg("Preview client disconnected")
	}()

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(data)); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
