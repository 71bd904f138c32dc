// Package api serves the HTTP control surface: screenshot and recording
// triggers, stats, the display geometry and the live preview.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/config"
	"github.com/bryanchriswhite/fbcam/internal/fb"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/bryanchriswhite/fbcam/internal/overlay"
	"github.com/bryanchriswhite/fbcam/internal/state"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Version is reported by /api/health.
var Version = "dev"

// OverlayControl is the part of the recording overlay the API can change.
type OverlayControl interface {
	SetEnabled(enabled bool)
	SetWidgetEnabled(id string, enabled bool) error
	SetLabel(text string)
	Status() overlay.Status
}

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	shared    *state.Shared
	geometry  fb.Geometry
	preview   http.Handler
	configMgr *config.Manager
	overlay   OverlayControl
	upgrader  websocket.Upgrader

	// EventInterval is how often /api/events pushes stats.
	EventInterval time.Duration
}

// NewServer creates a new API server. preview, configMgr and ov may be nil.
func NewServer(shared *state.Shared, geometry fb.Geometry, preview http.Handler, configMgr *config.Manager, ov OverlayControl) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		shared:    shared,
		geometry:  geometry,
		preview:   preview,
		configMgr: configMgr,
		overlay:   ov,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // LAN tool, no browser sessions to protect
			},
		},
		EventInterval: time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes. They live on the root router
// so that a method mismatch answers 405 rather than 404.
func (s *Server) setupRoutes() {
	r := s.router

	// Side-channel control
	r.HandleFunc("/api/screenshot", s.handleScreenshot).Methods("POST")
	r.HandleFunc("/api/recording", s.handleStartRecording).Methods("POST")
	r.HandleFunc("/api/recording", s.handleStopRecording).Methods("DELETE")
	r.HandleFunc("/api/overlay", s.handleGetOverlay).Methods("GET")
	r.HandleFunc("/api/overlay", s.handleUpdateOverlay).Methods("PUT")

	// State
	r.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/api/events", s.handleEvents)
	r.HandleFunc("/api/geometry", s.handleGeometry).Methods("GET")
	r.HandleFunc("/api/config", s.handleGetConfig).Methods("GET")
	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")

	if s.preview != nil {
		r.Handle("/stream", s.preview).Methods("GET")
	}
	r.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the router wrapped with CORS headers.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Run serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.WithComponent("api")
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info().Str("addr", ln.Addr().String()).Msg("HTTP API listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("HTTP API stopped")
	return nil
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HTTP Handlers

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	status := "queued"
	if !s.shared.Trigger.Set() {
		status = "pending"
	}
	logger.WithComponent("api").Info().Str("status", status).Msg("Screenshot requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

func (s *Server) handleStartRecording(w http.ResponseWriter, r *http.Request) {
	s.setRecording(w, true)
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	s.setRecording(w, false)
}

func (s *Server) setRecording(w http.ResponseWriter, on bool) {
	was := s.shared.SetRecording(on)
	if was != on {
		logger.WithComponent("api").Info().Bool("recording", on).Msg("Recording toggled")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recording": on})
}

// overlayUpdate is the PUT /api/overlay body. Absent fields are left as
// they are.
type overlayUpdate struct {
	Enabled *bool           `json:"enabled"`
	Label   *string         `json:"label"`
	Widgets map[string]bool `json:"widgets"`
}

func (s *Server) handleGetOverlay(w http.ResponseWriter, r *http.Request) {
	if s.overlay == nil {
		http.Error(w, "recording overlay not configured", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.overlay.Status())
}

func (s *Server) handleUpdateOverlay(w http.ResponseWriter, r *http.Request) {
	if s.overlay == nil {
		http.Error(w, "recording overlay not configured", http.StatusNotFound)
		return
	}

	var req overlayUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	for id, enabled := range req.Widgets {
		if err := s.overlay.SetWidgetEnabled(id, enabled); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	if req.Enabled != nil {
		s.overlay.SetEnabled(*req.Enabled)
	}
	if req.Label != nil {
		s.overlay.SetLabel(*req.Label)
	}

	logger.WithComponent("api").Info().Msg("Overlay updated")
	writeJSON(w, http.StatusOK, s.overlay.Status())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shared.Stats())
}

func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	layout, _ := s.geometry.Layout()
	writeJSON(w, http.StatusOK, map[string]any{
		"geometry": s.geometry,
		"layout":   layout.String(),
		"stride":   s.geometry.Stride(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "no configuration file in use", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

// handleEvents pushes stats over a websocket until the client leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// The client never sends anything; reading only notices it leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.EventInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.shared.Stats()); err != nil {
			log.Debug().Err(err).Msg("WebSocket write failed")
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>fbcam</title>
    <style>
        body { background: #111; color: #ddd; font-family: system-ui, sans-serif; margin: 2em; }
        img { max-width: 100%; background: #000; }
        button { margin-right: 8px; padding: 6px 14px; }
        pre { background: #222; padding: 1em; }
    </style>
</head>
<body>
    <h1>fbcam</h1>
    <p><img src="/stream" alt="preview"></p>
    <p>
        <button onclick="fetch('/api/screenshot', {method: 'POST'})">Screenshot</button>
        <button onclick="fetch('/api/recording', {method: 'POST'})">Start recording</button>
        <button onclick="fetch('/api/recording', {method: 'DELETE'})">Stop recording</button>
    </p>
    <pre id="stats"></pre>
    <script>
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/events');
        ws.onmessage = (e) => { document.getElementById('stats').textContent = JSON.stringify(JSON.parse(e.data), null, 2); };
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
