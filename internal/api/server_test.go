package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/fb"
	"github.com/bryanchriswhite/fbcam/internal/overlay"
	"github.com/bryanchriswhite/fbcam/internal/state"
	"github.com/gorilla/websocket"
)

var testGeometry = fb.Geometry{BitsPerPixel: 16, XresVirtual: 800, Xres: 800, Yres: 600, YresVirtual: 600}

func newTestServer(t *testing.T) (*Server, *state.Shared) {
	t.Helper()
	shared := state.New()
	return NewServer(shared, testGeometry, nil, nil, nil), shared
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScreenshotCoalesces(t *testing.T) {
	s, shared := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		want string
	}{
		{"queued"},
		{"pending"},
	}
	for _, tt := range tests {
		rec := do(t, h, "POST", "/api/screenshot")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["status"] != tt.want {
			t.Errorf("status = %q, want %q", body["status"], tt.want)
		}
	}
	if !shared.Trigger.Pending() {
		t.Error("trigger not pending")
	}
}

func TestRecordingStartStop(t *testing.T) {
	s, shared := newTestServer(t)
	h := s.Handler()

	if rec := do(t, h, "POST", "/api/recording"); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d", rec.Code)
	}
	if !shared.Recording.Load() {
		t.Fatal("recording not started")
	}
	if rec := do(t, h, "DELETE", "/api/recording"); rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if shared.Recording.Load() {
		t.Fatal("recording not stopped")
	}
}

func TestStatsAndGeometry(t *testing.T) {
	s, shared := newTestServer(t)
	h := s.Handler()
	shared.Counters.FramesDisplayed.Add(3)

	rec := do(t, h, "GET", "/api/stats")
	var st state.Stats
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.FramesDisplayed != 3 {
		t.Errorf("frames displayed = %d, want 3", st.FramesDisplayed)
	}

	rec = do(t, h, "GET", "/api/geometry")
	var geo struct {
		Geometry fb.Geometry `json:"geometry"`
		Layout   string      `json:"layout"`
		Stride   int         `json:"stride"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&geo); err != nil {
		t.Fatal(err)
	}
	if geo.Geometry != testGeometry {
		t.Errorf("geometry = %+v", geo.Geometry)
	}
	if geo.Stride != 1600 {
		t.Errorf("stride = %d, want 1600", geo.Stride)
	}
}

func TestRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/", http.StatusOK},
		{"GET", "/api/config", http.StatusNotFound},
		{"GET", "/api/overlay", http.StatusNotFound},
		{"OPTIONS", "/api/screenshot", http.StatusOK},
		{"GET", "/api/screenshot", http.StatusMethodNotAllowed},
		{"GET", "/stream", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Errorf("CORS header = %q", got)
			}
		})
	}
}

func TestOverlayUpdate(t *testing.T) {
	ov := overlay.NewRecordingOverlay(overlay.Options{Timestamp: true, Badge: true, FPS: 30})
	s := NewServer(state.New(), testGeometry, nil, nil, ov)
	h := s.Handler()

	tests := []struct {
		name        string
		body        string
		wantCode    int
		wantEnabled bool
		wantLabel   string
		wantWidgets int
	}{
		{"add label", `{"label":"bench 3"}`, http.StatusOK, true, "bench 3", 3},
		{"disable overlay", `{"enabled":false}`, http.StatusOK, false, "bench 3", 3},
		{"clear label", `{"label":"","enabled":true}`, http.StatusOK, true, "", 2},
		{"unknown widget", `{"widgets":{"nope":false}}`, http.StatusNotFound, true, "", 2},
		{"bad body", `{`, http.StatusBadRequest, true, "", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("PUT", "/api/overlay", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}

			get := do(t, h, "GET", "/api/overlay")
			if get.Code != http.StatusOK {
				t.Fatalf("GET status = %d", get.Code)
			}
			var st overlay.Status
			if err := json.NewDecoder(get.Body).Decode(&st); err != nil {
				t.Fatal(err)
			}
			if st.Enabled != tt.wantEnabled || st.Label != tt.wantLabel || len(st.Widgets) != tt.wantWidgets {
				t.Errorf("status = %+v", st)
			}
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/overlay", strings.NewReader(`{"widgets":{"rec":false}}`)))
	var st overlay.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	for _, w := range st.Widgets {
		if w.ID == "rec" && w.Enabled {
			t.Error("rec widget still enabled")
		}
	}
}

func TestEventsPushesStats(t *testing.T) {
	s, shared := newTestServer(t)
	s.EventInterval = 10 * time.Millisecond
	shared.Recording.Store(true)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var st state.Stats
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !st.Recording {
			t.Errorf("event %d: recording = false", i)
		}
	}
}
