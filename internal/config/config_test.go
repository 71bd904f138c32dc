package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"display mode", func(c *Config) { c.Display.Mode = "dma" }, "display.mode"},
		{"backend", func(c *Config) { c.Camera.Backend = "opencv" }, "camera.backend"},
		{"camera fps", func(c *Config) { c.Camera.FPS = 0 }, "camera.fps"},
		{"on empty", func(c *Config) { c.Camera.OnEmpty = "retry" }, "on_empty"},
		{"format", func(c *Config) { c.Screenshot.Format = "bmp" }, "screenshot.format"},
		{"canvas", func(c *Config) { c.Recording.Width = 0 }, "no area"},
		{"fit", func(c *Config) { c.Recording.Fit = "stretch" }, "recording.fit"},
		{"scaler", func(c *Config) { c.Recording.Scaler = "lanczos" }, "recording.scaler"},
		{"port", func(c *Config) {
			c.Server.Enabled = true
			c.Server.Port = 70000
		}, "server.port"},
		{"geometry", func(c *Config) { c.Display.Geometry.BitsPerPixel = 16 }, "display.geometry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.Path() != path {
		t.Errorf("Path = %q", m.Path())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if got := m.Get().Display.Device; got != "/dev/fb0" {
		t.Errorf("display.device = %q", got)
	}

	again, err := NewManager(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Get().Screenshot.PollInterval != 100*time.Millisecond {
		t.Errorf("poll interval = %v", again.Get().Screenshot.PollInterval)
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "camera:\n  backend: testpattern\n  device: /dev/video2\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := m.Get()
	if cfg.Camera.Backend != "testpattern" || cfg.Camera.Device != "/dev/video2" {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.Camera.FPS != 30 || cfg.Recording.Width != 640 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("camera:\n  colour: red\n"), 0o644)
	if _, err := NewManager(path); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestSetAndValue(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Set("camera.fps", "15"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set("server.enabled", "true"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set("screenshot.poll_interval", "250ms"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := m.Set("log_pretty", "false"); err != nil {
		t.Fatalf("Set optional: %v", err)
	}

	cfg := m.Get()
	if cfg.Camera.FPS != 15 || !cfg.Server.Enabled || cfg.Screenshot.PollInterval != 250*time.Millisecond {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.LogPretty == nil || *cfg.LogPretty {
		t.Errorf("log_pretty = %v", cfg.LogPretty)
	}

	v, err := m.Value("camera.fps")
	if err != nil || v != 15 {
		t.Errorf("Value = %v, %v", v, err)
	}

	reloaded, err := NewManager(m.Path())
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Get().Camera.FPS != 15 {
		t.Error("Set was not saved")
	}

	for key, value := range map[string]string{
		"camera.colour":   "red",
		"nope.fps":        "1",
		"camera.fps":      "0",
		"recording.width": "wide",
	} {
		if err := m.Set(key, value); err == nil {
			t.Errorf("Set(%q, %q) succeeded", key, value)
		}
	}
	if m.Get().Camera.FPS != 15 {
		t.Error("failed Set changed the config")
	}
	if _, err := m.Value("camera"); err != nil {
		t.Errorf("section lookup: %v", err)
	}
	if _, err := m.Value("camera.colour"); err == nil {
		t.Error("unknown key returned a value")
	}
}
