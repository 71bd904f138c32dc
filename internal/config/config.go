package config

import (
	"fmt"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

// Config represents the application configuration
type Config struct {
	LogLevel   string           `json:"log_level" yaml:"log_level"`
	LogPretty  *bool            `json:"log_pretty,omitempty" yaml:"log_pretty,omitempty"` // nil: pretty when stderr is a terminal
	Display    DisplayConfig    `json:"display" yaml:"display"`
	Camera     CameraConfig     `json:"camera" yaml:"camera"`
	Screenshot ScreenshotConfig `json:"screenshot" yaml:"screenshot"`
	Recording  RecordingConfig  `json:"recording" yaml:"recording"`
	Input      InputConfig      `json:"input" yaml:"input"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// DisplayConfig selects the framebuffer device and how frames land on it.
type DisplayConfig struct {
	Device string `json:"device" yaml:"device"`
	// Mode is "file" (positioned writes) or "mmap".
	Mode   string `json:"mode" yaml:"mode"`
	Center bool   `json:"center" yaml:"center"`
	// Geometry, when BitsPerPixel is set, replaces the device query. It is
	// meant for plain files standing in for a framebuffer.
	Geometry GeometryOverride `json:"geometry" yaml:"geometry"`
}

// GeometryOverride mirrors the fields read from FBIOGET_VSCREENINFO.
type GeometryOverride struct {
	BitsPerPixel uint32 `json:"bits_per_pixel" yaml:"bits_per_pixel"`
	XresVirtual  uint32 `json:"xres_virtual" yaml:"xres_virtual"`
	Xres         uint32 `json:"xres" yaml:"xres"`
	Yres         uint32 `json:"yres" yaml:"yres"`
}

// CameraConfig selects the capture backend.
type CameraConfig struct {
	Backend  string `json:"backend" yaml:"backend"`
	Device   string `json:"device" yaml:"device"`
	Width    int    `json:"width" yaml:"width"`
	Height   int    `json:"height" yaml:"height"`
	FPS      int    `json:"fps" yaml:"fps"`
	Pipeline string `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`
	// OnEmpty is "skip" or "abort".
	OnEmpty string `json:"on_empty" yaml:"on_empty"`
}

// ScreenshotConfig controls the screenshot worker.
type ScreenshotConfig struct {
	Dir          string        `json:"dir" yaml:"dir"`
	Format       string        `json:"format" yaml:"format"`
	Quality      int           `json:"quality" yaml:"quality"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// RecordingConfig controls the fixed-aspect recording.
type RecordingConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"` // start recording immediately
	Path      string `json:"path" yaml:"path"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	FPS       int    `json:"fps" yaml:"fps"`
	Fit       string `json:"fit" yaml:"fit"`
	// Scaler is nearest, bilinear or catmullrom.
	Scaler    string `json:"scaler" yaml:"scaler"`
	Quality   int    `json:"quality" yaml:"quality"`
	Timestamp bool   `json:"timestamp" yaml:"timestamp"`
	Label     string `json:"label" yaml:"label"` // caption in the top-left corner
	Buffer    int    `json:"buffer" yaml:"buffer"`
}

// InputConfig binds terminal keys.
type InputConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ScreenshotKey string `json:"screenshot_key" yaml:"screenshot_key"`
	RecordKey     string `json:"record_key" yaml:"record_key"`
	QuitKey       string `json:"quit_key" yaml:"quit_key"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Enabled    bool `json:"enabled" yaml:"enabled"`
	Port       int  `json:"port" yaml:"port"`
	PreviewFPS int  `json:"preview_fps" yaml:"preview_fps"`
}

// Defaults returns the configuration written on first run.
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		Display: DisplayConfig{
			Device: "/dev/fb0",
			Mode:   "file",
			Center: true,
		},
		Camera: CameraConfig{
			Backend: "v4l2",
			Device:  "/dev/video0",
			Width:   640,
			Height:  480,
			FPS:     30,
			OnEmpty: "skip",
		},
		Screenshot: ScreenshotConfig{
			Dir:          "screenshots",
			Format:       "png",
			Quality:      90,
			PollInterval: 100 * time.Millisecond,
		},
		Recording: RecordingConfig{
			Path:      "recordings/recording.mjpeg",
			Width:     640,
			Height:    480,
			FPS:       30,
			Fit:       "canvas",
			Scaler:    "bilinear",
			Quality:   80,
			Timestamp: true,
			Buffer:    8,
		},
		Input: InputConfig{
			Enabled:       true,
			ScreenshotKey: "c",
			RecordKey:     "r",
			QuitKey:       "q",
		},
		Server: ServerConfig{
			Port:       8080,
			PreviewFPS: 10,
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Display.Mode {
	case "file", "mmap":
	default:
		return fmt.Errorf("display.mode must be file or mmap, got %q", c.Display.Mode)
	}
	if c.Display.Device == "" {
		return fmt.Errorf("display.device is required")
	}
	if g := c.Display.Geometry; g.BitsPerPixel != 0 && (g.XresVirtual == 0 || g.Yres == 0) {
		return fmt.Errorf("display.geometry needs xres_virtual and yres when bits_per_pixel is set")
	}

	switch c.Camera.Backend {
	case "auto", "v4l2", "gstreamer", "gstlaunch", "x11", "testpattern":
	default:
		return fmt.Errorf("camera.backend %q is not one of auto, v4l2, gstreamer, gstlaunch, x11, testpattern", c.Camera.Backend)
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("camera size %dx%d is negative", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	switch c.Camera.OnEmpty {
	case "skip", "abort":
	default:
		return fmt.Errorf("camera.on_empty must be skip or abort, got %q", c.Camera.OnEmpty)
	}

	switch c.Screenshot.Format {
	case "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("screenshot.format must be png or jpeg, got %q", c.Screenshot.Format)
	}
	if c.Screenshot.PollInterval <= 0 {
		return fmt.Errorf("screenshot.poll_interval must be positive")
	}

	if c.Recording.Width <= 0 || c.Recording.Height <= 0 {
		return fmt.Errorf("recording canvas %dx%d has no area", c.Recording.Width, c.Recording.Height)
	}
	if c.Recording.FPS <= 0 {
		return fmt.Errorf("recording.fps must be positive, got %d", c.Recording.FPS)
	}
	switch c.Recording.Fit {
	case "canvas", "contain":
	default:
		return fmt.Errorf("recording.fit must be canvas or contain, got %q", c.Recording.Fit)
	}
	if _, err := frame.ParseInterp(c.Recording.Scaler); err != nil {
		return fmt.Errorf("recording.scaler: %w", err)
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
