package state

import (
	"sync"
	"sync/atomic"
)

// Counters are updated by the loop and the side-channel tasks.
type Counters struct {
	FramesCaptured   atomic.Uint64
	FramesDisplayed  atomic.Uint64
	FramesSkipped    atomic.Uint64
	FramesRecorded   atomic.Uint64
	RecordingDropped atomic.Uint64
	Screenshots      atomic.Uint64
	PersistFailures  atomic.Uint64

	mu            sync.Mutex
	lastShot      string
	recordingPath string
}

// SetLastScreenshot records the path of the newest screenshot.
func (c *Counters) SetLastScreenshot(path string) {
	c.mu.Lock()
	c.lastShot = path
	c.mu.Unlock()
}

// SetRecordingPath records the file of the active recording, or "" when idle.
func (c *Counters) SetRecordingPath(path string) {
	c.mu.Lock()
	c.recordingPath = path
	c.mu.Unlock()
}

func (c *Counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		FramesCaptured:   c.FramesCaptured.Load(),
		FramesDisplayed:  c.FramesDisplayed.Load(),
		FramesSkipped:    c.FramesSkipped.Load(),
		FramesRecorded:   c.FramesRecorded.Load(),
		RecordingDropped: c.RecordingDropped.Load(),
		Screenshots:      c.Screenshots.Load(),
		PersistFailures:  c.PersistFailures.Load(),
		LastScreenshot:   c.lastShot,
		RecordingPath:    c.recordingPath,
	}
}

// Stats is served by the API and logged at shutdown.
type Stats struct {
	FramesCaptured   uint64 `json:"frames_captured"`
	FramesDisplayed  uint64 `json:"frames_displayed"`
	FramesSkipped    uint64 `json:"frames_skipped"`
	FramesRecorded   uint64 `json:"frames_recorded"`
	RecordingDropped uint64 `json:"recording_dropped"`
	Screenshots      uint64 `json:"screenshots"`
	PersistFailures  uint64 `json:"persist_failures"`
	LastScreenshot   string `json:"last_screenshot,omitempty"`
	RecordingPath    string `json:"recording_path,omitempty"`
	Recording        bool   `json:"recording"`
	CapturePending   bool   `json:"capture_pending"`
	LastFrameWidth   int    `json:"last_frame_width"`
	LastFrameHeight  int    `json:"last_frame_height"`
	LastFrameSeq     uint64 `json:"last_frame_seq"`
	Uptime           string `json:"uptime,omitempty"`
}
