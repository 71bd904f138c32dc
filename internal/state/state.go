// Package state is the explicit shared state between the capture loop and
// the side-channel tasks: the last displayed frame, the capture trigger,
// the recording toggle and the pipeline counters.
package state

import (
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

// Snapshot holds the most recently displayed frame. Publish swaps in a
// complete frame, so readers see either the old or the new one.
type Snapshot struct {
	p atomic.Pointer[frame.Frame]
}

// Publish replaces the snapshot. The caller hands over ownership of f.
func (s *Snapshot) Publish(f *frame.Frame) {
	s.p.Store(f)
}

// Load returns the current frame, or nil before the first publish.
// The returned frame is shared and must not be mutated.
func (s *Snapshot) Load() *frame.Frame {
	return s.p.Load()
}

// Trigger is a single-slot capture request. Setting it while a request is
// pending coalesces into the pending one.
type Trigger struct {
	pending atomic.Bool
}

// Set requests a capture. It reports false when one was already pending.
func (t *Trigger) Set() bool {
	return t.pending.CompareAndSwap(false, true)
}

// Pending reports whether a capture is requested.
func (t *Trigger) Pending() bool {
	return t.pending.Load()
}

// Clear consumes the request.
func (t *Trigger) Clear() {
	t.pending.Store(false)
}

// Shared is passed by reference to every task.
type Shared struct {
	Snapshot  Snapshot
	Trigger   Trigger
	Recording atomic.Bool
	// Session counts the times Recording was switched on through
	// SetRecording or ToggleRecording.
	Session  atomic.Uint64
	Counters Counters

	started time.Time
}

// New returns shared state with the uptime clock started.
func New() *Shared {
	return &Shared{started: time.Now()}
}

// SetRecording sets the recording flag and returns its previous value.
// Switching it on starts a new session.
func (s *Shared) SetRecording(on bool) bool {
	was := s.Recording.Swap(on)
	if on && !was {
		s.Session.Add(1)
	}
	return was
}

// ToggleRecording flips the recording flag and returns the new value.
func (s *Shared) ToggleRecording() bool {
	for {
		old := s.Recording.Load()
		if s.Recording.CompareAndSwap(old, !old) {
			if !old {
				s.Session.Add(1)
			}
			return !old
		}
	}
}

// Stats is a point-in-time view of the counters.
func (s *Shared) Stats() Stats {
	st := s.Counters.snapshot()
	st.Recording = s.Recording.Load()
	st.CapturePending = s.Trigger.Pending()
	if !s.started.IsZero() {
		st.Uptime = time.Since(s.started).Round(time.Millisecond).String()
	}
	if f := s.Snapshot.Load(); f != nil {
		st.LastFrameWidth = f.Width
		st.LastFrameHeight = f.Height
		st.LastFrameSeq = f.Seq
	}
	return st
}
