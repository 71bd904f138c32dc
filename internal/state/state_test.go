package state

import (
	"sync"
	"testing"

	"github.com/bryanchriswhite/fbcam/internal/frame"
)

func TestSnapshotReadersSeeWholeFrames(t *testing.T) {
	var s Snapshot
	if s.Load() != nil {
		t.Fatal("expected empty snapshot")
	}

	const n = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			f := frame.New(4, 4, frame.LayoutBGR565)
			for j := range f.Pix {
				f.Pix[j] = byte(i)
			}
			f.Seq = uint64(i)
			s.Publish(f)
		}
	}()

	for i := 0; i < n; i++ {
		f := s.Load()
		if f == nil {
			continue
		}
		for _, b := range f.Pix {
			if b != byte(f.Seq) {
				t.Fatalf("torn frame: seq %d has byte %d", f.Seq, b)
			}
		}
	}
	wg.Wait()

	if got := s.Load().Seq; got != n {
		t.Errorf("last seq = %d, want %d", got, n)
	}
}

func TestTriggerCoalesces(t *testing.T) {
	var tr Trigger
	if !tr.Set() {
		t.Fatal("first Set should report a new request")
	}
	if tr.Set() {
		t.Error("second Set should coalesce")
	}
	if !tr.Pending() {
		t.Fatal("expected pending trigger")
	}
	tr.Clear()
	if tr.Pending() {
		t.Error("expected trigger cleared")
	}
}

func TestToggleRecording(t *testing.T) {
	s := New()
	if !s.ToggleRecording() || !s.Recording.Load() {
		t.Fatal("expected recording on")
	}
	if s.ToggleRecording() || s.Recording.Load() {
		t.Fatal("expected recording off")
	}
}

func TestRecordingSessions(t *testing.T) {
	s := New()

	tests := []struct {
		name        string
		set         func() bool
		wantSession uint64
	}{
		{"start", func() bool { return s.SetRecording(true) }, 1},
		{"start again", func() bool { return s.SetRecording(true) }, 1},
		{"stop", func() bool { return s.SetRecording(false) }, 1},
		{"toggle on", s.ToggleRecording, 2},
		{"toggle off", s.ToggleRecording, 2},
		{"restart", func() bool { return s.SetRecording(true) }, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.set()
			if got := s.Session.Load(); got != tt.wantSession {
				t.Errorf("session = %d, want %d", got, tt.wantSession)
			}
		})
	}
}

func TestStats(t *testing.T) {
	s := New()
	s.Counters.FramesDisplayed.Add(3)
	s.Counters.Screenshots.Add(1)
	s.Counters.SetLastScreenshot("/tmp/screenshot_0.png")
	s.Trigger.Set()

	f := frame.New(640, 480, frame.LayoutBGR565)
	f.Seq = 9
	s.Snapshot.Publish(f)

	st := s.Stats()
	if st.FramesDisplayed != 3 || st.Screenshots != 1 {
		t.Errorf("counters = %+v", st)
	}
	if st.LastScreenshot != "/tmp/screenshot_0.png" || !st.CapturePending {
		t.Errorf("stats = %+v", st)
	}
	if st.LastFrameWidth != 640 || st.LastFrameHeight != 480 || st.LastFrameSeq != 9 {
		t.Errorf("frame stats = %+v", st)
	}
}
