package sidechannel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/persist"
	"github.com/bryanchriswhite/fbcam/internal/state"
	"github.com/spf13/afero"
)

// blockingStore holds each Save until release is closed.
type blockingStore struct {
	mu      sync.Mutex
	saved   []uint64
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Save(f *frame.Frame) (string, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, f.Seq)
	return "shot", nil
}

func (s *blockingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func publish(shared *state.Shared, seq uint64) {
	f := frame.New(4, 4, frame.LayoutBGR565)
	f.Seq = seq
	shared.Snapshot.Publish(f)
}

func TestWorkerPollSavesSnapshot(t *testing.T) {
	shared := state.New()
	store := &blockingStore{}
	w := NewWorker(shared, store, 0)

	if w.Poll() {
		t.Fatal("saved without a trigger")
	}

	publish(shared, 5)
	shared.Trigger.Set()
	if !w.Poll() {
		t.Fatal("expected a screenshot")
	}
	if shared.Trigger.Pending() {
		t.Error("trigger not cleared")
	}
	if store.count() != 1 || store.saved[0] != 5 {
		t.Errorf("saved = %v", store.saved)
	}
	if st := shared.Stats(); st.Screenshots != 1 || st.LastScreenshot != "shot" {
		t.Errorf("stats = %+v", st)
	}
}

func TestWorkerDropsTriggerDuringPersist(t *testing.T) {
	shared := state.New()
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewWorker(shared, store, 0)
	publish(shared, 1)

	shared.Trigger.Set()
	done := make(chan bool)
	go func() { done <- w.Poll() }()

	<-store.entered
	publish(shared, 2)
	if shared.Trigger.Set() {
		t.Error("second trigger should coalesce into the in-flight one")
	}
	close(store.release)

	if !<-done {
		t.Fatal("expected the first trigger to be persisted")
	}
	if w.Poll() {
		t.Error("dropped trigger produced a second screenshot")
	}
	if store.count() != 1 || store.saved[0] != 1 {
		t.Errorf("saved = %v, want exactly frame 1", store.saved)
	}
}

func TestWorkerWithoutFrameClearsTrigger(t *testing.T) {
	shared := state.New()
	w := NewWorker(shared, &blockingStore{}, 0)
	shared.Trigger.Set()
	if w.Poll() {
		t.Error("saved without a frame")
	}
	if shared.Trigger.Pending() {
		t.Error("trigger left pending")
	}
}

type failingStore struct{}

func (failingStore) Save(*frame.Frame) (string, error) {
	return "", &persist.Error{Op: "create", Path: "x", Err: errors.New("disk full")}
}

func TestWorkerCountsFailures(t *testing.T) {
	shared := state.New()
	publish(shared, 1)
	shared.Trigger.Set()

	if NewWorker(shared, failingStore{}, 0).Poll() {
		t.Fatal("reported success")
	}
	if st := shared.Stats(); st.PersistFailures != 1 || st.Screenshots != 0 || st.CapturePending {
		t.Errorf("stats = %+v", st)
	}
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	fs := afero.NewMemMapFs()
	images, err := persist.NewImageStore(fs, "/shots", persist.FormatPNG, 0)
	if err != nil {
		t.Fatal(err)
	}
	shared := state.New()
	publish(shared, 1)
	shared.Trigger.Set()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- NewWorker(shared, images, 5*time.Millisecond).Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for shared.Trigger.Pending() {
		select {
		case <-deadline:
			t.Fatal("trigger never handled")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if ok, _ := afero.Exists(fs, "/shots/screenshot_0.png"); !ok {
		t.Error("screenshot_0.png not written")
	}
}

type fakeSink struct {
	mu     sync.Mutex
	frames []*frame.Frame
	closed bool
}

func (s *fakeSink) Append(f *frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) Path() string { return "rec" }

func (s *fakeSink) state() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames), s.closed
}

type fakeRecorder struct {
	mu    sync.Mutex
	sinks []*fakeSink
	err   error
}

func (r *fakeRecorder) Open() (persist.Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s := &fakeSink{}
	r.sinks = append(r.sinks, s)
	return s, nil
}

func (r *fakeRecorder) sink(i int) *fakeSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.sinks) {
		return nil
	}
	return r.sinks[i]
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRecordingOfferIgnoredWhenOff(t *testing.T) {
	shared := state.New()
	r := NewRecording(shared, &fakeRecorder{}, nil, 1)
	if r.Offer(frame.New(2, 2, frame.LayoutBGR24)) {
		t.Error("accepted a frame while not recording")
	}
}

func TestRecordingOfferDropsWhenFull(t *testing.T) {
	shared := state.New()
	shared.Recording.Store(true)
	r := NewRecording(shared, &fakeRecorder{}, nil, 1)

	if !r.Offer(frame.New(2, 2, frame.LayoutBGR24)) {
		t.Fatal("first frame rejected")
	}
	if r.Offer(frame.New(2, 2, frame.LayoutBGR24)) {
		t.Fatal("second frame should be dropped")
	}
	if got := shared.Stats().RecordingDropped; got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}

func TestRecordingSessionLifecycle(t *testing.T) {
	shared := state.New()
	rec := &fakeRecorder{}
	c := frame.NewCompositor(8, 6, frame.FitCanvas)
	r := NewRecording(shared, rec, c.Compose, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx) }()

	shared.Recording.Store(true)
	for i := 0; i < 3; i++ {
		for !r.Offer(frame.New(16, 9, frame.LayoutBGR24)) {
			time.Sleep(time.Millisecond)
		}
	}
	eventually(t, func() bool {
		s := rec.sink(0)
		if s == nil {
			return false
		}
		n, _ := s.state()
		return n == 3
	})
	first := rec.sink(0)
	if f := first.frames[0]; f.Width != 8 || f.Height != 6 {
		t.Errorf("recorded frame is %dx%d, want the 8x6 canvas", f.Width, f.Height)
	}
	if shared.Stats().RecordingPath != "rec" {
		t.Error("recording path not published")
	}

	shared.Recording.Store(false)
	eventually(t, func() bool { _, closed := first.state(); return closed })
	if shared.Stats().RecordingPath != "" {
		t.Error("recording path not cleared")
	}

	shared.Recording.Store(true)
	for !r.Offer(frame.New(16, 9, frame.LayoutBGR24)) {
		time.Sleep(time.Millisecond)
	}
	eventually(t, func() bool { return rec.sink(1) != nil })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if _, closed := rec.sink(1).state(); !closed {
		t.Error("second session not closed on shutdown")
	}
	if got := shared.Stats().FramesRecorded; got != 4 {
		t.Errorf("recorded = %d, want 4", got)
	}
}

func TestRecordingRestartWithinIdleCheck(t *testing.T) {
	shared := state.New()
	rec := &fakeRecorder{}
	r := NewRecording(shared, rec, nil, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx) }()

	shared.SetRecording(true)
	for !r.Offer(frame.New(2, 2, frame.LayoutBGR24)) {
		time.Sleep(time.Millisecond)
	}
	eventually(t, func() bool {
		s := rec.sink(0)
		if s == nil {
			return false
		}
		n, _ := s.state()
		return n == 1
	})

	shared.SetRecording(false)
	shared.SetRecording(true)
	for !r.Offer(frame.New(2, 2, frame.LayoutBGR24)) {
		time.Sleep(time.Millisecond)
	}
	eventually(t, func() bool {
		s := rec.sink(1)
		if s == nil {
			return false
		}
		n, _ := s.state()
		return n == 1
	})

	if n, closed := rec.sink(0).state(); !closed || n != 1 {
		t.Errorf("first session: frames = %d, closed = %v; want 1, true", n, closed)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestRecordingOpenFailureStopsRecording(t *testing.T) {
	shared := state.New()
	rec := &fakeRecorder{err: errors.New("no space")}
	r := NewRecording(shared, rec, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	shared.Recording.Store(true)
	r.Offer(frame.New(2, 2, frame.LayoutBGR24))
	eventually(t, func() bool { return !shared.Recording.Load() })
	if shared.Stats().PersistFailures != 1 {
		t.Errorf("failures = %d", shared.Stats().PersistFailures)
	}
}
