package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/capture"
	"github.com/bryanchriswhite/fbcam/internal/fb"
	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/input"
	"github.com/bryanchriswhite/fbcam/internal/state"
)

// scriptedSource replays a fixed list of results, then reports ErrClosed.
type scriptedSource struct {
	results []result
	i       int
}

type result struct {
	f   *frame.Frame
	err error
}

func (s *scriptedSource) Start(context.Context) error { return nil }
func (s *scriptedSource) Stop() error                 { return nil }
func (s *scriptedSource) Name() string                { return "scripted" }

func (s *scriptedSource) Next(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.i >= len(s.results) {
		return nil, capture.ErrClosed
	}
	r := s.results[s.i]
	s.i++
	return r.f, r.err
}

func solid(w, h int, b, g, r byte, seq uint64) *frame.Frame {
	f := frame.New(w, h, frame.LayoutBGR24)
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
	}
	f.Seq = seq
	return f
}

type countingRecorder struct{ n atomic.Int32 }

func (c *countingRecorder) Offer(*frame.Frame) bool {
	c.n.Add(1)
	return true
}

func newLoop(t *testing.T, geo fb.Geometry, src capture.Source) (*Loop, *fb.MemDevice) {
	t.Helper()
	dev := fb.NewMemDevice(geo)
	w, err := fb.NewWriter(dev, geo)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return &Loop{
		Source: src,
		Writer: w,
		Shared: state.New(),
		Center: true,
	}, dev
}

var geo16 = fb.Geometry{BitsPerPixel: 16, XresVirtual: 8, Xres: 8, Yres: 4, YresVirtual: 4}

func TestStepWritesCenteredFrameAndPublishes(t *testing.T) {
	src := &scriptedSource{results: []result{{f: solid(4, 2, 0, 0, 255, 7)}}}
	l, dev := newLoop(t, geo16, src)
	rec := &countingRecorder{}
	l.Recorder = rec

	if err := l.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	red := frame.PackBGR565(0, 0, 255)
	mem := dev.Bytes()
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			off := (y*8 + x) * 2
			got := uint16(mem[off]) | uint16(mem[off+1])<<8
			inside := x >= 2 && x < 6 && y >= 1 && y < 3
			if inside && got != red || !inside && got != 0 {
				t.Errorf("pixel (%d,%d) = %#04x", x, y, got)
			}
		}
	}

	snap := l.Shared.Snapshot.Load()
	if snap == nil || snap.Seq != 7 || snap.Layout != frame.LayoutBGR565 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if rec.n.Load() != 1 {
		t.Errorf("recorder offered %d frames", rec.n.Load())
	}
	if st := l.Shared.Stats(); st.FramesCaptured != 1 || st.FramesDisplayed != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestStepCropsOversizedFrame(t *testing.T) {
	src := &scriptedSource{results: []result{{f: solid(12, 6, 255, 0, 0, 1)}}}
	l, _ := newLoop(t, geo16, src)

	if err := l.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if snap := l.Shared.Snapshot.Load(); snap.Width != 8 || snap.Height != 4 {
		t.Errorf("displayed %dx%d, want 8x4", snap.Width, snap.Height)
	}
}

func TestEmptyFramePolicy(t *testing.T) {
	tests := []struct {
		policy  Policy
		wantErr error
	}{
		{PolicySkip, nil},
		{PolicyAbort, ErrCaptureTerminated},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			src := &scriptedSource{results: []result{{err: capture.ErrNoFrame}}}
			l, _ := newLoop(t, geo16, src)
			l.Policy = tt.policy

			err := l.Step(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Step = %v, want %v", err, tt.wantErr)
			}
			if st := l.Shared.Stats(); st.FramesSkipped != 1 || st.FramesDisplayed != 0 {
				t.Errorf("stats = %+v", st)
			}
			if l.Shared.Snapshot.Load() != nil {
				t.Error("empty frame was published")
			}
		})
	}
}

func TestInvalidFrameIsSkipped(t *testing.T) {
	src := &scriptedSource{results: []result{
		{f: &frame.Frame{Layout: frame.LayoutBGR24}},
		{f: solid(2, 2, 1, 2, 3, 2)},
	}}
	l, _ := newLoop(t, geo16, src)

	for i := 0; i < 2; i++ {
		if err := l.Step(context.Background()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if st := l.Shared.Stats(); st.FramesSkipped != 1 || st.FramesDisplayed != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestKeysDriveSharedState(t *testing.T) {
	src := &scriptedSource{results: []result{
		{f: solid(2, 2, 0, 0, 0, 0)},
		{f: solid(2, 2, 0, 0, 0, 1)},
		{f: solid(2, 2, 0, 0, 0, 2)},
	}}
	l, _ := newLoop(t, geo16, src)
	keys := input.NewQueue(4)
	l.Input = keys

	keys.Push('c')
	if err := l.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !l.Shared.Trigger.Pending() {
		t.Error("c did not set the capture trigger")
	}

	keys.Push('r')
	if err := l.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !l.Shared.Recording.Load() {
		t.Error("r did not start recording")
	}

	keys.Push('q')
	if err := l.Step(context.Background()); !errors.Is(err, errQuit) {
		t.Errorf("q: Step = %v", err)
	}
}

func TestRunEndsWhenSourceCloses(t *testing.T) {
	src := &scriptedSource{results: []result{{f: solid(2, 2, 0, 0, 0, 0)}}}
	l, _ := newLoop(t, geo16, src)

	err := l.Run(context.Background())
	if !errors.Is(err, ErrCaptureTerminated) {
		t.Fatalf("Run = %v, want ErrCaptureTerminated", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := capture.NewTestPattern(4, 4, 0)
	p.Start(context.Background())
	l, _ := newLoop(t, geo16, p)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if l.Shared.Stats().FramesDisplayed == 0 {
		t.Error("no frames displayed")
	}
}

func TestRunQuitKey(t *testing.T) {
	p := capture.NewTestPattern(4, 4, 0)
	p.Start(context.Background())
	l, _ := newLoop(t, geo16, p)
	keys := input.NewQueue(1)
	keys.Push('q')
	l.Input = keys

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicySkip, "skip": PolicySkip, "abort": PolicyAbort} {
		if got, err := ParsePolicy(in); err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Error("expected error")
	}
}
