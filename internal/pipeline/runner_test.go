package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/capture"
)

func TestRunnerStopsTasksWhenLoopEnds(t *testing.T) {
	src := &scriptedSource{results: []result{{f: solid(2, 2, 0, 0, 0, 0)}}}
	l, _ := newLoop(t, geo16, src)

	stopped := make(chan struct{})
	task := Task{Name: "worker", Run: func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return nil
	}}

	err := Run(context.Background(), l, task)
	if !errors.Is(err, ErrCaptureTerminated) {
		t.Fatalf("Run = %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Error("task still running after Run returned")
	}
}

func TestRunnerStopsLoopWhenTaskFails(t *testing.T) {
	p := capture.NewTestPattern(2, 2, 200)
	p.Start(context.Background())
	defer p.Stop()
	l, _ := newLoop(t, geo16, p)

	boom := errors.New("listen: address in use")
	task := Task{Name: "api", Run: func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return boom
	}}

	done := make(chan error)
	go func() { done <- Run(context.Background(), l, task) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("Run = %v, want %v", err, boom)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running after task failure")
	}
}
