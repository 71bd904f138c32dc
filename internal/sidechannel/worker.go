// Package sidechannel runs the tasks that work beside the display loop:
// the screenshot worker and the recording drain. Their failures are
// logged and counted but never reach the loop.
package sidechannel

import (
	"context"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/bryanchriswhite/fbcam/internal/state"
)

// DefaultPollInterval bounds the delay between a trigger and its screenshot.
const DefaultPollInterval = 100 * time.Millisecond

// ImageStore persists one frame and returns where it went.
type ImageStore interface {
	Save(f *frame.Frame) (string, error)
}

// Worker polls the capture trigger and saves the last displayed frame.
type Worker struct {
	shared   *state.Shared
	store    ImageStore
	interval time.Duration
}

// NewWorker returns a worker polling every interval (DefaultPollInterval
// when zero).
func NewWorker(shared *state.Shared, store ImageStore, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Worker{shared: shared, store: store, interval: interval}
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.WithComponent("screenshot")
	log.Debug().Dur("interval", w.interval).Msg("Screenshot worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Screenshot worker stopped")
			return nil
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll handles one pending trigger, if any, and reports whether a
// screenshot was written. Triggers set while the save is in flight are
// cleared with it.
func (w *Worker) Poll() bool {
	if !w.shared.Trigger.Pending() {
		return false
	}
	defer w.shared.Trigger.Clear()

	log := logger.WithComponent("screenshot")

	f := w.shared.Snapshot.Load()
	if f == nil {
		log.Warn().Msg("Screenshot requested before the first frame was displayed")
		return false
	}

	start := time.Now()
	path, err := w.store.Save(f)
	if err != nil {
		w.shared.Counters.PersistFailures.Add(1)
		log.Error().Err(err).Msg("Failed to save screenshot")
		return false
	}

	w.shared.Counters.Screenshots.Add(1)
	w.shared.Counters.SetLastScreenshot(path)
	log.Info().
		Str("path", path).
		Uint64("frame", f.Seq).
		Dur("took", time.Since(start)).
		Msg("Screenshot saved")
	return true
}
