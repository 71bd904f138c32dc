package sidechannel

import (
	"context"
	"time"

	"github.com/bryanchriswhite/fbcam/internal/frame"
	"github.com/bryanchriswhite/fbcam/internal/logger"
	"github.com/bryanchriswhite/fbcam/internal/persist"
	"github.com/bryanchriswhite/fbcam/internal/state"
)

// DefaultRecordingBuffer is how many frames may wait for the encoder.
const DefaultRecordingBuffer = 8

// idleCheck is how often an idle drain notices recording was switched off.
const idleCheck = 100 * time.Millisecond

// Recording receives frames from the loop while the recording flag is on
// and writes them through the recorder on its own goroutine. Frames are
// dropped, not queued, when the encoder falls behind.
type Recording struct {
	shared   *state.Shared
	recorder persist.Recorder
	compose  func(*frame.Frame) (*frame.Frame, error)
	frames   chan offer

	sink    persist.Sink
	session uint64 // state.Shared.Session the sink was opened for
}

// offer is a frame tagged with the session it was recorded in.
type offer struct {
	f       *frame.Frame
	session uint64
}

// NewRecording returns a drain. compose, when set, maps each offered frame
// to the recorded one (the fixed-aspect canvas).
func NewRecording(shared *state.Shared, recorder persist.Recorder, compose func(*frame.Frame) (*frame.Frame, error), buffer int) *Recording {
	if buffer <= 0 {
		buffer = DefaultRecordingBuffer
	}
	return &Recording{
		shared:   shared,
		recorder: recorder,
		compose:  compose,
		frames:   make(chan offer, buffer),
	}
}

// Offer hands f to the drain without blocking. The drain owns f afterwards.
// It reports whether the frame was accepted.
func (r *Recording) Offer(f *frame.Frame) bool {
	if !r.shared.Recording.Load() {
		return false
	}
	select {
	case r.frames <- offer{f: f, session: r.shared.Session.Load()}:
		return true
	default:
		r.shared.Counters.RecordingDropped.Add(1)
		return false
	}
}

// Run writes offered frames until ctx is done, opening a session when
// recording starts and closing it when recording stops or restarts.
func (r *Recording) Run(ctx context.Context) error {
	ticker := time.NewTicker(idleCheck)
	defer ticker.Stop()
	defer r.closeSink()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.settle()
		case o := <-r.frames:
			if !r.settle() {
				continue
			}
			if o.session != r.shared.Session.Load() {
				// Offered before a restart.
				r.shared.Counters.RecordingDropped.Add(1)
				continue
			}
			r.write(o.f, o.session)
		}
	}
}

// settle closes the open session once recording is off or a newer session
// has started, and reports whether recording is on.
func (r *Recording) settle() bool {
	on := r.shared.Recording.Load()
	if !on || r.session != r.shared.Session.Load() {
		r.closeSink()
	}
	return on
}

func (r *Recording) write(f *frame.Frame, session uint64) {
	log := logger.WithComponent("recorder")

	if r.sink == nil {
		sink, err := r.recorder.Open()
		if err != nil {
			r.shared.Counters.PersistFailures.Add(1)
			r.shared.Recording.Store(false)
			log.Error().Err(err).Msg("Failed to start recording")
			return
		}
		r.sink = sink
		r.session = session
		r.shared.Counters.SetRecordingPath(sink.Path())
	}

	out := f
	if r.compose != nil {
		var err error
		if out, err = r.compose(f); err != nil {
			log.Debug().Err(err).Uint64("frame", f.Seq).Msg("Skipping unrecordable frame")
			return
		}
	}

	if err := r.sink.Append(out); err != nil {
		r.shared.Counters.PersistFailures.Add(1)
		r.shared.Recording.Store(false)
		log.Error().Err(err).Msg("Recording write failed, stopping recording")
		r.closeSink()
		return
	}
	r.shared.Counters.FramesRecorded.Add(1)
}

func (r *Recording) closeSink() {
	if r.sink == nil {
		return
	}
	if err := r.sink.Close(); err != nil {
		r.shared.Counters.PersistFailures.Add(1)
		logger.WithComponent("recorder").Error().Err(err).Msg("Failed to finish recording")
	}
	r.sink = nil
	r.shared.Counters.SetRecordingPath("")
}
