package occupancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusman/roomcount/internal/metrics"
)

// job is the per-run context of the worker goroutine. Its confirmer and
// tracker are never touched by any other goroutine.
type job struct {
	id       string
	source   Descriptor
	tunables Tunables
	logger   *slog.Logger

	confirmer *Confirmer
	tracker   Tracker
	frame     int
	skipped   int
}

// run drives one job from source open to stream exhaustion.
//
// Loop:
//  1. Stop if the job was cancelled
//  2. Read the next frame; end of stream ends the job
//  3. Detect, filter, track, and advance the confirmer
//  4. Publish the confirmed count
//
// A detector failure skips the frame but still consumes its index, so it
// breaks every streak that spans it.
func (m *Manager) run(ctx context.Context, j *job) {
	start := time.Now()
	j.logger.Info("analysis started")

	src, err := m.opener.Open(ctx, j.source)
	if err != nil {
		if ctx.Err() != nil {
			j.logger.Info("analysis cancelled before the source opened")
			m.state.finish(metrics.ReasonCancelled, nil)
			m.metrics.JobFinished(metrics.ReasonCancelled)
			return
		}
		j.logger.Warn("open source failed", "error", err)
		m.state.finish(metrics.ReasonOpenFailed, fmt.Errorf("open source: %w", err))
		m.metrics.JobFinished(metrics.ReasonOpenFailed)
		return
	}

	j.confirmer = NewConfirmer(j.tunables.ConfirmFrames, j.tunables.MaxAge)
	j.tracker = m.newTracker()

	reason, loopErr := m.loop(ctx, j, src)

	// The source is released before processing clears, so a caller that sees
	// an idle state may reopen the same device.
	if err := src.Close(); err != nil {
		j.logger.Warn("close source failed", "error", err)
	}
	m.state.finish(reason, loopErr)
	m.metrics.JobFinished(reason)
	j.logger.Info("analysis finished",
		"reason", reason,
		"frames", j.frame,
		"skipped", j.skipped,
		"count", j.confirmer.Count(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}

// loop processes frames until the job ends. It returns the end reason and,
// for a failed job, the error that ended it.
func (m *Manager) loop(ctx context.Context, j *job, src Source) (string, error) {
	for {
		if ctx.Err() != nil {
			return metrics.ReasonCancelled, nil
		}

		frame, err := src.Next()
		if errors.Is(err, ErrEndOfStream) {
			return metrics.ReasonEndOfStream, nil
		}
		if err != nil {
			j.logger.Warn("read frame failed", "frame", j.frame+1, "error", err)
			return metrics.ReasonReadError, fmt.Errorf("read frame %d: %w", j.frame+1, err)
		}
		j.frame++

		err = m.step(j, frame)
		if cerr := frame.Close(); cerr != nil {
			j.logger.Debug("close frame failed", "frame", j.frame, "error", cerr)
		}
		if errors.Is(err, ErrDetectorUnavailable) {
			j.logger.Warn("detector unavailable, ending analysis", "frame", j.frame)
			return metrics.ReasonDetectorUnavailable, err
		}
	}
}

// step runs one frame through detection, filtering, tracking and
// confirmation, then publishes the count.
func (m *Manager) step(j *job, frame Frame) error {
	began := time.Now()

	if m.detector == nil {
		return ErrDetectorUnavailable
	}
	raw, err := m.detector.Detect(frame, j.tunables.ConfidenceThreshold)
	if err != nil {
		if errors.Is(err, ErrDetectorUnavailable) {
			return err
		}
		j.skipped++
		m.metrics.FrameSkipped()
		j.logger.Debug("detection failed, skipping frame", "frame", j.frame, "error", err)
		return nil
	}

	detections := FilterDetections(raw, j.tunables)
	tracks := j.tracker.Update(detections, frame)
	res := j.confirmer.Step(j.frame, tracks)

	for _, id := range res.Confirmed {
		j.logger.Info("occupant confirmed", "track_id", id, "frame", j.frame, "count", j.confirmer.Count())
	}
	if len(res.Evicted) > 0 {
		j.logger.Debug("tracks evicted", "frame", j.frame, "tracks", res.Evicted)
	}

	count := j.confirmer.Count()
	m.state.publish(count, j.frame, res.Visible)
	m.metrics.Confirmed(len(res.Confirmed))
	m.metrics.FrameProcessed(time.Since(began), count)
	return nil
}
