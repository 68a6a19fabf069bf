package occupancy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/roomcount/internal/metrics"
)

// Config holds the collaborators of a Manager.
type Config struct {
	Opener SourceOpener
	// Detector may be nil; jobs then end at their first frame.
	Detector   Detector
	NewTracker TrackerFactory
	Tunables   Tunables
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Manager owns the single in-flight analysis job. At most one job runs at a
// time; a start request while a job is running is refused, never queued.
type Manager struct {
	opener     SourceOpener
	detector   Detector
	newTracker TrackerFactory
	logger     *slog.Logger
	metrics    *metrics.Metrics
	state      *State

	mu       sync.Mutex
	tunables Tunables
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager creates an idle Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Opener == nil {
		return nil, errors.New("occupancy manager requires a source opener")
	}
	if cfg.NewTracker == nil {
		return nil, errors.New("occupancy manager requires a tracker factory")
	}
	if err := cfg.Tunables.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	close(done)

	return &Manager{
		opener:     cfg.Opener,
		detector:   cfg.Detector,
		newTracker: cfg.NewTracker,
		logger:     logger.With("component", "occupancy"),
		metrics:    cfg.Metrics,
		state:      NewState(),
		tunables:   cfg.Tunables,
		done:       done,
	}, nil
}

// State returns the shared job state read by status queries.
func (m *Manager) State() *State {
	return m.state
}

// Status returns a snapshot of the job state.
func (m *Manager) Status() Status {
	return m.state.Snapshot()
}

// Tunables returns the thresholds the next job will use.
func (m *Manager) Tunables() Tunables {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tunables
}

// SetTunables replaces the thresholds for subsequent jobs. A running job
// keeps the values it started with.
func (m *Manager) SetTunables(t Tunables) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tunables = t
	return nil
}

// Start launches a job for d and returns its id without waiting for it.
// It returns ErrAlreadyRunning while a job is in flight and ErrMissingSource
// when d names no source; in both cases the running job is unaffected.
func (m *Manager) Start(d Descriptor) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobID := uuid.NewString()
	if err := m.state.begin(jobID, d, time.Now()); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			m.metrics.JobRejected()
		}
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.metrics.JobStarted()

	j := &job{
		id:       jobID,
		source:   d,
		tunables: m.tunables,
		logger:   m.logger.With("job_id", jobID, "source", d.URI),
	}
	go func() {
		defer close(done)
		defer cancel()
		m.run(ctx, j)
	}()

	return jobID, nil
}

// Cancel asks the running job to stop before its next frame. It reports
// whether a job was running.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Snapshot().Processing || m.cancel == nil {
		return false
	}
	m.cancel()
	return true
}

// Wait blocks until the current job, if any, has finished.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels the running job and waits for it to release its source.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Cancel()
	return m.Wait(ctx)
}
