package occupancy

import (
	"errors"
	"sync"
	"time"
)

// Status is a point-in-time snapshot of the job state. EndReason names how
// the most recent job ended and is empty while a job runs; Error is set only
// when that job failed.
type Status struct {
	Count      int       `json:"count"`
	Processing bool      `json:"processing"`
	JobID      string    `json:"job_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	Frames     int       `json:"frames"`
	Visible    int       `json:"visible"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	EndReason  string    `json:"end_reason,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Err returns the failure that ended the most recent job, if any.
func (s Status) Err() error {
	if s.Error == "" {
		return nil
	}
	return errors.New(s.Error)
}

// State is the process-wide job state. All fields are guarded by one mutex
// that is held only for the duration of a single read or write.
//
// Count is the cumulative number of distinct confirmed occupants observed by
// the current or most recent job. It is not reset when a job starts, so it
// reflects the previous job until the new job publishes its first frame.
type State struct {
	mu         sync.Mutex
	processing bool
	jobID      string
	source     Descriptor
	count      int
	frames     int
	visible    int
	startedAt  time.Time
	endReason  string
	failure    string
}

// NewState returns an idle state with a zero count.
func NewState() *State {
	return &State{}
}

// Snapshot returns the current status.
func (s *State) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Count:      s.count,
		Processing: s.processing,
		JobID:      s.jobID,
		Source:     s.source.URI,
		Frames:     s.frames,
		Visible:    s.visible,
		StartedAt:  s.startedAt,
		EndReason:  s.endReason,
		Error:      s.failure,
	}
}

// begin marks a job as running. It fails with ErrAlreadyRunning while
// another job is in flight and with ErrMissingSource for an empty descriptor.
func (s *State) begin(jobID string, d Descriptor, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.processing {
		return ErrAlreadyRunning
	}
	if d.IsZero() {
		return ErrMissingSource
	}

	s.processing = true
	s.jobID = jobID
	s.source = d
	s.frames = 0
	s.visible = 0
	s.startedAt = now
	s.endReason = ""
	s.failure = ""
	return nil
}

// publish records the result of one processed frame.
func (s *State) publish(count, frames, visible int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count = count
	s.frames = frames
	s.visible = visible
}

// finish clears the processing flag and leaves the last count in place. A
// non-nil err marks the job as failed.
func (s *State) finish(reason string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processing = false
	s.visible = 0
	s.endReason = reason
	s.failure = ""
	if err != nil {
		s.failure = err.Error()
	}
}
