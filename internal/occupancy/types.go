// Package occupancy implements the occupant counting pipeline: detection
// filtering, per-track confirmation, and the single-flight analysis job that
// publishes a confirmed occupant count to polling clients.
package occupancy

import (
	"context"
	"errors"
	"strings"
)

// PersonLabel is the detector class label of the monitored subject.
const PersonLabel = "person"

var (
	// ErrAlreadyRunning is returned by Start while a job is in flight.
	ErrAlreadyRunning = errors.New("analysis already running")
	// ErrMissingSource is returned by Start when no source descriptor is given.
	ErrMissingSource = errors.New("no source provided")
	// ErrEndOfStream is returned by Source.Next when the stream is exhausted.
	ErrEndOfStream = errors.New("end of stream")
	// ErrDetectorUnavailable ends a job instead of skipping a frame.
	ErrDetectorUnavailable = errors.New("detector unavailable")
)

// Box is an axis-aligned bounding box in frame pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box, never negative.
func (b Box) Width() float64 {
	return max(0, b.X2-b.X1)
}

// Height returns the vertical extent of the box, never negative.
func (b Box) Height() float64 {
	return max(0, b.Y2-b.Y1)
}

// Area returns the box area in square pixels.
func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// IoU returns the intersection over union of two boxes, 0 when either is
// empty.
func (b Box) IoU(o Box) float64 {
	inter := Box{
		X1: max(b.X1, o.X1),
		Y1: max(b.Y1, o.Y1),
		X2: min(b.X2, o.X2),
		Y2: min(b.Y2, o.Y2),
	}.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a single candidate produced by a detector for one frame.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label"`
}

// Track is one tracker record for one frame.
type Track struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
	Box       Box    `json:"box"`
}

// Descriptor identifies a frame source: a file path, a stream URL, or a
// camera device index.
type Descriptor struct {
	URI string `json:"uri"`
	// Temporary marks sources that are removed once the source is closed,
	// such as uploaded files.
	Temporary bool `json:"temporary,omitempty"`
}

// IsZero reports whether the descriptor names no source.
func (d Descriptor) IsZero() bool {
	return strings.TrimSpace(d.URI) == ""
}

// Frame is a decoded raster frame. The pipeline closes every frame it reads.
type Frame interface {
	Close() error
}

// Source yields frames in stream order.
type Source interface {
	// Next returns the next frame or ErrEndOfStream.
	Next() (Frame, error)
	Close() error
}

// SourceOpener opens frame sources from descriptors.
type SourceOpener interface {
	Open(ctx context.Context, d Descriptor) (Source, error)
}

// Detector returns raw candidate detections for a frame.
type Detector interface {
	Detect(frame Frame, minConfidence float64) ([]Detection, error)
}

// Tracker keeps temporal identity across calls for the same logical subject.
type Tracker interface {
	Update(detections []Detection, frame Frame) []Track
}

// TrackerFactory creates a tracker for a new job.
type TrackerFactory func() Tracker
