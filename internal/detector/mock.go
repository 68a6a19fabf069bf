package detector

import (
	"sync"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// MockDetector is a test implementation of occupancy.Detector.
// It allows tests to control the detection results.
type MockDetector struct {
	mu         sync.Mutex
	detections []occupancy.Detection
	err        error
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections that will be returned by Detect.
func (m *MockDetector) SetDetections(dets []occupancy.Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured detections scoring at least
// minConfidence, or the configured error.
func (m *MockDetector) Detect(_ occupancy.Frame, minConfidence float64) ([]occupancy.Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]occupancy.Detection, 0, len(m.detections))
	for _, d := range m.detections {
		if d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	return out, nil
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// StandingPerson returns a person detection that passes the default
// counting filter, with its left edge at x.
func StandingPerson(x float64) occupancy.Detection {
	return occupancy.Detection{
		Box:        occupancy.Box{X1: x, Y1: 40, X2: x + 60, Y2: 220},
		Confidence: 0.9,
		Label:      occupancy.PersonLabel,
	}
}
