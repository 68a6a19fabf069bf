package occupancy

import (
	"errors"
	"fmt"
	"math"
)

// Reference tunable values.
const (
	DefaultMinBoxArea          = 900
	DefaultMinAspectRatio      = 0.3
	DefaultMaxAspectRatio      = 3.5
	DefaultConfidenceThreshold = 0.6
	DefaultConfirmFrames       = 12
	DefaultMaxAge              = 18
)

// Tunables holds the counting thresholds applied to a job. A job snapshots
// the tunables when it starts.
type Tunables struct {
	MinBoxArea          float64 `json:"min_box_area"`
	MinAspectRatio      float64 `json:"min_aspect_ratio"`
	MaxAspectRatio      float64 `json:"max_aspect_ratio"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	ConfirmFrames       int     `json:"confirm_frames"`
	MaxAge              int     `json:"max_age"`
}

// DefaultTunables returns the reference thresholds.
func DefaultTunables() Tunables {
	return Tunables{
		MinBoxArea:          DefaultMinBoxArea,
		MinAspectRatio:      DefaultMinAspectRatio,
		MaxAspectRatio:      DefaultMaxAspectRatio,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		ConfirmFrames:       DefaultConfirmFrames,
		MaxAge:              DefaultMaxAge,
	}
}

// Validate reports every invalid threshold.
func (t Tunables) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"min_box_area", t.MinBoxArea},
		{"min_aspect_ratio", t.MinAspectRatio},
		{"max_aspect_ratio", t.MaxAspectRatio},
		{"confidence_threshold", t.ConfidenceThreshold},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			errs = append(errs, fmt.Errorf("%s must be a finite number, got %v", f.name, f.value))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if t.MinBoxArea < 0 {
		errs = append(errs, fmt.Errorf("min_box_area must be >= 0, got %v", t.MinBoxArea))
	}
	if t.MinAspectRatio < 0 {
		errs = append(errs, fmt.Errorf("min_aspect_ratio must be >= 0, got %v", t.MinAspectRatio))
	}
	if t.MaxAspectRatio < t.MinAspectRatio {
		errs = append(errs, fmt.Errorf("max_aspect_ratio %v is below min_aspect_ratio %v", t.MaxAspectRatio, t.MinAspectRatio))
	}
	if t.ConfidenceThreshold <= 0 || t.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold must be in (0, 1], got %v", t.ConfidenceThreshold))
	}
	if t.ConfirmFrames < 1 {
		errs = append(errs, fmt.Errorf("confirm_frames must be >= 1, got %d", t.ConfirmFrames))
	}
	if t.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("max_age must be >= 0, got %d", t.MaxAge))
	}
	return errors.Join(errs...)
}
