// Package detector finds people in video frames with a YOLOv8 ONNX model run
// through the OpenCV DNN module.
package detector

import (
	"errors"
	"fmt"
)

// Config holds configuration options for person detection.
type Config struct {
	// ModelPath is the YOLOv8 ONNX model file.
	ModelPath string

	// InputSize is the square network input edge in pixels (default: 640).
	InputSize int

	// NMSThreshold is the IoU above which overlapping boxes of the same
	// class are suppressed (0.0-1.0).
	NMSThreshold float64

	// PersonClassID is the model class index reported as a person.
	PersonClassID int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "yolov8n.onnx",
		InputSize:     640,
		NMSThreshold:  0.45,
		PersonClassID: 0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.ModelPath == "" {
		errs = append(errs, errors.New("detector model path is required"))
	}
	if c.InputSize <= 0 || c.InputSize%32 != 0 {
		errs = append(errs, fmt.Errorf("detector input size must be a positive multiple of 32, got %d", c.InputSize))
	}
	if !(c.NMSThreshold > 0 && c.NMSThreshold <= 1) {
		errs = append(errs, fmt.Errorf("detector nms threshold must be in (0, 1], got %v", c.NMSThreshold))
	}
	if c.PersonClassID < 0 {
		errs = append(errs, fmt.Errorf("detector person class id must be non-negative, got %d", c.PersonClassID))
	}
	return errors.Join(errs...)
}
