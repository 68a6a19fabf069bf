package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.Counting.Tunables().Validate(); err != nil {
		return fmt.Errorf("counting: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if _, _, err := net.SplitHostPort(c.Server.Bind); err != nil {
		return fmt.Errorf("server.bind must be host:port: %w", err)
	}
	if c.Server.DataDir == "" {
		return errors.New("server.data_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.Width < 0 || c.Capture.Height < 0 || c.Capture.FPS < 0 {
		return errors.New("capture.width, capture.height and capture.fps must be non-negative")
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.InputSize <= 0 || c.Detector.InputSize%32 != 0 {
		return fmt.Errorf("detector.input_size must be a positive multiple of 32, got %d", c.Detector.InputSize)
	}
	if !(c.Detector.NMSThreshold > 0 && c.Detector.NMSThreshold <= 1) {
		return fmt.Errorf("detector.nms_threshold must be in (0, 1], got %v", c.Detector.NMSThreshold)
	}
	if c.Detector.PersonClassID < 0 {
		return fmt.Errorf("detector.person_class_id must be non-negative, got %d", c.Detector.PersonClassID)
	}
	return nil
}

func (c *Config) validateTracker() error {
	return c.Tracker.Params().Validate()
}
