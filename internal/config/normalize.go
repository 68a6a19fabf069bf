package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	if err := c.normalizeDetector(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() error {
	var err error
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if strings.TrimSpace(c.Server.DataDir) == "" {
		c.Server.DataDir = defaultDataDir
	}
	if c.Server.DataDir, err = expandPath(c.Server.DataDir); err != nil {
		return fmt.Errorf("server.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Server.UploadDir) == "" {
		c.Server.UploadDir = defaultUploadDir
	}
	if c.Server.UploadDir, err = expandPath(c.Server.UploadDir); err != nil {
		return fmt.Errorf("server.upload_dir: %w", err)
	}
	if c.Server.StaticDir, err = expandPath(strings.TrimSpace(c.Server.StaticDir)); err != nil {
		return fmt.Errorf("server.static_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDetector() error {
	if value, ok := os.LookupEnv("ROOMCOUNT_MODEL_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Detector.ModelPath = value
	}
	if strings.TrimSpace(c.Detector.ModelPath) == "" {
		c.Detector.ModelPath = defaultModelPath
	}
	var err error
	if c.Detector.ModelPath, err = expandPath(strings.TrimSpace(c.Detector.ModelPath)); err != nil {
		return fmt.Errorf("detector.model_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
