package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/tracker"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP bind address and on-disk locations.
type Server struct {
	Bind      string `toml:"bind"`
	DataDir   string `toml:"data_dir"`
	UploadDir string `toml:"upload_dir"`
	StaticDir string `toml:"static_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Capture contains camera device settings. Files and streams are decoded at
// their native size.
type Capture struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	FPS    int `toml:"fps"`
}

// Detector contains the person detector model settings.
type Detector struct {
	ModelPath     string  `toml:"model_path"`
	InputSize     int     `toml:"input_size"`
	NMSThreshold  float64 `toml:"nms_threshold"`
	PersonClassID int     `toml:"person_class_id"`
}

// Tracker contains identity tracker settings.
type Tracker struct {
	NInit  int     `toml:"n_init"`
	MaxAge int     `toml:"max_age"`
	MinIoU float64 `toml:"min_iou"`
}

// Params returns the tracker parameters.
func (t Tracker) Params() tracker.Config {
	return tracker.Config{
		NInit:  t.NInit,
		MaxAge: t.MaxAge,
		MinIoU: t.MinIoU,
	}
}

// Counting contains the detection filter and confirmation thresholds.
type Counting struct {
	MinBoxArea          float64 `toml:"min_box_area"`
	MinAspectRatio      float64 `toml:"min_aspect_ratio"`
	MaxAspectRatio      float64 `toml:"max_aspect_ratio"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	ConfirmFrames       int     `toml:"confirm_frames"`
	MaxAge              int     `toml:"max_age"`
}

// Tunables returns the counting thresholds in pipeline form.
func (c Counting) Tunables() occupancy.Tunables {
	return occupancy.Tunables{
		MinBoxArea:          c.MinBoxArea,
		MinAspectRatio:      c.MinAspectRatio,
		MaxAspectRatio:      c.MaxAspectRatio,
		ConfidenceThreshold: c.ConfidenceThreshold,
		ConfirmFrames:       c.ConfirmFrames,
		MaxAge:              c.MaxAge,
	}
}

// Config encapsulates all configuration values for roomcount.
//
// Configuration sections by subsystem:
//   - Server: HTTP bind address, data and upload directories
//   - Logging: log format and level
//   - Capture: camera device resolution and frame rate
//   - Detector: YOLO model file and inference settings
//   - Tracker: identity tracker thresholds
//   - Counting: detection filter and confirmation thresholds
type Config struct {
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
	Capture  Capture  `toml:"capture"`
	Detector Detector `toml:"detector"`
	Tracker  Tracker  `toml:"tracker"`
	Counting Counting `toml:"counting"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/roomcount/config.toml")
}

// Load locates, parses, and validates a configuration file. It returns the
// config, the resolved path, and whether a file was found there; a missing
// file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

// EnsureDirectories creates the data and upload directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Server.DataDir, c.Server.UploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Server.DataDir, "roomcount.db")
}

// LockPath returns the path of the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Server.DataDir, "roomcount.lock")
}

// ResolveModelPath returns the configured model path if it exists, else the
// first existing well-known fallback, else the configured path unchanged so
// the load error names it.
func (c *Config) ResolveModelPath() string {
	if fileExists(c.Detector.ModelPath) {
		return c.Detector.ModelPath
	}
	for _, candidate := range modelFallbacks {
		if fileExists(candidate) {
			if abs, err := filepath.Abs(candidate); err == nil {
				return abs
			}
			return candidate
		}
	}
	return c.Detector.ModelPath
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// It refuses to overwrite an existing file.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}
