// Package capture opens video files, network streams and camera devices as
// frame sources using GoCV (OpenCV).
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrSourceNotOpen is returned when reading from a source that was closed.
var ErrSourceNotOpen = errors.New("source is not open")

// Config controls how camera devices are opened. Files and network streams
// are decoded at their native size and rate.
type Config struct {
	Width  int
	Height int
	FPS    int
}

// DefaultConfig returns the default camera settings.
func DefaultConfig() Config {
	return Config{
		Width:  DefaultWidth,
		Height: DefaultHeight,
		FPS:    DefaultFPS,
	}
}

// Opener opens frame sources from descriptors.
type Opener struct {
	cfg    Config
	logger *slog.Logger
}

// NewOpener creates an Opener. Zero config fields fall back to the defaults.
func NewOpener(cfg Config, logger *slog.Logger) *Opener {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{cfg: cfg, logger: logger.With("component", "capture")}
}

// Open opens the source named by d. A temporary source is removed when it
// is closed, or immediately if it cannot be opened.
func (o *Opener) Open(ctx context.Context, d occupancy.Descriptor) (occupancy.Source, error) {
	src, err := o.open(ctx, d)
	if err != nil {
		removeTemporary(d, o.logger)
		return nil, err
	}
	return src, nil
}

func (o *Opener) open(ctx context.Context, d occupancy.Descriptor) (*videoSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.IsZero() {
		return nil, occupancy.ErrMissingSource
	}

	target := parseTarget(d.URI)
	if path, isPath := target.(string); isPath && !strings.Contains(path, "://") {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("open %s: %w", d.URI, err)
		}
	}
	capture, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.URI, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open %s: capture not opened", d.URI)
	}

	if _, isDevice := target.(int); isDevice {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(o.cfg.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(o.cfg.Height))
		capture.Set(gocv.VideoCaptureFPS, float64(o.cfg.FPS))
	}

	o.logger.Debug("source opened",
		"source", d.URI,
		"width", capture.Get(gocv.VideoCaptureFrameWidth),
		"height", capture.Get(gocv.VideoCaptureFrameHeight),
		"fps", capture.Get(gocv.VideoCaptureFPS),
		"frame_count", capture.Get(gocv.VideoCaptureFrameCount),
	)

	return &videoSource{
		desc:    d,
		capture: capture,
		open:    true,
		logger:  o.logger,
	}, nil
}

// parseTarget maps a descriptor URI to an OpenCV capture target: a device
// index for bare non-negative integers, otherwise a path or URL.
func parseTarget(uri string) any {
	uri = strings.TrimSpace(uri)
	if id, err := strconv.Atoi(uri); err == nil && id >= 0 {
		return id
	}
	return strings.TrimPrefix(uri, "file://")
}

// videoSource reads decoded frames from an OpenCV capture.
type videoSource struct {
	desc    occupancy.Descriptor
	logger  *slog.Logger
	mu      sync.Mutex
	capture *gocv.VideoCapture
	open    bool
}

// Next reads the next frame. The caller is responsible for closing it.
func (s *videoSource) Next() (occupancy.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		return nil, occupancy.ErrEndOfStream
	}
	if mat.Empty() {
		mat.Close()
		return nil, occupancy.ErrEndOfStream
	}

	return &mat, nil
}

// Close releases the capture and removes temporary files. It is safe to
// call more than once.
func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}
	s.open = false

	var err error
	if s.capture != nil {
		err = s.capture.Close()
		s.capture = nil
	}
	removeTemporary(s.desc, s.logger)
	return err
}

func removeTemporary(d occupancy.Descriptor, logger *slog.Logger) {
	if !d.Temporary || d.IsZero() {
		return
	}
	if err := os.Remove(d.URI); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("remove temporary source failed", "path", d.URI, "error", err)
	}
}
