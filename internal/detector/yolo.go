package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/roomcount/internal/occupancy"
)

// YOLO runs a YOLOv8 ONNX model on the OpenCV DNN CPU backend. Frames must
// be *gocv.Mat values as produced by the capture package.
type YOLO struct {
	cfg    Config
	logger *slog.Logger
	net    gocv.Net
	mu     sync.Mutex
	closed bool
}

// NewYOLO loads the model named in cfg.
func NewYOLO(cfg Config, logger *slog.Logger) (*YOLO, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	net := gocv.ReadNet(cfg.ModelPath, "")
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "detector")
	logger.Info("model loaded", "path", cfg.ModelPath, "input_size", cfg.InputSize)

	return &YOLO{cfg: cfg, logger: logger, net: net}, nil
}

// Detect runs inference on frame and returns candidates scoring at least
// minConfidence, after per-class non-maximum suppression.
func (y *YOLO) Detect(frame occupancy.Frame, minConfidence float64) ([]occupancy.Detection, error) {
	mat, ok := frame.(*gocv.Mat)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	if mat.Empty() {
		return nil, errors.New("frame is empty")
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil, occupancy.ErrDetectorUnavailable
	}

	size := y.cfg.InputSize
	blob := gocv.BlobFromImage(*mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	width, height := float64(mat.Cols()), float64(mat.Rows())
	raw, err := decodeOutput(data, output.Size(), width/float64(size), height/float64(size), minConfidence, y.cfg.PersonClassID)
	if err != nil {
		return nil, err
	}

	dets := nonMaxSuppression(raw, y.cfg.NMSThreshold)
	for i := range dets {
		dets[i].Box = clip(dets[i].Box, width, height)
	}
	return dets, nil
}

// Close releases the network. Later Detect calls report the detector as
// unavailable.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.closed {
		return nil
	}
	y.closed = true
	return y.net.Close()
}
