package config

import "github.com/ayusman/roomcount/internal/occupancy"

const (
	defaultBind      = "127.0.0.1:8000"
	defaultDataDir   = "~/.local/share/roomcount"
	defaultUploadDir = "~/.local/share/roomcount/uploads"
	defaultStaticDir = ""
	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultCaptureWidth  = 640
	defaultCaptureHeight = 480
	defaultCaptureFPS    = 15

	defaultModelPath     = "~/.local/share/roomcount/models/yolov8n.onnx"
	defaultInputSize     = 640
	defaultNMSThreshold  = 0.45
	defaultPersonClassID = 0

	defaultTrackerNInit  = 5
	defaultTrackerMaxAge = 18
	defaultTrackerMinIoU = 0.3
)

// modelFallbacks are tried, relative to the working directory, when the
// configured model file does not exist.
var modelFallbacks = []string{
	"models/yolov8n.onnx",
	"yolov8n.onnx",
	"../yolov8n.onnx",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	tun := occupancy.DefaultTunables()
	return Config{
		Server: Server{
			Bind:      defaultBind,
			DataDir:   defaultDataDir,
			UploadDir: defaultUploadDir,
			StaticDir: defaultStaticDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Capture: Capture{
			Width:  defaultCaptureWidth,
			Height: defaultCaptureHeight,
			FPS:    defaultCaptureFPS,
		},
		Detector: Detector{
			ModelPath:     defaultModelPath,
			InputSize:     defaultInputSize,
			NMSThreshold:  defaultNMSThreshold,
			PersonClassID: defaultPersonClassID,
		},
		Tracker: Tracker{
			NInit:  defaultTrackerNInit,
			MaxAge: defaultTrackerMaxAge,
			MinIoU: defaultTrackerMinIoU,
		},
		Counting: Counting{
			MinBoxArea:          tun.MinBoxArea,
			MinAspectRatio:      tun.MinAspectRatio,
			MaxAspectRatio:      tun.MaxAspectRatio,
			ConfidenceThreshold: tun.ConfidenceThreshold,
			ConfirmFrames:       tun.ConfirmFrames,
			MaxAge:              tun.MaxAge,
		},
	}
}
