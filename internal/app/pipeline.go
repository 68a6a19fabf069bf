package app

import (
	"io"
	"log/slog"

	"github.com/ayusman/roomcount/internal/capture"
	"github.com/ayusman/roomcount/internal/config"
	"github.com/ayusman/roomcount/internal/detector"
	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/tracker"
)

// pipeline holds the per-frame capabilities a job runs through:
//
//  1. opener decodes frames from a file, stream or camera
//  2. detector finds person candidates (nil when no model could be loaded)
//  3. newTracker gives each job a fresh identity tracker
type pipeline struct {
	opener     occupancy.SourceOpener
	detector   occupancy.Detector
	newTracker occupancy.TrackerFactory
	closers    []io.Closer
	logger     *slog.Logger
}

func newPipeline(cfg *config.Config, opts Options, logger *slog.Logger) *pipeline {
	p := &pipeline{
		opener:   opts.Opener,
		detector: opts.Detector,
		newTracker: tracker.Factory(cfg.Tracker.Params()),
		logger: logger,
	}

	if p.opener == nil {
		p.opener = capture.NewOpener(capture.Config{
			Width:  cfg.Capture.Width,
			Height: cfg.Capture.Height,
			FPS:    cfg.Capture.FPS,
		}, logger)
	}

	if p.detector == nil {
		modelPath := cfg.ResolveModelPath()
		yolo, err := detector.NewYOLO(detector.Config{
			ModelPath:     modelPath,
			InputSize:     cfg.Detector.InputSize,
			NMSThreshold:  cfg.Detector.NMSThreshold,
			PersonClassID: cfg.Detector.PersonClassID,
		}, logger)
		if err != nil {
			logger.Warn("person detector unavailable, jobs will end at their first frame",
				"model_path", modelPath,
				"error", err,
			)
		} else {
			logger.Info("person detector loaded", "model_path", modelPath)
			p.detector = yolo
			p.closers = append(p.closers, yolo)
		}
	}

	return p
}

func (p *pipeline) close() {
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			p.logger.Warn("failed to release pipeline resource", "error", err)
		}
	}
	p.closers = nil
}
