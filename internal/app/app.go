// Package app wires the roomcount service together: configuration, storage,
// capture, detection, tracking, the job manager and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayusman/roomcount/internal/config"
	"github.com/ayusman/roomcount/internal/metrics"
	"github.com/ayusman/roomcount/internal/occupancy"
	"github.com/ayusman/roomcount/internal/server"
	"github.com/ayusman/roomcount/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Options replaces capabilities that are otherwise built from the
// configuration. Zero values select the OpenCV-backed implementations.
type Options struct {
	Logger   *slog.Logger
	Opener   occupancy.SourceOpener
	Detector occupancy.Detector
}

// App owns every long-lived component of a roomcount process.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	store    *store.Store
	pipeline *pipeline
	manager  *occupancy.Manager
	server   *server.Server
}

// New builds an App from cfg. The detector model is optional: when it cannot
// be loaded the service still starts and every job ends at its first frame.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app requires a configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		store:   st,
	}
	a.pipeline = newPipeline(cfg, opts, logger)

	a.manager, err = occupancy.NewManager(occupancy.Config{
		Opener:     a.pipeline.opener,
		Detector:   a.pipeline.detector,
		NewTracker: a.pipeline.newTracker,
		Tunables:   a.loadTunables(),
		Logger:     logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		a.pipeline.close()
		st.Close()
		return nil, err
	}

	a.server = server.New(server.Config{
		StaticDir:        cfg.Server.StaticDir,
		UploadDir:        cfg.Server.UploadDir,
		Manager:          a.manager,
		Store:            st,
		Metrics:          a.metrics,
		Logger:           logger,
		DetectorReady:    a.pipeline.detector != nil,
		CountingDefaults: cfg.Counting.Tunables(),
	})

	return a, nil
}

// loadTunables returns the persisted counting override when one is stored
// and valid, else the configured thresholds.
func (a *App) loadTunables() occupancy.Tunables {
	configured := a.cfg.Counting.Tunables()

	saved, err := a.store.Settings().LoadTunables()
	if errors.Is(err, store.ErrNotFound) {
		return configured
	}
	if err != nil {
		a.logger.Warn("ignoring stored counting settings", "error", err)
		return configured
	}
	if err := saved.Validate(); err != nil {
		a.logger.Warn("ignoring invalid stored counting settings", "error", err)
		return configured
	}

	a.logger.Info("using stored counting settings", "confirm_frames", saved.ConfirmFrames)
	return saved
}

// Manager returns the job manager.
func (a *App) Manager() *occupancy.Manager {
	return a.manager
}

// Server returns the HTTP server.
func (a *App) Server() *server.Server {
	return a.server
}

// Store returns the SQLite store.
func (a *App) Store() *store.Store {
	return a.store
}

// Metrics returns the pipeline metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// DetectorReady reports whether a person detector was loaded.
func (a *App) DetectorReady() bool {
	return a.pipeline.detector != nil
}

// Run serves the HTTP API on the configured bind address until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("roomcount starting",
		"bind", a.cfg.Server.Bind,
		"database", a.store.Path(),
		"detector_ready", a.DetectorReady(),
	)
	return a.server.Run(ctx, a.cfg.Server.Bind)
}

// Analyze runs one job for d to completion and returns the final status.
// Cancelling ctx stops the job before its next frame. A job that could not
// open its source, failed to read it, or had no detector returns an error.
func (a *App) Analyze(ctx context.Context, d occupancy.Descriptor) (occupancy.Status, error) {
	if _, err := a.manager.Start(d); err != nil {
		return occupancy.Status{}, err
	}

	if err := a.manager.Wait(ctx); err != nil {
		a.manager.Cancel()
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if werr := a.manager.Wait(waitCtx); werr != nil {
			return a.manager.Status(), werr
		}
		return a.manager.Status(), err
	}

	status := a.manager.Status()
	if err := status.Err(); err != nil {
		return status, fmt.Errorf("analyze %s: %w", d.URI, err)
	}
	return status, nil
}

// Close cancels any running job, waits for it to release its source and
// releases the detector and the store.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop job: %w", err))
	}
	a.server.Close()
	a.pipeline.close()
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
