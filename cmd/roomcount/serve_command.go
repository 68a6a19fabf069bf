package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/ayusman/roomcount/internal/app"
	"github.com/ayusman/roomcount/internal/config"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP counting service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if cfg.Server.StaticDir == "" {
				cfg.Server.StaticDir = findWebDir(cfg)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another roomcount service is already using " + cfg.Server.DataDir)
			}
			defer lock.Unlock()

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			if cfg.Server.StaticDir != "" {
				logger.Info("serving static files", "dir", cfg.Server.StaticDir)
			}

			a, err := app.New(cfg, app.Options{Logger: logger})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := a.Run(runCtx)
			closeErr := a.Close()
			logger.Info("roomcount stopped")
			return errors.Join(runErr, closeErr)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override the configured listen address")
	return cmd
}

// findWebDir searches for a web directory in common locations.
// It checks "web", "../web" and <data_dir>/web, returning the first existing
// directory or an empty string.
func findWebDir(cfg *config.Config) string {
	candidates := []string{"web", filepath.Join("..", "web"), filepath.Join(cfg.Server.DataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
