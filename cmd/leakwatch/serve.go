package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/OldStager01/leakwatch/internal/baseline"
	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/config"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring loop and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.WithFields(map[string]interface{}{
				"installation_id": cfg.App.InstallationID,
				"mode":            cfg.App.Mode,
				"source":          cfg.Source.Type,
			}).Infof("Starting %s", cfg.App.Name)

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			return a.run(ctx)
		},
	}
}

// run serves until ctx is cancelled, then shuts everything down in
// dependency order.
func (a *app) run(ctx context.Context) error {
	a.eventLog.Start()
	if err := a.monitor.Start(); err != nil {
		a.eventLog.Stop()
		a.close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Start)
	if a.watcher != nil {
		g.Go(func() error {
			if err := a.watcher.Run(gctx); err != nil {
				logger.WithError(err).Warn("Model watcher stopped, hot reload disabled")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		a.shutdown()
		return nil
	})

	err := g.Wait()
	if err != nil {
		logger.WithError(err).Error("Server stopped with error")
	}
	logger.Info("Shutdown complete")
	return err
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("API server did not shut down cleanly")
	}
	a.monitor.Stop()
	a.eventLog.Stop()

	err := a.engine.SaveBaseline(ctx, a.profiles)
	if err != nil && !errors.Is(err, baseline.ErrNotCalibrated) {
		logger.WithError(err).Warn("Final baseline save failed")
	}
	a.close()
}
