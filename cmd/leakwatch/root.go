package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/pkg/config"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "leakwatch",
		Short:         "Leak detection and forecasting for water sensor telemetry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}
	cmd.AddCommand(newServeCmd(load), newMigrateCmd(load), newSimulateCmd())
	return cmd
}

// loadConfig reads and validates the config, then configures logging.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Setup(cfg.App.LogLevel, cfg.App.Mode)
	return cfg, nil
}
