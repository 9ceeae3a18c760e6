package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OldStager01/leakwatch/internal/logger"
	"github.com/OldStager01/leakwatch/internal/simulator"
)

func newSimulateCmd() *cobra.Command {
	var (
		port     int
		pattern  string
		seed     int64
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the device backend simulator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.Setup(logLevel, "development")
			logger.Infof("Starting device simulator with %s pattern", pattern)

			device := simulator.DefaultDeviceConfig()
			if seed != 0 {
				device.Seed = seed
			}
			sim := simulator.New(simulator.Config{Port: port, Device: device})
			sim.Device().SetPattern(simulator.ParsePattern(pattern))

			if err := sim.Start(); err != nil {
				return fmt.Errorf("failed to start simulator: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigChan:
			case <-cmd.Context().Done():
			}

			logger.Info("Shutting down simulator")
			return sim.Stop()
		},
	}

	cmd.Flags().IntVar(&port, "port", 9000, "simulator server port")
	cmd.Flags().StringVar(&pattern, "pattern", "normal", "reading pattern: normal, leak, burst, slow_leak")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 for time based")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}
