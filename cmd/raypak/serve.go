package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/raypak"
	"github.com/jpalmerr/raypak/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadMonitor reads the config named by the --config flag and builds a
// Monitor from it. No network I/O happens here.
func loadMonitor(cmd *cobra.Command) (*raypak.Monitor, *config.Config, *slog.Logger, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.Level())

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, raypak.WithLogger(logger))

	m, err := raypak.New(opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create monitor: %w", err)
	}
	return m, cfg, logger, nil
}

// serveCmd polls the heater and serves the dashboard.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling and serve the dashboard",
	Long: `Start polling the heater and serve the dashboard.

The server will:
  - Load configuration from the specified YAML file
  - Refresh the heater once, failing fast on a bad token
  - Keep refreshing at the configured interval
  - Serve the dashboard UI, state API and metrics on the configured port

The server runs until interrupted (Ctrl+C), receives SIGTERM, or the
device API rejects the token.

Example:
  raypak serve -c config.yaml
  raypak serve --config /etc/raypak/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	m, cfg, logger, err := loadMonitor(cmd)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"server", cfg.Server,
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, m, logger)
}

// serve runs m until ctx is cancelled, bounding shutdown by shutdownTimeout.
func serve(ctx context.Context, m *raypak.Monitor, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
