package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/tradeboard/internal/api"
	"github.com/newthinker/tradeboard/internal/app"
	"github.com/newthinker/tradeboard/internal/logger"
	"github.com/newthinker/tradeboard/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Initialize logger
	log, err := logger.ForMode(cfg.Server.Mode, debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults and environment")
	}
	if cfg.Backend.BaseURL == "" {
		log.Warn("no backend base URL configured, dashboards will not fetch data")
	}

	a, err := app.New(cfg, log.Named("app"))
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}

	deps := api.Dependencies{App: a}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.NewRegistry()
		a.SetMetrics(deps.Metrics)
	}

	log.Info("starting tradeboard server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	// Create API server
	server, err := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		APIKey:       cfg.Server.APIKey,
		TemplatesDir: cfg.Server.TemplatesDir,
		MetricsPath:  cfg.Metrics.Path,
	}, deps, log.Named("http"))
	if err != nil {
		a.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDone := make(chan error, 1)
	go func() { appDone <- a.Start(ctx) }()

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", zap.Error(err))
		}
		stop()
	}

	log.Info("shutting down tradeboard server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if appErr := <-appDone; appErr != nil && !errors.Is(appErr, context.Canceled) {
		log.Error("app error", zap.Error(appErr))
	}
	return err
}
