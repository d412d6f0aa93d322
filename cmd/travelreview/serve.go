package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/garyjia/travel-review/internal/interfaces/http"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notice relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, c, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting travel review service",
		zap.String("version", httpapi.Version),
		zap.Int("port", cfg.Server.Port))

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Shutdown finished with errors", zap.Error(err))
		}
	}()

	if err := c.StartWorkers(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	services := c.Services()
	server := httpapi.NewServer(
		httpapi.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		httpapi.Services{
			Requests:      services.Requests,
			Trips:         services.Trips,
			Notifications: c.Repositories().NotificationLog,
		},
		c.Metrics().Handler(),
		c.ServiceLogger("http"),
	)

	// Blocks until a signal arrives
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("Server exited successfully")
	return nil
}
