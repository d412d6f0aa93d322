// Package main provides the travelreview binary entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/config"
	"github.com/garyjia/travel-review/internal/container"
	httpapi "github.com/garyjia/travel-review/internal/interfaces/http"
	"github.com/garyjia/travel-review/pkg/utils"
)

const appName = "travelreview"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Reviewer chains for travel requests and trips",
		Long: `travelreview routes travel requests and trips through ordered chains
of role-typed reviewers and notifies the people involved at each step.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Config file path (YAML)")

	cmd.AddCommand(
		serveCmd(&configPath),
		checkCmd(&configPath),
		orgCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, httpapi.Version)
			},
		},
	)

	return cmd
}

// bootstrap loads configuration, builds the logger and starts the container.
// The caller owns both and must close the container and sync the logger.
func bootstrap(configPath string) (*config.Config, *container.Container, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    appName,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, c, logger, nil
}
