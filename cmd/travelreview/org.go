package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/infrastructure/orgchart"
)

func orgCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage the organization chart",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the organization chart from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := orgchart.LoadFile(args[0])
			if err != nil {
				return err
			}

			_, c, logger, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("start container: %w", err)
			}
			defer c.Close()

			if err := c.Repositories().Org.ImportOrg(ctx, chart); err != nil {
				return fmt.Errorf("import org chart: %w", err)
			}

			logger.Info("Org chart imported",
				zap.String("file", args[0]),
				zap.Int("users", len(chart.Users)),
				zap.Int("regions", len(chart.Regions)),
				zap.Int("branches", len(chart.Branches)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check an organization chart file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := orgchart.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d users, %d regions, %d branches\n",
				len(chart.Users), len(chart.Regions), len(chart.Branches))
			return nil
		},
	})

	return cmd
}
