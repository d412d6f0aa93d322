package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func checkCmd(configPath *string) *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify stored reviewer chains",
		Long: `check walks every request and trip chain and reports chains whose
reviewer states contradict the derived status. With --repair the
contradictions are fixed and recorded in history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			report, err := c.Services().Consistency.Check(ctx, repair)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}

			unrepaired := 0
			for _, issue := range report.Issues {
				if !issue.Repaired {
					unrepaired++
				}
			}
			if unrepaired > 0 {
				return fmt.Errorf("%d chain(s) need repair", unrepaired)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Fix inconsistent chains")
	return cmd
}
