package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xaenox/keep-migrate/internal/migrate"
	"github.com/xaenox/keep-migrate/internal/report"
	"github.com/xaenox/keep-migrate/internal/session"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print note counts of both accounts without changing anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		acc, err := openAccounts(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer acc.Close()

		for _, s := range []session.Session{acc.src, acc.dst} {
			inv, err := migrate.CountInventory(ctx, s)
			if err != nil {
				return fmt.Errorf("failed to count notes of %s: %w", s.Account(), err)
			}
			if err := report.WriteInventory(cmd.OutOrStdout(), s.Account(), inv); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
