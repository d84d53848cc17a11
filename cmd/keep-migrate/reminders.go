package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/keep-migrate/internal/migrate"
	"github.com/xaenox/keep-migrate/internal/report"
	"go.uber.org/zap"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Copy reminders onto notes that already exist in the destination",
	Long: `reminders runs only the reminder pass. Each matched destination note gets
the reminder set of its source note, replacing whatever it had, so the
command can be repeated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		acc, err := openAccounts(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer acc.Close()

		metrics := report.NewMetrics(metricsNamespace)
		m := migrate.New(acc.src, acc.dst, cfg.Options(),
			migrate.Multi{report.NewLogReporter(logger), metrics}, logger)

		res, err := m.CopyReminders(ctx)
		if werr := report.WriteReminders(cmd.OutOrStdout(), res); werr != nil {
			logger.Error("Failed to write summary", zap.Error(werr))
		}
		if path := cfg.Metrics.Textfile; path != "" {
			if werr := metrics.WriteTextfile(path); werr != nil {
				logger.Error("Failed to write metrics", zap.Error(werr), zap.String("path", path))
			}
		}
		if err != nil {
			return fmt.Errorf("reminder pass stopped: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remindersCmd)
}
