package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/keep-migrate/internal/migrate"
	"github.com/xaenox/keep-migrate/internal/notify"
	"github.com/xaenox/keep-migrate/internal/report"
	"go.uber.org/zap"
)

const metricsNamespace = "keep_migrate"

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy labels, notes and reminders to the destination account",
	Args:  cobra.NoArgs,
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

		sum, runErr := m.Run(ctx)
		if err := report.WriteSummary(cmd.OutOrStdout(), sum); err != nil {
			logger.Error("Failed to write summary", zap.Error(err))
		}
		publish(metrics, sum)

		if runErr != nil {
			return fmt.Errorf("migration stopped: %w", runErr)
		}
		if !report.Clean(sum) {
			logger.Warn("Migration finished with item failures; run again to retry them")
		} else {
			logger.Info("Migration finished")
		}
		return nil
	},
}

// publish writes the metrics textfile and sends the chat notification when
// they are configured. Neither affects the exit status.
func publish(metrics *report.Metrics, sum migrate.Summary) {
	if path := cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Error("Failed to write metrics", zap.Error(err), zap.String("path", path))
		}
	}

	if cfg.Telegram.Token == "" {
		return
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
	if err != nil {
		logger.Error("Failed to create notifier", zap.Error(err))
		return
	}
	tg.Notify(cfg.Source.Account, cfg.Destination.Account, sum)
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
