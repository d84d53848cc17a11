package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xaenox/keep-migrate/pkg/config"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "keep-migrate",
	Short: "Copy notes, labels and reminders from one note account to another",
	Long: `keep-migrate copies every non-trashed note of the source account into the
destination account, together with its labels, attributes, attachments and
reminders. Notes already present in the destination are left alone, so a
run can be repeated safely.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err = newLogger(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logger = logger.With(zap.String("run_id", uuid.NewString()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development || verbose {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid logging.level: %w", err)
		}
		zc.Level = level
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "keep-migrate: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
