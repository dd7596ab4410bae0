package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trade-analytics-go/internal/config"
	"trade-analytics-go/internal/database"
	"trade-analytics-go/internal/logger"
	"trade-analytics-go/internal/retry"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Portfolio analytics and risk-limit engine",
	Long: `Analytics computes equity curves, drawdown and run-up, performance ratios,
the daily Maximum Loss Limit of funded accounts and the progress of trading goals.

It can serve the results over HTTP, or run a single recompute from the shell:
  analytics serve
  analytics recompute --account 3 --from 2024-05-01
  analytics stats --account 3
  analytics goals sweep`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs", "directory containing config.yml")
}

// app is what every subcommand needs to run.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	db    *gorm.DB
	store *database.Store
}

func bootstrap() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}
	log.Debug("Configuration loaded", zap.String("path", configPath))

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	log.Debug("Database connection successful and schema migrated.", zap.String("dsn", cfg.Database.DSN))

	return &app{cfg: cfg, log: log, db: db, store: database.NewStore(db)}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
	if err := database.Close(a.db); err != nil {
		a.log.Warn("Failed to close database", zap.Error(err))
	}
}

func (a *app) retryPolicy() retry.Policy {
	return retry.Policy{
		Attempts: a.cfg.Recompute.RetryAttempts,
		Backoff:  a.cfg.Recompute.RetryBackoff(),
	}
}
