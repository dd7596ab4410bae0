package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"

	"trade-analytics-go/internal/client"
	"trade-analytics-go/internal/config"
	"trade-analytics-go/internal/logger"
	"trade-analytics-go/internal/models"
)

var (
	configPath string
	accountID  uint
	fromDay    string
	toDay      string
	outPath    string
	withLimit  bool
)

var rootCmd = &cobra.Command{
	Use:          "plotter",
	Short:        "Render the equity curve of an account to PNG",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "./configs", "directory containing config.yml")
	rootCmd.Flags().UintVarP(&accountID, "account", "a", 0, "account id (required)")
	rootCmd.Flags().StringVar(&fromDay, "from", "", "first trade day, YYYY-MM-DD")
	rootCmd.Flags().StringVar(&toDay, "to", "", "last trade day, YYYY-MM-DD")
	rootCmd.Flags().StringVarP(&outPath, "out", "o", "equity_curve.png", "output PNG file path")
	rootCmd.Flags().BoolVar(&withLimit, "mll", false, "overlay the stored maximum loss limit")
	rootCmd.MarkFlagRequired("account")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return err
	}
	defer log.Sync()

	var from, to time.Time
	if fromDay != "" {
		if from, err = models.ParseDay(fromDay); err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
	}
	if toDay != "" {
		if to, err = models.ParseDay(toDay); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	api := client.NewClient(&cfg.Client, log)
	ctx := cmd.Context()

	points, err := api.GetEquityCurve(ctx, accountID, from, to)
	if err != nil {
		return err
	}

	var limits []models.DailyAccountMetrics
	if withLimit {
		if limits, err = api.GetDailyMetrics(ctx, accountID, from, to); err != nil {
			return err
		}
	}

	p, err := newChart(fmt.Sprintf("Account %d: Equity Curve", accountID), points, limits)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, outPath); err != nil {
		return fmt.Errorf("could not save chart: %w", err)
	}

	log.Info("Chart saved", zap.String("path", outPath), zap.Int("points", len(points)))
	return nil
}
