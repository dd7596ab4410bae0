package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trade-analytics-go/internal/analytics"
	"trade-analytics-go/internal/models"
)

var (
	stAccount uint
	stFrom    string
	stTo      string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the statistics summary of an account as JSON",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().UintVarP(&stAccount, "account", "a", 0, "account id (required)")
	statsCmd.Flags().StringVar(&stFrom, "from", "", "first trade day, YYYY-MM-DD")
	statsCmd.Flags().StringVar(&stTo, "to", "", "last trade day, YYYY-MM-DD")
	statsCmd.MarkFlagRequired("account")
}

func parseOptionalDay(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := models.ParseDay(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return day, nil
}

func runStats(cmd *cobra.Command, args []string) error {
	from, err := parseOptionalDay("from", stFrom)
	if err != nil {
		return err
	}
	to, err := parseOptionalDay("to", stTo)
	if err != nil {
		return err
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	svc := analytics.NewService(a.store, a.log, analytics.Options{CalmarMinDays: a.cfg.Analytics.CalmarMinDays})
	summary, err := svc.Statistics(cmd.Context(), stAccount, analytics.NewRange(from, to))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
