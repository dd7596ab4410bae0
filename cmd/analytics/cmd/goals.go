package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"trade-analytics-go/internal/goals"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Evaluate trading goals",
}

var goalsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Re-evaluate every active goal once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		res, err := goals.NewService(a.store, a.log).SweepActive(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "evaluated=%d achieved=%d expired=%d failed=%d\n",
			res.Evaluated, res.Achieved, res.Expired, res.Failed)
		return nil
	},
}

var goalsProgressCmd = &cobra.Command{
	Use:   "progress <goal-id>",
	Short: "Evaluate one goal and print its progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id uint
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil || id == 0 {
			return fmt.Errorf("invalid goal id %q", args[0])
		}

		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		p, err := goals.NewService(a.store, a.log).Progress(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "goal %d (%s): current=%s %.2f%% status=%s remaining_days=%d remaining=%s warning=%t\n",
			p.GoalID, p.Type, p.CurrentValue, p.Percentage, p.Status, p.RemainingDays, p.RemainingAmount, p.Warning)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(goalsCmd)
	goalsCmd.AddCommand(goalsSweepCmd, goalsProgressCmd)
}
