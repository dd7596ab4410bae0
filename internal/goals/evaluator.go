package goals

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics-go/internal/analytics"
	"trade-analytics-go/internal/models"
)

// ErrUnknownGoalType is returned for a goal type the evaluator cannot measure.
var ErrUnknownGoalType = errors.New("unknown goal type")

var hundred = decimal.NewFromInt(100)

// Progress is the evaluated state of a goal at a point in time.
type Progress struct {
	GoalID          uint              `json:"goal_id"`
	Type            models.GoalType   `json:"type"`
	CurrentValue    decimal.Decimal   `json:"current_value"`
	Percentage      float64           `json:"percentage"`
	Status          models.GoalStatus `json:"status"`
	RemainingDays   int               `json:"remaining_days"`
	RemainingAmount decimal.Decimal   `json:"remaining_amount"`
	Warning         bool              `json:"warning"`
}

// Measure computes the goal's metric over trades, which must already be
// restricted to the goal's scope and period. baseline is the capital at the
// start of the period.
func Measure(goalType models.GoalType, trades []models.Trade, baseline decimal.Decimal) (decimal.Decimal, error) {
	p := analytics.NewPartition(trades)

	switch goalType {
	case models.GoalPnLTotal:
		return p.Total, nil
	case models.GoalWinRate:
		return decimal.NewFromFloat(p.WinRate()), nil
	case models.GoalTradeCount:
		return decimal.NewFromInt(int64(p.Count())), nil
	case models.GoalProfitFactor:
		return decimal.NewFromFloat(p.ProfitFactor()), nil
	case models.GoalMaxDrawdown:
		curve := analytics.BuildCurve(baseline, time.Time{}, trades)
		return analytics.MaxDrawdown(curve).Absolute, nil
	case models.GoalStrategyRespected:
		return strategyRespected(trades), nil
	case models.GoalProfitableDays:
		return decimal.NewFromInt(int64(analytics.ProfitableDays(trades))), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownGoalType, goalType)
}

// strategyRespected is the percentage of trades with a recorded flag that
// respected the strategy.
func strategyRespected(trades []models.Trade) decimal.Decimal {
	var recorded, respected int64
	for _, t := range trades {
		if t.StrategyRespected == nil {
			continue
		}
		recorded++
		if *t.StrategyRespected {
			respected++
		}
	}
	if recorded == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(respected).Mul(hundred).Div(decimal.NewFromInt(recorded))
}

// Percentage is how far current is towards target given the direction.
func Percentage(direction models.GoalDirection, current, target decimal.Decimal) decimal.Decimal {
	if direction == models.DirectionMaximum {
		if current.LessThanOrEqual(target) {
			return hundred
		}
		pct := target.Div(current).Mul(hundred)
		if pct.IsNegative() {
			return decimal.Zero
		}
		return pct
	}

	if !target.IsPositive() {
		if current.GreaterThanOrEqual(target) {
			return hundred
		}
		return decimal.Zero
	}
	return current.Div(target).Mul(hundred)
}

// Evaluate computes the progress of goal from its in-scope trades.
func Evaluate(goal models.Goal, trades []models.Trade, baseline decimal.Decimal, now time.Time) (Progress, error) {
	current, err := Measure(goal.Type, trades, baseline)
	if err != nil {
		return Progress{}, err
	}

	pct := Percentage(goal.Direction, current, goal.ThresholdTarget)
	today := models.Day(now)
	end := models.Day(goal.PeriodEnd)

	status := models.GoalActive
	switch {
	case goal.Status == models.GoalCancelled:
		status = models.GoalCancelled
	case pct.GreaterThanOrEqual(hundred):
		status = models.GoalAchieved
	case today.After(end):
		status = models.GoalFailed
	}

	remainingDays := 0
	if end.After(today) {
		remainingDays = int(end.Sub(today).Hours() / 24)
	}

	return Progress{
		GoalID:          goal.ID,
		Type:            goal.Type,
		CurrentValue:    current,
		Percentage:      pct.Round(2).InexactFloat64(),
		Status:          status,
		RemainingDays:   remainingDays,
		RemainingAmount: decimal.Max(decimal.Zero, goal.ThresholdTarget.Sub(current)),
		Warning:         warning(goal, current, status),
	}, nil
}

func warning(goal models.Goal, current decimal.Decimal, status models.GoalStatus) bool {
	if !goal.ThresholdWarning.Valid || status == models.GoalAchieved || status == models.GoalCancelled {
		return false
	}
	w := goal.ThresholdWarning.Decimal
	if goal.Direction == models.DirectionMaximum {
		return current.GreaterThanOrEqual(w)
	}
	return current.LessThanOrEqual(w)
}
