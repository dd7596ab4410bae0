package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics-go/internal/models"
)

// Ratios is the performance-ratio group of a summary.
type Ratios struct {
	ProfitFactor   float64         `json:"profit_factor"`
	WinLossRatio   float64         `json:"win_loss_ratio"`
	Expectancy     decimal.Decimal `json:"expectancy"`
	RecoveryFactor float64         `json:"recovery_factor"`
	RecoveryTime   float64         `json:"recovery_time"`
	Sharpe         float64         `json:"sharpe"`
	Sortino        float64         `json:"sortino"`
	Calmar         float64         `json:"calmar"`
	Consistency    float64         `json:"consistency"`
}

// Counts is the trade-count group of a summary.
type Counts struct {
	Total     int `json:"total"`
	Winners   int `json:"winners"`
	Losers    int `json:"losers"`
	BreakEven int `json:"break_even"`
	Days      int `json:"days"`
}

// PnL is the money group of a summary.
type PnL struct {
	Total       decimal.Decimal `json:"total"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	GrossLoss   decimal.Decimal `json:"gross_loss"`
	AverageWin  decimal.Decimal `json:"average_win"`
	AverageLoss decimal.Decimal `json:"average_loss"`
	LargestWin  decimal.Decimal `json:"largest_win"`
	LargestLoss decimal.Decimal `json:"largest_loss"`
}

// Summary is the statistics record for one account over one range.
type Summary struct {
	AccountID      uint            `json:"account_id"`
	Currency       string          `json:"currency"`
	Range          Range           `json:"range"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	StartBalance   decimal.Decimal `json:"start_balance"`
	EndBalance     decimal.Decimal `json:"end_balance"`
	Counts         Counts          `json:"counts"`
	WinRate        float64         `json:"win_rate"`
	PnL            PnL             `json:"pnl"`
	Ratios         Ratios          `json:"ratios"`
	// Period extrema are measured on the range only, from the period-start capital.
	Period Extrema `json:"period"`
	// Global extrema ignore the range and cover the whole account history.
	Global Extrema `json:"global"`
}

// Options tunes Summarize.
type Options struct {
	CalmarMinDays int
}

// Summarize builds the statistics record of account over r. trades is the
// account's complete trade history; the range subset and the period-start
// capital are derived from it.
func Summarize(account models.Account, trades []models.Trade, r Range, opts Options) Summary {
	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	SortTrades(ordered)

	inRange := r.Filter(ordered)
	baseline := PeriodBaseline(account.InitialCapital, ordered, r.From)

	var start time.Time
	if !r.From.IsZero() {
		start = r.From
	}
	periodCurve := BuildCurve(baseline, start, inRange)
	globalCurve := BuildCurve(account.InitialCapital, time.Time{}, ordered)

	part := NewPartition(inRange)
	days, _ := DailyPnL(inRange)
	period := Scan(periodCurve, account.InitialCapital)

	s := Summary{
		AccountID:      account.ID,
		Currency:       account.Currency,
		Range:          r,
		InitialCapital: account.InitialCapital,
		StartBalance:   periodCurve.Baseline(),
		EndBalance:     periodCurve.Final(),
		Counts: Counts{
			Total:     part.Count(),
			Winners:   len(part.Winners),
			Losers:    len(part.Losers),
			BreakEven: part.BreakEven,
			Days:      len(days),
		},
		WinRate: part.WinRate(),
		PnL: PnL{
			Total:       part.Total,
			GrossProfit: part.GrossProfit,
			GrossLoss:   part.GrossLoss,
			AverageWin:  part.AverageWin(),
			AverageLoss: part.AverageLoss(),
			LargestWin:  part.LargestWin(),
			LargestLoss: part.LargestLoss(),
		},
		Period: period,
		Global: Scan(globalCurve, account.InitialCapital),
	}

	s.Ratios = Ratios{
		ProfitFactor:   part.ProfitFactor(),
		WinLossRatio:   part.WinLossRatio(),
		Expectancy:     part.Expectancy(),
		RecoveryFactor: RecoveryFactor(part.Total, period.Drawdown.Absolute),
		RecoveryTime:   RecoveryTime(periodCurve),
		Sharpe:         part.Sharpe(),
		Sortino:        part.Sortino(),
		Consistency:    Consistency(inRange),
	}
	if len(days) > 0 {
		s.Ratios.Calmar = Calmar(part.Total, account.InitialCapital, days[0], days[len(days)-1],
			period.Drawdown.Percent, opts.CalmarMinDays)
	}
	return s
}
