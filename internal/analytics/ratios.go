package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics-go/internal/models"
)

// DefaultCalmarMinDays is the shortest history Calmar is annualized over.
const DefaultCalmarMinDays = 30

// Partition splits trade PnL into winners and losers once, so that every
// ratio in a report is derived from the same sets. Break-even trades only
// count towards the total.
type Partition struct {
	All         []decimal.Decimal
	Winners     []decimal.Decimal
	Losers      []decimal.Decimal
	BreakEven   int
	GrossProfit decimal.Decimal // sum of winners
	GrossLoss   decimal.Decimal // sum of losers, negative or zero
	Total       decimal.Decimal
}

// NewPartition builds the partition for trades in their given order.
func NewPartition(trades []models.Trade) Partition {
	p := Partition{
		All:         make([]decimal.Decimal, 0, len(trades)),
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
		Total:       decimal.Zero,
	}
	for _, t := range trades {
		pnl := t.NetPnL
		p.All = append(p.All, pnl)
		p.Total = p.Total.Add(pnl)
		switch {
		case pnl.IsPositive():
			p.Winners = append(p.Winners, pnl)
			p.GrossProfit = p.GrossProfit.Add(pnl)
		case pnl.IsNegative():
			p.Losers = append(p.Losers, pnl)
			p.GrossLoss = p.GrossLoss.Add(pnl)
		default:
			p.BreakEven++
		}
	}
	return p
}

// Count is the number of trades, break-even included.
func (p Partition) Count() int { return len(p.All) }

// AverageWin is the mean winning PnL, zero without winners.
func (p Partition) AverageWin() decimal.Decimal {
	if len(p.Winners) == 0 {
		return decimal.Zero
	}
	return p.GrossProfit.Div(decimal.NewFromInt(int64(len(p.Winners))))
}

// AverageLoss is the mean losing PnL (negative), zero without losers.
func (p Partition) AverageLoss() decimal.Decimal {
	if len(p.Losers) == 0 {
		return decimal.Zero
	}
	return p.GrossLoss.Div(decimal.NewFromInt(int64(len(p.Losers))))
}

// LargestWin is the biggest winning PnL, zero without winners.
func (p Partition) LargestWin() decimal.Decimal {
	if len(p.Winners) == 0 {
		return decimal.Zero
	}
	return decimal.Max(p.Winners[0], p.Winners[1:]...)
}

// LargestLoss is the most negative losing PnL, zero without losers.
func (p Partition) LargestLoss() decimal.Decimal {
	if len(p.Losers) == 0 {
		return decimal.Zero
	}
	return decimal.Min(p.Losers[0], p.Losers[1:]...)
}

// WinRate is the share of winning trades among all trades, in percent.
func (p Partition) WinRate() float64 {
	if p.Count() == 0 {
		return 0
	}
	return float64(len(p.Winners)) / float64(p.Count()) * 100
}

// ProfitFactor is gross profit over gross loss, 0 without losers.
func (p Partition) ProfitFactor() float64 {
	if p.GrossLoss.IsZero() {
		return 0
	}
	return p.GrossProfit.Abs().Div(p.GrossLoss.Abs()).InexactFloat64()
}

// WinLossRatio is the number of winners per loser, 0 without losers.
func (p Partition) WinLossRatio() float64 {
	if len(p.Losers) == 0 {
		return 0
	}
	return float64(len(p.Winners)) / float64(len(p.Losers))
}

// Expectancy is the average PnL expected per trade:
// winRate*avgWin - (1-winRate)*|avgLoss|.
func (p Partition) Expectancy() decimal.Decimal {
	if p.Count() == 0 {
		return decimal.Zero
	}
	winRate := decimal.NewFromInt(int64(len(p.Winners))).Div(decimal.NewFromInt(int64(p.Count())))
	lossRate := decimal.NewFromInt(1).Sub(winRate)
	return winRate.Mul(p.AverageWin()).Sub(lossRate.Mul(p.AverageLoss().Abs()))
}

// Sharpe is the mean trade PnL over its population standard deviation. It
// is not annualized.
func (p Partition) Sharpe() float64 {
	if p.Count() < 2 {
		return 0
	}
	sd := stdev(p.All)
	if sd == 0 {
		return 0
	}
	return mean(p.All).InexactFloat64() / sd
}

// Sortino is the mean trade PnL over the deviation of losing trades. A
// single loss has no spread, so its magnitude is used as the denominator.
func (p Partition) Sortino() float64 {
	if p.Count() == 0 || len(p.Losers) == 0 {
		return 0
	}
	var denom float64
	if len(p.Losers) == 1 {
		denom = p.Losers[0].Abs().InexactFloat64()
	} else {
		denom = stdev(p.Losers)
	}
	if denom == 0 {
		return 0
	}
	return mean(p.All).InexactFloat64() / denom
}

// RecoveryFactor is net profit over the absolute max drawdown, 0 without drawdown.
func RecoveryFactor(totalPnL, maxDrawdown decimal.Decimal) float64 {
	if !maxDrawdown.IsPositive() {
		return 0
	}
	return totalPnL.Div(maxDrawdown).InexactFloat64()
}

// RecoveryTime is the mean number of trades it took the curve to get back to
// a prior peak, over every drawdown episode that closed. Episodes still open
// at the end of the curve are ignored.
func RecoveryTime(c Curve) float64 {
	if len(c) < 2 {
		return 0
	}
	var (
		episodes, elapsed int
		peakIdx           int
		inDrawdown        bool
	)
	peak := c[0].Balance
	for i := 1; i < len(c); i++ {
		b := c[i].Balance
		if inDrawdown {
			if !b.LessThan(peak) {
				episodes++
				elapsed += i - peakIdx
				inDrawdown = false
				peak, peakIdx = b, i
			}
			continue
		}
		switch {
		case b.GreaterThan(peak):
			peak, peakIdx = b, i
		case b.LessThan(peak):
			inDrawdown = true
		}
	}
	if episodes == 0 {
		return 0
	}
	return float64(elapsed) / float64(episodes)
}

// Calmar is the annualized return over the max drawdown percentage. The
// return is only annualized when the history spans at least minDays days;
// shorter histories yield 0.
func Calmar(totalPnL, initialCapital decimal.Decimal, first, last time.Time, maxDrawdownPercent float64, minDays int) float64 {
	if minDays <= 0 {
		minDays = DefaultCalmarMinDays
	}
	if !initialCapital.IsPositive() || maxDrawdownPercent <= 0 {
		return 0
	}
	days := DaySpan(first, last)
	if days < minDays {
		return 0
	}
	annualized := totalPnL.Div(initialCapital).
		Mul(decimal.NewFromInt(365)).
		Div(decimal.NewFromInt(int64(days))).
		Mul(hundred).
		InexactFloat64()
	return annualized / maxDrawdownPercent
}

// DaySpan is the number of whole calendar days from first to last.
func DaySpan(first, last time.Time) int {
	if first.IsZero() || last.IsZero() {
		return 0
	}
	return int(models.Day(last).Sub(models.Day(first)).Hours() / 24)
}

// DailyPnL sums net PnL per trade day, returning the days in ascending order.
func DailyPnL(trades []models.Trade) ([]time.Time, map[time.Time]decimal.Decimal) {
	totals := make(map[time.Time]decimal.Decimal)
	var days []time.Time
	for _, t := range trades {
		day := models.Day(t.TradeDay)
		sum, ok := totals[day]
		if !ok {
			days = append(days, day)
			sum = decimal.Zero
		}
		totals[day] = sum.Add(t.NetPnL)
	}
	sortDays(days)
	return days, totals
}

// ProfitableDays counts trade days with a positive net PnL.
func ProfitableDays(trades []models.Trade) int {
	days, totals := DailyPnL(trades)
	n := 0
	for _, d := range days {
		if totals[d].IsPositive() {
			n++
		}
	}
	return n
}

// Consistency is the share of trading days closed in profit, in percent.
func Consistency(trades []models.Trade) float64 {
	days, _ := DailyPnL(trades)
	if len(days) == 0 {
		return 0
	}
	return float64(ProfitableDays(trades)) / float64(len(days)) * 100
}

func mean(xs []decimal.Decimal) decimal.Decimal {
	if len(xs) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, xs...).Div(decimal.NewFromInt(int64(len(xs))))
}

// stdev is the population standard deviation of xs.
func stdev(xs []decimal.Decimal) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	sq := decimal.Zero
	for _, x := range xs {
		d := x.Sub(m)
		sq = sq.Add(d.Mul(d))
	}
	variance := sq.Div(decimal.NewFromInt(int64(len(xs))))
	if variance.IsZero() {
		return 0
	}
	return math.Sqrt(variance.InexactFloat64())
}

func sortDays(days []time.Time) {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
}
