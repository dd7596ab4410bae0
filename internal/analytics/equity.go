package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics-go/internal/models"
)

// Point is one sample of an equity curve.
type Point struct {
	Time    time.Time       `json:"time"`
	Balance decimal.Decimal `json:"balance"`
	// TradeDay is the trading day the point belongs to, which can differ
	// from the UTC date of Time for trades entered late in a local session.
	TradeDay time.Time `json:"trade_day"`
	// TradeID is zero for the synthetic baseline point.
	TradeID uint `json:"trade_id,omitempty"`
}

// Curve is a time-ordered running-capital series. The first point is always
// the baseline.
type Curve []Point

// SortTrades orders trades by entry time, breaking ties by trade id.
func SortTrades(trades []models.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.EnteredAt.Equal(b.EnteredAt) {
			return a.EnteredAt.Before(b.EnteredAt)
		}
		return a.ID < b.ID
	})
}

// BuildCurve turns trades into a running-capital series starting at baseline.
// start is the timestamp of the synthetic baseline point; when zero, the
// first trade's entry time is used. The input slice is not modified.
func BuildCurve(baseline decimal.Decimal, start time.Time, trades []models.Trade) Curve {
	ordered := make([]models.Trade, len(trades))
	copy(ordered, trades)
	SortTrades(ordered)

	startDay := models.Day(start)
	if start.IsZero() && len(ordered) > 0 {
		start = ordered[0].EnteredAt
		startDay = tradeDay(ordered[0])
	}

	curve := make(Curve, 0, len(ordered)+1)
	curve = append(curve, Point{Time: start, Balance: baseline, TradeDay: startDay})

	balance := baseline
	for _, t := range ordered {
		balance = balance.Add(t.NetPnL)
		curve = append(curve, Point{Time: t.EnteredAt, Balance: balance, TradeDay: tradeDay(t), TradeID: t.ID})
	}
	return curve
}

func tradeDay(t models.Trade) time.Time {
	if t.TradeDay.IsZero() {
		return models.Day(t.EnteredAt)
	}
	return models.Day(t.TradeDay)
}

// Baseline returns the balance of the first point, zero for an empty curve.
func (c Curve) Baseline() decimal.Decimal {
	if len(c) == 0 {
		return decimal.Zero
	}
	return c[0].Balance
}

// Final returns the balance of the last point, zero for an empty curve.
func (c Curve) Final() decimal.Decimal {
	if len(c) == 0 {
		return decimal.Zero
	}
	return c[len(c)-1].Balance
}

// Balances returns the balance column of the curve.
func (c Curve) Balances() []decimal.Decimal {
	out := make([]decimal.Decimal, len(c))
	for i, p := range c {
		out[i] = p.Balance
	}
	return out
}

// PeriodBaseline is the capital at the start of a period: initial capital
// plus the net PnL of every trade whose trade day is strictly before from.
// A zero from means the period has no lower bound.
func PeriodBaseline(initial decimal.Decimal, trades []models.Trade, from time.Time) decimal.Decimal {
	if from.IsZero() {
		return initial
	}
	from = models.Day(from)
	baseline := initial
	for _, t := range trades {
		if models.Day(t.TradeDay).Before(from) {
			baseline = baseline.Add(t.NetPnL)
		}
	}
	return baseline
}
