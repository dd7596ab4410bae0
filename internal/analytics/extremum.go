package analytics

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Drawdown is the largest peak-to-trough decline of a curve.
type Drawdown struct {
	Absolute decimal.Decimal `json:"absolute"`
	Percent  float64         `json:"percent"`
	Peak     decimal.Decimal `json:"peak"`
	Trough   decimal.Decimal `json:"trough"`
}

// RunUp is the largest trough-to-peak increase of a curve.
type RunUp struct {
	Absolute decimal.Decimal `json:"absolute"`
	Percent  float64         `json:"percent"`
	Trough   decimal.Decimal `json:"trough"`
	Peak     decimal.Decimal `json:"peak"`
}

// Extrema groups both extremes of one curve.
type Extrema struct {
	Drawdown Drawdown `json:"drawdown"`
	RunUp    RunUp    `json:"run_up"`
}

// Scan computes drawdown and run-up of c. initialCapital is only used as the
// run-up percentage base when the run-up starts from a zero balance.
func Scan(c Curve, initialCapital decimal.Decimal) Extrema {
	return Extrema{
		Drawdown: MaxDrawdown(c),
		RunUp:    MaxRunUp(c, initialCapital),
	}
}

// MaxDrawdown scans c once, tracking the running peak.
func MaxDrawdown(c Curve) Drawdown {
	var dd Drawdown
	dd.Absolute = decimal.Zero
	if len(c) == 0 {
		return dd
	}

	peak := c[0].Balance
	for _, p := range c[1:] {
		if p.Balance.GreaterThan(peak) {
			peak = p.Balance
			continue
		}
		if !p.Balance.LessThan(peak) {
			continue
		}
		current := peak.Sub(p.Balance)
		if current.GreaterThan(dd.Absolute) {
			dd.Absolute = current
			dd.Peak = peak
			dd.Trough = p.Balance
			dd.Percent = percentOf(current, peak)
		}
	}
	return dd
}

// MaxRunUp mirrors MaxDrawdown. The pending run-up is re-evaluated on every
// rise, closed out on every new low and flushed at the end.
func MaxRunUp(c Curve, initialCapital decimal.Decimal) RunUp {
	var ru RunUp
	ru.Absolute = decimal.Zero
	if len(c) == 0 {
		return ru
	}

	consider := func(trough, peak decimal.Decimal) {
		current := peak.Sub(trough)
		if !current.GreaterThan(ru.Absolute) {
			return
		}
		ru.Absolute = current
		ru.Trough = trough
		ru.Peak = peak
		ru.Percent = runUpPercent(current, trough, initialCapital)
	}

	trough := c[0].Balance
	peakSinceTrough := trough
	for _, p := range c[1:] {
		switch {
		case p.Balance.LessThan(trough):
			consider(trough, peakSinceTrough)
			trough = p.Balance
			peakSinceTrough = p.Balance
		case p.Balance.GreaterThan(peakSinceTrough):
			peakSinceTrough = p.Balance
			consider(trough, peakSinceTrough)
		}
	}
	consider(trough, peakSinceTrough)
	return ru
}

// runUpPercent divides by the trough; a negative trough counts by its
// magnitude and a zero trough falls back to the initial capital.
func runUpPercent(amount, trough, initialCapital decimal.Decimal) float64 {
	base := trough.Abs()
	if trough.IsZero() {
		base = initialCapital
	}
	return percentOf(amount, base)
}

// percentOf returns part/whole*100, or 0 when whole is not positive.
func percentOf(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}
