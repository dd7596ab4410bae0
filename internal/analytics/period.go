package analytics

import (
	"time"

	"trade-analytics-go/internal/models"
)

// Range is an inclusive span of trade days. A zero bound is open.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewRange normalizes both bounds to calendar days.
func NewRange(from, to time.Time) Range {
	r := Range{}
	if !from.IsZero() {
		r.From = models.Day(from)
	}
	if !to.IsZero() {
		r.To = models.Day(to)
	}
	return r
}

// IsOpen reports whether the range has no bounds at all.
func (r Range) IsOpen() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether day falls within the range.
func (r Range) Contains(day time.Time) bool {
	day = models.Day(day)
	if !r.From.IsZero() && day.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && day.After(r.To) {
		return false
	}
	return true
}

// Filter returns the trades whose trade day falls within the range,
// preserving order.
func (r Range) Filter(trades []models.Trade) []models.Trade {
	if r.IsOpen() {
		return trades
	}
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if r.Contains(t.TradeDay) {
			out = append(out, t)
		}
	}
	return out
}
