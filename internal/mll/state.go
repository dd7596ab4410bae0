package mll

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-analytics-go/internal/models"
)

var (
	// ErrMLLDisabled is returned for accounts that do not track a loss limit.
	ErrMLLDisabled = errors.New("mll is disabled for this account")
	// ErrMLLNotConfigured is returned when MLL is enabled but mll_initial is missing.
	ErrMLLNotConfigured = errors.New("mll is enabled but mll_initial is not configured")
	// ErrStaleState is returned when a day is computed without its stored predecessor.
	ErrStaleState = errors.New("predecessor day has not been computed")
	// ErrNotTradeDay is returned when computing a day the account did not trade.
	ErrNotTradeDay = errors.New("account has no trades on this day")
)

// LockState is the one-way gate of the loss limit.
type LockState int

const (
	Unlocked LockState = iota
	Locked
)

func (s LockState) String() string {
	if s == Locked {
		return "locked"
	}
	return "unlocked"
}

// MarshalText renders the state by name.
func (s LockState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// IsLocked reports whether the gate is closed.
func (s LockState) IsLocked() bool { return s == Locked }

// Lock is the only transition: any state goes to Locked.
func (s LockState) Lock() LockState { return Locked }

// Rules is the MLL configuration of one account.
type Rules struct {
	InitialCapital decimal.Decimal
	MLLInitial     decimal.Decimal
}

// RulesFor extracts the MLL rules of an account.
func RulesFor(account models.Account) (Rules, error) {
	if !account.MLLEnabled {
		return Rules{}, ErrMLLDisabled
	}
	if !account.MLLInitial.Valid {
		return Rules{}, ErrMLLNotConfigured
	}
	return Rules{
		InitialCapital: account.InitialCapital,
		MLLInitial:     account.MLLInitial.Decimal,
	}, nil
}

// DayState is the loss-limit state of an account at the close of one day.
type DayState struct {
	Date             time.Time       `json:"date"`
	Balance          decimal.Decimal `json:"balance"`
	BalanceHigh      decimal.Decimal `json:"balance_high"`
	MaximumLossLimit decimal.Decimal `json:"maximum_loss_limit"`
	Lock             LockState       `json:"lock"`
}

// Step computes the state of day from the previous day's state (nil on the
// first tracked day) and the cumulative net PnL of every trade up to and
// including day.
func Step(r Rules, prev *DayState, day time.Time, cumulativePnL decimal.Decimal) DayState {
	initial := r.InitialCapital
	balance := initial.Add(cumulativePnL)

	high := initial
	lock := Unlocked
	if prev != nil {
		high = prev.BalanceHigh
		lock = prev.Lock
	}
	high = decimal.Max(high, balance, initial)

	next := DayState{
		Date:        models.Day(day),
		Balance:     balance,
		BalanceHigh: high,
		Lock:        lock,
	}

	if lock.IsLocked() {
		next.MaximumLossLimit = initial
		return next
	}

	next.MaximumLossLimit = high.Sub(r.MLLInitial)
	if high.Equal(initial) && balance.LessThanOrEqual(initial) {
		next.Lock = lock.Lock()
		next.MaximumLossLimit = initial
	}
	return next
}

// DayPnL is the cumulative net PnL of an account at the close of a trade day.
type DayPnL struct {
	Day        time.Time
	Cumulative decimal.Decimal
}

// CumulativeByDay returns, for each distinct trade day in ascending order,
// the sum of net PnL of all trades up to and including that day.
func CumulativeByDay(trades []models.Trade) []DayPnL {
	daily := make(map[time.Time]decimal.Decimal)
	for _, t := range trades {
		day := models.Day(t.TradeDay)
		sum, ok := daily[day]
		if !ok {
			sum = decimal.Zero
		}
		daily[day] = sum.Add(t.NetPnL)
	}

	out := make([]DayPnL, 0, len(daily))
	for day, sum := range daily {
		out = append(out, DayPnL{Day: day, Cumulative: sum})
	}
	sortDayPnL(out)

	running := decimal.Zero
	for i := range out {
		running = running.Add(out[i].Cumulative)
		out[i].Cumulative = running
	}
	return out
}

func sortDayPnL(days []DayPnL) {
	sort.Slice(days, func(i, j int) bool { return days[i].Day.Before(days[j].Day) })
}

// Replay applies Step over days in order, starting from prev.
func Replay(r Rules, prev *DayState, days []DayPnL) []DayState {
	states := make([]DayState, 0, len(days))
	for _, d := range days {
		next := Step(r, prev, d.Day, d.Cumulative)
		states = append(states, next)
		prev = &states[len(states)-1]
	}
	return states
}

// Row converts the state into its persisted form.
func (s DayState) Row(accountID uint) models.DailyAccountMetrics {
	return models.DailyAccountMetrics{
		AccountID:        accountID,
		Date:             s.Date,
		Balance:          s.Balance,
		BalanceHigh:      s.BalanceHigh,
		MaximumLossLimit: s.MaximumLossLimit,
		MLLIsLocked:      s.Lock.IsLocked(),
	}
}

// FromRow restores a state from its persisted form.
func FromRow(row models.DailyAccountMetrics) DayState {
	lock := Unlocked
	if row.MLLIsLocked {
		lock = lock.Lock()
	}
	return DayState{
		Date:             models.Day(row.Date),
		Balance:          row.Balance,
		BalanceHigh:      row.BalanceHigh,
		MaximumLossLimit: row.MaximumLossLimit,
		Lock:             lock,
	}
}
