package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GoalType selects the metric a goal is measured with.
type GoalType string

const (
	GoalPnLTotal          GoalType = "pnl_total"
	GoalWinRate           GoalType = "win_rate"
	GoalTradeCount        GoalType = "trade_count"
	GoalProfitFactor      GoalType = "profit_factor"
	GoalMaxDrawdown       GoalType = "max_drawdown"
	GoalStrategyRespected GoalType = "strategy_respected"
	GoalProfitableDays    GoalType = "profitable_days"
)

// GoalDirection says whether the target is a floor or a ceiling.
type GoalDirection string

const (
	DirectionMinimum GoalDirection = "minimum"
	DirectionMaximum GoalDirection = "maximum"
)

// GoalStatus is the evaluated state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalAchieved  GoalStatus = "achieved"
	GoalFailed    GoalStatus = "failed"
	GoalCancelled GoalStatus = "cancelled"
)

// Goal is a trader objective over a period, optionally scoped to one account.
type Goal struct {
	gorm.Model
	Name             string              `json:"name"`
	Type             GoalType            `gorm:"size:32;not null" json:"type"`
	Direction        GoalDirection       `gorm:"size:16;not null;default:minimum" json:"direction"`
	ThresholdTarget  decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"threshold_target"`
	ThresholdWarning decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"threshold_warning"`
	PeriodStart      time.Time           `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd        time.Time           `gorm:"type:date;not null" json:"period_end"`
	AccountID        *uint               `gorm:"index" json:"account_id,omitempty"`
	CurrentValue     decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"current_value"`
	Status           GoalStatus          `gorm:"size:16;not null;default:active;index" json:"status"`
}
