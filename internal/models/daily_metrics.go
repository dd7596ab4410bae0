package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyAccountMetrics is the persisted MLL state of one account on one trade day.
// There is at most one row per (account, date).
type DailyAccountMetrics struct {
	ID               uint            `gorm:"primaryKey" json:"-"`
	AccountID        uint            `gorm:"not null;uniqueIndex:idx_daily_account_date" json:"account_id"`
	Date             time.Time       `gorm:"type:date;not null;uniqueIndex:idx_daily_account_date" json:"date"`
	Balance          decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance"`
	BalanceHigh      decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_high"`
	MaximumLossLimit decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"maximum_loss_limit"`
	MLLIsLocked      bool            `gorm:"column:mll_is_locked;not null;default:false" json:"mll_is_locked"`
	CreatedAt        time.Time       `json:"-"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName pins the table name.
func (DailyAccountMetrics) TableName() string {
	return "daily_account_metrics"
}
