package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Trade is a closed trade as supplied by the ledger. Analytics never mutates it.
type Trade struct {
	gorm.Model
	AccountID   uint            `gorm:"not null;index:idx_trades_account_day" json:"account_id"`
	Symbol      string          `json:"symbol"`
	EnteredAt   time.Time       `gorm:"not null;index" json:"entered_at"`
	TradeDay    time.Time       `gorm:"type:date;not null;index:idx_trades_account_day" json:"trade_day"`
	GrossPnL    decimal.Decimal `gorm:"column:gross_pnl;type:decimal(20,8);not null;default:0" json:"gross_pnl"`
	Fees        decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"fees"`
	Commissions decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"commissions"`
	NetPnL      decimal.Decimal `gorm:"column:net_pnl;type:decimal(20,8);not null" json:"net_pnl"`
	// StrategyRespected is nil when the trader did not record it.
	StrategyRespected *bool `json:"strategy_respected,omitempty"`
}

// BeforeSave derives the net PnL from its components when it was not given
// and normalizes the trade day.
func (t *Trade) BeforeSave(tx *gorm.DB) error {
	if t.NetPnL.IsZero() {
		t.NetPnL = t.GrossPnL.Sub(t.Fees).Sub(t.Commissions)
	}
	if t.TradeDay.IsZero() {
		t.TradeDay = t.EnteredAt
	}
	t.TradeDay = Day(t.TradeDay)
	return nil
}
