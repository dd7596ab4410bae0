package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is a trading account: the baseline of every equity curve and the
// owner of the MLL configuration.
type Account struct {
	gorm.Model
	Name           string          `gorm:"not null" json:"name"`
	Currency       string          `gorm:"size:3;default:USD" json:"currency"`
	InitialCapital decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"initial_capital"`
	MLLEnabled     bool            `gorm:"default:false" json:"mll_enabled"`
	// MLLInitial is the distance kept between the balance high-watermark and
	// the loss limit. Null means not configured.
	MLLInitial decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"mll_initial"`
}
