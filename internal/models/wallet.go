package models

import "github.com/shopspring/decimal"

// Wallet holds a user's spendable USDT balance. It is mutated only while its
// row is locked inside a unit of work.
type Wallet struct {
	Base
	UserID      string          `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	BalanceUSDT decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"balance_usdt"`
	Currency    string          `gorm:"not null;default:'USDT'" json:"currency"`
}
