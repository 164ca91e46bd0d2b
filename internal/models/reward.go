package models

import "github.com/shopspring/decimal"

// Reward is a payout credited to an investor's wallet for a holding.
type Reward struct {
	Base
	DisplayCode  string          `gorm:"uniqueIndex;not null" json:"display_code"`
	UserID       string          `gorm:"type:uuid;not null;index" json:"user_id"`
	InvestmentID string          `gorm:"type:uuid;not null;index" json:"investment_id"`
	PropertyID   string          `gorm:"type:uuid;not null" json:"property_id"`
	AmountUSDT   decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"amount_usdt"`
	Note         string          `json:"note,omitempty"`
}
