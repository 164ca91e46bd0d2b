package models

import "github.com/shopspring/decimal"

// TransactionType represents the type of ledger entry.
type TransactionType string

const (
	TransactionTypeInvestment TransactionType = "investment"
	TransactionTypeReward     TransactionType = "reward"
)

// TransactionStatus represents the state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is an immutable wallet ledger entry. Investment entries are
// paired 1:1 with an Investment; reward entries with a Reward.
type Transaction struct {
	Base
	DisplayCode     string            `gorm:"uniqueIndex;not null" json:"display_code"`
	UserID          string            `gorm:"type:uuid;not null;index" json:"user_id"`
	WalletID        string            `gorm:"type:uuid;not null;index" json:"wallet_id"`
	PropertyID      string            `gorm:"type:uuid;index" json:"property_id"`
	PropertyTokenID *string           `gorm:"type:uuid" json:"property_token_id,omitempty"`
	InvestmentID    *string           `gorm:"type:uuid;uniqueIndex" json:"investment_id,omitempty"`
	RewardID        *string           `gorm:"type:uuid;uniqueIndex" json:"reward_id,omitempty"`
	Type            TransactionType   `gorm:"not null" json:"type"`
	AmountUSDT      decimal.Decimal   `gorm:"type:numeric(36,18);not null" json:"amount_usdt"`
	Status          TransactionStatus `gorm:"not null" json:"status"`
	Description     string            `json:"description"`
}
