package models

import (
	"time"

	"estatetoken/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PortfolioSummary holds running per-user totals maintained incrementally by
// settlement-adjacent events.
type PortfolioSummary struct {
	UserID            string          `gorm:"type:uuid;primaryKey" json:"user_id"`
	TotalInvestedUSDT decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"total_invested_usdt"`
	TotalRewardsUSDT  decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"total_rewards_usdt"`
	TotalROIUSDT      decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"total_roi_usdt"`
	ActiveInvestments int64           `gorm:"not null;default:0" json:"active_investments"`
	LastUpdated       time.Time       `json:"last_updated"`
}

// ChangeType tags what triggered a portfolio snapshot.
type ChangeType string

const (
	ChangeTypeInvestment      ChangeType = "investment"
	ChangeTypeReward          ChangeType = "reward"
	ChangeTypePriceUpdate     ChangeType = "price_update"
	ChangeTypeMarketplaceBuy  ChangeType = "marketplace_buy"
	ChangeTypeMarketplaceSell ChangeType = "marketplace_sell"
	ChangeTypeSnapshot        ChangeType = "snapshot"
)

// PortfolioHistory is an append-only point-in-time valuation of a user's
// position. No Base embed: rows are never updated.
type PortfolioHistory struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string          `gorm:"type:uuid;not null;index:idx_portfolio_history_user_time,priority:1" json:"user_id"`
	TotalValue    decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"total_value"`
	TotalInvested decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"total_invested"`
	RecordedAt    time.Time       `gorm:"not null;index:idx_portfolio_history_user_time,priority:2;index" json:"recorded_at"`
	ChangeType    ChangeType      `gorm:"not null" json:"change_type"`
	ReferenceID   string          `json:"reference_id,omitempty"`
}

// TableName keeps the singular table name used by the schema.
func (PortfolioHistory) TableName() string { return "portfolio_history" }

// BeforeCreate hook generates a UUIDv7 for new records
func (p *PortfolioHistory) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}

// PortfolioDailyCandle is the OHLC compaction of one user's snapshots for one
// UTC day. It carries no timestamps so re-aggregation reproduces it exactly.
type PortfolioDailyCandle struct {
	BucketDay     string          `gorm:"type:varchar(10);primaryKey" json:"date"`
	UserID        string          `gorm:"type:uuid;primaryKey" json:"user_id"`
	OpenValue     decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"open_value"`
	HighValue     decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"high_value"`
	LowValue      decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"low_value"`
	CloseValue    decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"close_value"`
	TotalInvested decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"total_invested"`
	SnapshotCount int64           `gorm:"not null" json:"snapshot_count"`
}
