package models

import "github.com/shopspring/decimal"

// InvestmentStatus is the lifecycle state of an investment.
type InvestmentStatus string

const (
	InvestmentStatusPending   InvestmentStatus = "pending"
	InvestmentStatusConfirmed InvestmentStatus = "confirmed"
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusSold      InvestmentStatus = "sold"
)

// PaymentStatus tracks the funding side of an investment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// HoldingStatuses are the statuses that count towards a user's position.
var HoldingStatuses = []InvestmentStatus{InvestmentStatusConfirmed, InvestmentStatusActive}

// Investment is the immutable record of one purchase. Price, amount and ROI
// are frozen at settlement time.
type Investment struct {
	Base
	DisplayCode       string           `gorm:"uniqueIndex;not null" json:"display_code"`
	UserID            string           `gorm:"type:uuid;not null;index" json:"user_id"`
	PropertyID        string           `gorm:"type:uuid;not null;index" json:"property_id"`
	PropertyTokenID   *string          `gorm:"type:uuid;index" json:"property_token_id,omitempty"`
	TokensPurchased   decimal.Decimal  `gorm:"type:numeric(36,18);not null" json:"tokens_purchased"`
	PricePerTokenUSDT decimal.Decimal  `gorm:"type:numeric(36,18);not null" json:"price_per_token_usdt"`
	AmountUSDT        decimal.Decimal  `gorm:"type:numeric(36,18);not null" json:"amount_usdt"`
	ExpectedROI       decimal.Decimal  `gorm:"type:numeric(36,18);not null;default:0" json:"expected_roi"`
	Status            InvestmentStatus `gorm:"not null;index" json:"status"`
	PaymentStatus     PaymentStatus    `gorm:"not null" json:"payment_status"`

	Property      *Property      `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
	PropertyToken *PropertyToken `gorm:"foreignKey:PropertyTokenID" json:"property_token,omitempty"`
}

// IsLegacy reports whether the investment was bought directly from a property.
func (i *Investment) IsLegacy() bool {
	return i.PropertyTokenID == nil
}
