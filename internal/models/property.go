package models

import "github.com/shopspring/decimal"

// Property is a tokenized real-estate asset. Properties created before token
// tiers existed are sold directly from their own inventory.
type Property struct {
	Base
	DisplayCode       string          `gorm:"uniqueIndex;not null" json:"display_code"`
	OrganizationID    string          `gorm:"type:uuid;index" json:"organization_id"`
	Name              string          `gorm:"not null" json:"name"`
	PricePerTokenUSDT decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"price_per_token_usdt"`
	TotalTokens       decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"total_tokens"`
	AvailableTokens   decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"available_tokens"`
	ExpectedROI       decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"expected_roi"`
	IsActive          bool            `gorm:"default:true" json:"is_active"`

	Tokens []PropertyToken `gorm:"foreignKey:PropertyID" json:"tokens,omitempty"`
}

// PropertyToken is a priced, inventory-bounded tier of a property.
// TotalTokens - AvailableTokens is the quantity already sold.
type PropertyToken struct {
	Base
	DisplayCode       string          `gorm:"uniqueIndex;not null" json:"display_code"`
	PropertyID        string          `gorm:"type:uuid;not null;index" json:"property_id"`
	Name              string          `json:"name"`
	PricePerTokenUSDT decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"price_per_token_usdt"`
	TotalTokens       decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"total_tokens"`
	AvailableTokens   decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"available_tokens"`
	ExpectedROI       decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"expected_roi"`
	IsActive          bool            `gorm:"default:true" json:"is_active"`

	Property *Property `gorm:"foreignKey:PropertyID" json:"property,omitempty"`
}

// SoldTokens returns how many tokens of the tier have been sold.
func (t *PropertyToken) SoldTokens() decimal.Decimal {
	return t.TotalTokens.Sub(t.AvailableTokens)
}

// Resize changes the tier's supply while conserving the sold quantity.
// Available inventory never drops below zero.
func (t *PropertyToken) Resize(newTotal decimal.Decimal) {
	sold := t.SoldTokens()
	t.TotalTokens = newTotal
	t.AvailableTokens = decimal.Max(newTotal.Sub(sold), decimal.Zero)
}
