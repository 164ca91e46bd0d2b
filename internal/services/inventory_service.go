package services

import (
	"context"
	"strings"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/events"
	"estatetoken/internal/ledger"
	"estatetoken/internal/locking"
	"estatetoken/internal/logger"
	"estatetoken/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// inventoryService administers properties and token tiers. Every change to an
// existing tier happens under the tier's row lock.
type inventoryService struct {
	db    *gorm.DB
	locks *locking.Manager
	bus   events.Publisher
	log   *zap.SugaredLogger
}

// NewInventoryService creates a new InventoryServicer.
func NewInventoryService(db *gorm.DB, locks *locking.Manager, bus events.Publisher) InventoryServicer {
	return &inventoryService{db: db, locks: locks, bus: bus, log: logger.Named("inventory")}
}

func validateOffering(name string, price, total, roi decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Name is required")
	}
	if !price.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Price per token must be greater than zero")
	}
	if err := ledger.ValidTokenQuantity(total); err != nil {
		return err
	}
	if roi.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Expected ROI cannot be negative")
	}
	return nil
}

// CreateProperty creates a legacy-sellable property with a PROP- display code.
func (s *inventoryService) CreateProperty(ctx context.Context, in CreatePropertyInput) (*models.Property, error) {
	if err := validateOffering(in.Name, in.PricePerTokenUSDT, in.TotalTokens, in.ExpectedROI); err != nil {
		return nil, err
	}

	property := &models.Property{
		OrganizationID:    in.OrganizationID,
		Name:              strings.TrimSpace(in.Name),
		PricePerTokenUSDT: in.PricePerTokenUSDT,
		TotalTokens:       in.TotalTokens,
		AvailableTokens:   in.TotalTokens,
		ExpectedROI:       in.ExpectedROI,
		IsActive:          true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := ledger.NextDisplayCode(tx, ledger.KindProperty)
		if err != nil {
			return err
		}
		property.DisplayCode = code
		return tx.Create(property).Error
	})
	if err != nil {
		return nil, locking.Classify(err)
	}
	s.log.Infow("Property created", "property", property.DisplayCode, "total_tokens", property.TotalTokens.String())
	return property, nil
}

// CreatePropertyToken adds a token tier to a property. The symbol becomes the
// tier's display code and must be globally unique.
func (s *inventoryService) CreatePropertyToken(ctx context.Context, propertyRef string, in CreatePropertyTokenInput) (*models.PropertyToken, error) {
	symbol := ledger.NormalizeDisplayCode(in.Symbol)
	if symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Token symbol is required")
	}
	name := in.Name
	if strings.TrimSpace(name) == "" {
		name = symbol
	}
	if err := validateOffering(name, in.PricePerTokenUSDT, in.TotalTokens, in.ExpectedROI); err != nil {
		return nil, err
	}

	var token *models.PropertyToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		propertyID, err := ledger.Properties.Resolve(tx, propertyRef)
		if err != nil {
			return err
		}

		var taken int64
		if err := tx.Model(&models.PropertyToken{}).Where("display_code = ?", symbol).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return apperrors.WithMessage(apperrors.ErrDuplicateDisplayCode, "Token symbol "+symbol+" is already in use")
		}

		token = &models.PropertyToken{
			DisplayCode:       symbol,
			PropertyID:        propertyID,
			Name:              strings.TrimSpace(name),
			PricePerTokenUSDT: in.PricePerTokenUSDT,
			TotalTokens:       in.TotalTokens,
			AvailableTokens:   in.TotalTokens,
			ExpectedROI:       in.ExpectedROI,
			IsActive:          true,
		}
		return tx.Create(token).Error
	})
	if err != nil {
		return nil, locking.Classify(err)
	}
	s.log.Infow("Property token created", "symbol", token.DisplayCode, "property_id", token.PropertyID)
	return token, nil
}

// updateTier resolves and locks a tier, then lets fn mutate and persist it.
func (s *inventoryService) updateTier(ctx context.Context, tokenRef string, fn func(tx *gorm.DB, token *models.PropertyToken) error) (*models.PropertyToken, error) {
	var token *models.PropertyToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := ledger.PropertyTokens.Resolve(tx, tokenRef)
		if err != nil {
			return err
		}
		set, err := s.locks.Acquire(tx, locking.PropertyToken(id))
		if err != nil {
			return err
		}
		token = set.PropertyToken(id)
		return fn(tx, token)
	})
	if err != nil {
		return nil, locking.Classify(err)
	}
	return token, nil
}

// ResizeTokenTier changes a tier's total supply. Tokens already sold are
// conserved; availability is clamped at zero.
func (s *inventoryService) ResizeTokenTier(ctx context.Context, tokenRef string, newTotal decimal.Decimal) (*models.PropertyToken, error) {
	if err := ledger.ValidTokenSupply(newTotal); err != nil {
		return nil, err
	}
	token, err := s.updateTier(ctx, tokenRef, func(tx *gorm.DB, token *models.PropertyToken) error {
		token.Resize(newTotal)
		return tx.Model(token).Updates(map[string]interface{}{
			"total_tokens":     token.TotalTokens,
			"available_tokens": token.AvailableTokens,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("Property token resized", "symbol", token.DisplayCode,
		"total_tokens", token.TotalTokens.String(), "available_tokens", token.AvailableTokens.String())
	return token, nil
}

// UpdateTokenPrice reprices a tier and, after commit, publishes
// token.price.updated so holders are revalued.
func (s *inventoryService) UpdateTokenPrice(ctx context.Context, tokenRef string, newPrice decimal.Decimal) (*models.PropertyToken, error) {
	if !newPrice.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price per token must be greater than zero")
	}
	var oldPrice decimal.Decimal
	token, err := s.updateTier(ctx, tokenRef, func(tx *gorm.DB, token *models.PropertyToken) error {
		oldPrice = token.PricePerTokenUSDT
		token.PricePerTokenUSDT = newPrice
		return tx.Model(token).Update("price_per_token_usdt", newPrice).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("Property token repriced", "symbol", token.DisplayCode,
		"old_price", oldPrice.String(), "new_price", newPrice.String())
	if !oldPrice.Equal(newPrice) {
		s.bus.Publish(ctx, events.TokenPriceUpdated{
			Envelope:        events.NewEnvelope(events.TopicTokenPriceUpdated),
			PropertyTokenID: token.ID,
			PropertyID:      token.PropertyID,
			OldPrice:        oldPrice,
			NewPrice:        newPrice,
		})
	}
	return token, nil
}

// SetTokenActive opens or closes a tier for new investments.
func (s *inventoryService) SetTokenActive(ctx context.Context, tokenRef string, active bool) (*models.PropertyToken, error) {
	return s.updateTier(ctx, tokenRef, func(tx *gorm.DB, token *models.PropertyToken) error {
		token.IsActive = active
		return tx.Model(token).Update("is_active", active).Error
	})
}
