package services

import (
	"context"
	"errors"
	"fmt"

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

// settlementService exchanges wallet funds for token inventory.
type settlementService struct {
	db    *gorm.DB
	locks *locking.Manager
	bus   events.Publisher
	log   *zap.SugaredLogger
}

// NewSettlementService creates a new SettlementServicer.
func NewSettlementService(db *gorm.DB, locks *locking.Manager, bus events.Publisher) SettlementServicer {
	return &settlementService{db: db, locks: locks, bus: bus, log: logger.Named("settlement")}
}

// inventory is the locked row an investment draws from, whichever table it
// lives in.
type inventory struct {
	token    *models.PropertyToken
	property *models.Property
}

func (i inventory) available() decimal.Decimal {
	if i.token != nil {
		return i.token.AvailableTokens
	}
	return i.property.AvailableTokens
}

func (i inventory) price() decimal.Decimal {
	if i.token != nil {
		return i.token.PricePerTokenUSDT
	}
	return i.property.PricePerTokenUSDT
}

func (i inventory) roi() decimal.Decimal {
	if i.token != nil {
		return i.token.ExpectedROI
	}
	return i.property.ExpectedROI
}

func (i inventory) active() bool {
	if i.token != nil {
		return i.token.IsActive
	}
	return i.property.IsActive
}

func (i inventory) propertyID() string {
	if i.token != nil {
		return i.token.PropertyID
	}
	return i.property.ID
}

func (i inventory) tokenID() *string {
	if i.token == nil {
		return nil
	}
	id := i.token.ID
	return &id
}

// debit writes the reduced availability back to the locked row.
func (i inventory) debit(tx *gorm.DB, tokens decimal.Decimal) error {
	remaining := i.available().Sub(tokens)
	if i.token != nil {
		i.token.AvailableTokens = remaining
		return tx.Model(i.token).Update("available_tokens", remaining).Error
	}
	i.property.AvailableTokens = remaining
	return tx.Model(i.property).Update("available_tokens", remaining).Error
}

// lockInventory resolves ref to a canonical key and locks the row.
func (s *settlementService) lockInventory(tx *gorm.DB, ref InventoryRef) (inventory, error) {
	if ref.Token != "" {
		id, err := ledger.PropertyTokens.Resolve(tx, ref.Token)
		if err != nil {
			return inventory{}, err
		}
		set, err := s.locks.Acquire(tx, locking.PropertyToken(id))
		if err != nil {
			return inventory{}, err
		}
		return inventory{token: set.PropertyToken(id)}, nil
	}
	if ref.Property != "" {
		id, err := ledger.Properties.Resolve(tx, ref.Property)
		if err != nil {
			return inventory{}, err
		}
		set, err := s.locks.Acquire(tx, locking.Property(id))
		if err != nil {
			return inventory{}, err
		}
		return inventory{property: set.Property(id)}, nil
	}
	return inventory{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "A property token or property reference is required")
}

// settlement collects what the unit of work produced for the event.
type settlement struct {
	investment     *models.Investment
	transaction    *models.Transaction
	organizationID string
}

// Invest buys tokens from a token tier (or a legacy property) for the user.
// All checks run under the inventory and wallet locks and any failure rolls
// the whole unit of work back. investment.completed is published only after
// commit.
func (s *settlementService) Invest(ctx context.Context, userID string, ref InventoryRef, tokens decimal.Decimal) (*models.Investment, error) {
	if err := ledger.ValidTokenQuantity(tokens); err != nil {
		return nil, err
	}

	var out settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.lockInventory(tx, ref)
		if err != nil {
			return err
		}
		if !inv.active() {
			return apperrors.WithMessage(apperrors.ErrInvalidState, "This offering is not active")
		}
		if inv.available().LessThan(tokens) {
			return apperrors.WithMessage(apperrors.ErrInsufficientInventory,
				fmt.Sprintf("Only %s tokens are available", inv.available().String()))
		}

		price := inv.price()
		amount := ledger.Cost(tokens, price)

		set, err := s.locks.Acquire(tx, locking.Wallet(userID))
		if err != nil {
			return err
		}
		wallet := set.Wallet(userID)
		if wallet.BalanceUSDT.LessThan(amount) {
			return apperrors.ErrInsufficientFunds
		}

		wallet.BalanceUSDT = wallet.BalanceUSDT.Sub(amount)
		if err := tx.Model(wallet).Update("balance_usdt", wallet.BalanceUSDT).Error; err != nil {
			return err
		}
		if err := inv.debit(tx, tokens); err != nil {
			return err
		}

		invCode, err := ledger.NextDisplayCode(tx, ledger.KindInvestment)
		if err != nil {
			return err
		}
		txnCode, err := ledger.NextDisplayCode(tx, ledger.KindTransaction)
		if err != nil {
			return err
		}

		investment := &models.Investment{
			DisplayCode:       invCode,
			UserID:            userID,
			PropertyID:        inv.propertyID(),
			PropertyTokenID:   inv.tokenID(),
			TokensPurchased:   tokens,
			PricePerTokenUSDT: price,
			AmountUSDT:        amount,
			ExpectedROI:       inv.roi(),
			Status:            models.InvestmentStatusConfirmed,
			PaymentStatus:     models.PaymentStatusCompleted,
		}
		if err := tx.Create(investment).Error; err != nil {
			return err
		}

		transaction := &models.Transaction{
			DisplayCode:     txnCode,
			UserID:          userID,
			WalletID:        wallet.ID,
			PropertyID:      investment.PropertyID,
			PropertyTokenID: investment.PropertyTokenID,
			InvestmentID:    &investment.ID,
			Type:            models.TransactionTypeInvestment,
			AmountUSDT:      amount,
			Status:          models.TransactionStatusCompleted,
			Description:     fmt.Sprintf("Purchase of %s tokens (%s)", tokens.String(), invCode),
		}
		if err := tx.Create(transaction).Error; err != nil {
			return err
		}

		var property models.Property
		if err := tx.Select("organization_id").Where("id = ?", investment.PropertyID).First(&property).Error; err != nil {
			return err
		}

		out = settlement{investment: investment, transaction: transaction, organizationID: property.OrganizationID}
		return nil
	})
	if err != nil {
		err = settlementError(err)
		s.log.Warnw("Settlement rejected", "user_id", userID, "token_ref", ref.Token, "property_ref", ref.Property,
			"tokens", tokens.String(), "error", err)
		return nil, err
	}

	s.log.Infow("Settlement committed", "user_id", userID, "investment", out.investment.DisplayCode,
		"transaction", out.transaction.DisplayCode, "tokens", tokens.String(), "amount_usdt", out.investment.AmountUSDT.String())

	s.publishCompleted(ctx, out)
	return out.investment, nil
}

func (s *settlementService) publishCompleted(ctx context.Context, out settlement) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Publishing investment.completed failed", "investment_id", out.investment.ID, "panic", r)
		}
	}()
	inv := out.investment
	s.bus.Publish(ctx, events.InvestmentCompleted{
		Envelope:          events.NewEnvelope(events.TopicInvestmentCompleted),
		UserID:            inv.UserID,
		PropertyID:        inv.PropertyID,
		PropertyTokenID:   inv.PropertyTokenID,
		OrganizationID:    out.organizationID,
		TokensPurchased:   inv.TokensPurchased,
		PricePerTokenUSDT: inv.PricePerTokenUSDT,
		AmountUSDT:        inv.AmountUSDT,
		ExpectedROI:       inv.ExpectedROI,
		InvestmentID:      inv.ID,
		TransactionID:     out.transaction.ID,
		InvestmentCode:    inv.DisplayCode,
		TransactionCode:   out.transaction.DisplayCode,
	})
}

// InvestByAmount converts a USDT amount to tokens at the property's current
// price and settles it as a legacy property investment.
func (s *settlementService) InvestByAmount(ctx context.Context, userID, propertyRef string, amountUSDT decimal.Decimal) (*models.Investment, error) {
	db := s.db.WithContext(ctx)
	id, err := ledger.Properties.Resolve(db, propertyRef)
	if err != nil {
		return nil, err
	}

	var property models.Property
	if err := db.Where("id = ?", id).First(&property).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPropertyNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	tokens, err := ledger.TokensForAmount(amountUSDT, property.PricePerTokenUSDT)
	if err != nil {
		return nil, err
	}
	return s.Invest(ctx, userID, InventoryRef{Property: id}, tokens)
}

// settlementError keeps typed rejections and lock timeouts, and reports
// anything else as a failed settlement.
func settlementError(err error) error {
	if locking.IsLockTimeout(err) {
		return locking.Classify(err)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != apperrors.ErrInternalServer.Code {
		return appErr
	}
	return apperrors.Wrap(apperrors.ErrSettlementFailed, err)
}
