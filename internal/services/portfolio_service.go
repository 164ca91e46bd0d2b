package services

import (
	"context"
	"errors"
	"time"

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

// Subscriber names registered on the event bus.
const (
	SubscriberPortfolioSummary  = "portfolio.summary"
	SubscriberPortfolioSnapshot = "portfolio.snapshot"
)

// portfolioService keeps per-user summaries and the snapshot history current
// as settlement-adjacent events arrive.
type portfolioService struct {
	db    *gorm.DB
	locks *locking.Manager
	log   *zap.SugaredLogger
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB, locks *locking.Manager) PortfolioServicer {
	return &portfolioService{db: db, locks: locks, log: logger.Named("portfolio")}
}

// Register subscribes the summary and snapshot handlers. They are separate
// subscribers so a failing summary update never suppresses the snapshot.
func (s *portfolioService) Register(bus events.Subscriber) {
	bus.Subscribe(events.TopicInvestmentCompleted, SubscriberPortfolioSummary, events.On(s.onInvestmentSummary))
	bus.Subscribe(events.TopicInvestmentCompleted, SubscriberPortfolioSnapshot, events.On(s.onInvestmentSnapshot))
	bus.Subscribe(events.TopicRewardDistributed, SubscriberPortfolioSummary, events.On(s.onRewardSummary))
	bus.Subscribe(events.TopicRewardDistributed, SubscriberPortfolioSnapshot, events.On(s.onRewardSnapshot))
	bus.Subscribe(events.TopicMarketplaceTradeCompleted, SubscriberPortfolioSummary, events.On(s.onTradeSummary))
	bus.Subscribe(events.TopicMarketplaceTradeCompleted, SubscriberPortfolioSnapshot, events.On(s.onTradeSnapshot))
	bus.Subscribe(events.TopicTokenPriceUpdated, SubscriberPortfolioSnapshot, events.On(s.onPriceSnapshot))
}

// adjustSummary applies fn to the user's summary row under its lock.
func (s *portfolioService) adjustSummary(ctx context.Context, userID string, fn func(tx *gorm.DB, sum *models.PortfolioSummary) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		set, err := s.locks.Acquire(tx, locking.Summary(userID))
		if err != nil {
			return err
		}
		sum := set.Summary(userID)
		if err := fn(tx, sum); err != nil {
			return err
		}
		sum.LastUpdated = time.Now().UTC()
		return tx.Save(sum).Error
	})
}

func (s *portfolioService) onInvestmentSummary(ctx context.Context, e events.InvestmentCompleted) error {
	return s.adjustSummary(ctx, e.UserID, func(_ *gorm.DB, sum *models.PortfolioSummary) error {
		sum.TotalInvestedUSDT = sum.TotalInvestedUSDT.Add(e.AmountUSDT)
		sum.TotalROIUSDT = sum.TotalROIUSDT.Add(ledger.PercentOf(e.AmountUSDT, e.ExpectedROI))
		sum.ActiveInvestments++
		return nil
	})
}

func (s *portfolioService) onInvestmentSnapshot(ctx context.Context, e events.InvestmentCompleted) error {
	_, err := s.RecordSnapshot(ctx, e.UserID, models.ChangeTypeInvestment, e.InvestmentID, e.Timestamp)
	return err
}

func (s *portfolioService) onRewardSummary(ctx context.Context, e events.RewardDistributed) error {
	return s.adjustSummary(ctx, e.UserID, func(_ *gorm.DB, sum *models.PortfolioSummary) error {
		sum.TotalRewardsUSDT = sum.TotalRewardsUSDT.Add(e.AmountUSDT)
		return nil
	})
}

func (s *portfolioService) onRewardSnapshot(ctx context.Context, e events.RewardDistributed) error {
	_, err := s.RecordSnapshot(ctx, e.UserID, models.ChangeTypeReward, e.RewardID, e.Timestamp)
	return err
}

// onTradeSummary credits the buyer. The seller's counters keep the original
// purchase; the resale only shows up in the seller's snapshot.
func (s *portfolioService) onTradeSummary(ctx context.Context, e events.MarketplaceTradeCompleted) error {
	return s.adjustSummary(ctx, e.BuyerID, func(tx *gorm.DB, sum *models.PortfolioSummary) error {
		sum.TotalInvestedUSDT = sum.TotalInvestedUSDT.Add(e.TotalUSDT)
		sum.ActiveInvestments++

		var bought models.Investment
		err := tx.Select("expected_roi").Where("id = ?", e.BuyerInvestmentID).First(&bought).Error
		switch {
		case err == nil:
			sum.TotalROIUSDT = sum.TotalROIUSDT.Add(ledger.PercentOf(e.TotalUSDT, bought.ExpectedROI))
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return nil
	})
}

func (s *portfolioService) onTradeSnapshot(ctx context.Context, e events.MarketplaceTradeCompleted) error {
	_, buyErr := s.RecordSnapshot(ctx, e.BuyerID, models.ChangeTypeMarketplaceBuy, e.TradeID, e.Timestamp)
	var sellErr error
	if e.SellerID != "" {
		_, sellErr = s.RecordSnapshot(ctx, e.SellerID, models.ChangeTypeMarketplaceSell, e.TradeID, e.Timestamp)
	}
	return errors.Join(buyErr, sellErr)
}

// onPriceSnapshot revalues every holder of the repriced tier.
func (s *portfolioService) onPriceSnapshot(ctx context.Context, e events.TokenPriceUpdated) error {
	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Investment{}).
		Where("property_token_id = ? AND status IN ?", e.PropertyTokenID, models.HoldingStatuses).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return err
	}

	var errs []error
	for _, userID := range userIDs {
		if _, err := s.RecordSnapshot(ctx, userID, models.ChangeTypePriceUpdate, e.PropertyTokenID, e.Timestamp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// holdingRow is one holding joined with its live prices.
type holdingRow struct {
	PropertyID      string
	PropertyTokenID *string
	TokensPurchased decimal.Decimal
	AmountUSDT      decimal.Decimal
	TokenPrice      decimal.NullDecimal
	PropertyPrice   decimal.Decimal
}

// currentPrice is the tier price for tier holdings, else the property price.
func (h holdingRow) currentPrice() decimal.Decimal {
	if h.PropertyTokenID != nil && h.TokenPrice.Valid {
		return h.TokenPrice.Decimal
	}
	return h.PropertyPrice
}

func loadHoldings(db *gorm.DB, userID string) ([]holdingRow, error) {
	var rows []holdingRow
	err := db.Table("investments i").
		Select(`i.property_id, i.property_token_id, i.tokens_purchased, i.amount_usdt,
			pt.price_per_token_usdt AS token_price, p.price_per_token_usdt AS property_price`).
		Joins("JOIN properties p ON p.id = i.property_id").
		Joins("LEFT JOIN property_tokens pt ON pt.id = i.property_token_id").
		Where("i.user_id = ? AND i.status IN ?", userID, models.HoldingStatuses).
		Order("i.created_at, i.id").
		Scan(&rows).Error
	return rows, err
}

func valuate(db *gorm.DB, userID string) (*Valuation, error) {
	rows, err := loadHoldings(db, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	v := &Valuation{TotalValue: decimal.Zero, TotalInvested: decimal.Zero, Holdings: len(rows)}
	for _, r := range rows {
		v.TotalValue = v.TotalValue.Add(r.TokensPurchased.Mul(r.currentPrice()))
		v.TotalInvested = v.TotalInvested.Add(r.AmountUSDT)
	}
	return v, nil
}

// Valuate computes the user's position at current prices.
func (s *portfolioService) Valuate(ctx context.Context, userID string) (*Valuation, error) {
	return valuate(s.db.WithContext(ctx), userID)
}

// RecordSnapshot appends a history row valuing the user's position at
// current prices. A zero at falls back to the current time.
func (s *portfolioService) RecordSnapshot(ctx context.Context, userID string, changeType models.ChangeType, referenceID string, at time.Time) (*models.PortfolioHistory, error) {
	db := s.db.WithContext(ctx)
	v, err := valuate(db, userID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}

	snapshot := &models.PortfolioHistory{
		UserID:        userID,
		TotalValue:    v.TotalValue,
		TotalInvested: v.TotalInvested,
		RecordedAt:    at.UTC(),
		ChangeType:    changeType,
		ReferenceID:   referenceID,
	}
	if err := db.Create(snapshot).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return snapshot, nil
}

// SnapshotUser resolves a user reference and records a snapshot for it now.
func (s *portfolioService) SnapshotUser(ctx context.Context, userRef string, changeType models.ChangeType) (*models.PortfolioHistory, error) {
	userID, err := ledger.Users.Resolve(s.db.WithContext(ctx), userRef)
	if err != nil {
		return nil, err
	}
	if changeType == "" {
		changeType = models.ChangeTypeSnapshot
	}
	return s.RecordSnapshot(ctx, userID, changeType, "", time.Time{})
}

// SnapshotAllInvestors records a manual snapshot for every user with a
// holding. Per-user failures are logged and skipped.
func (s *portfolioService) SnapshotAllInvestors(ctx context.Context) (int, error) {
	var userIDs []string
	if err := s.db.WithContext(ctx).Model(&models.Investment{}).
		Where("status IN ?", models.HoldingStatuses).
		Distinct("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := time.Now()
	count := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if _, err := s.RecordSnapshot(ctx, userID, models.ChangeTypeSnapshot, "", now); err != nil {
			s.log.Errorw("Snapshot failed", "user_id", userID, "error", err)
			continue
		}
		count++
	}
	s.log.Infow("Snapshots recorded", "count", count, "investors", len(userIDs))
	return count, nil
}
