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

// rewardService credits investment rewards to wallets.
type rewardService struct {
	db    *gorm.DB
	locks *locking.Manager
	bus   events.Publisher
	log   *zap.SugaredLogger
}

// NewRewardService creates a new RewardServicer.
func NewRewardService(db *gorm.DB, locks *locking.Manager, bus events.Publisher) RewardServicer {
	return &rewardService{db: db, locks: locks, bus: bus, log: logger.Named("rewards")}
}

// Distribute credits amountUSDT to the owner of a held investment and
// records the paired reward and ledger entries.
func (s *rewardService) Distribute(ctx context.Context, investmentRef string, amountUSDT decimal.Decimal, note string) (*models.Reward, error) {
	if !amountUSDT.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Reward amount must be greater than zero")
	}

	var reward *models.Reward
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := ledger.Investments.Resolve(tx, investmentRef)
		if err != nil {
			return err
		}
		var investment models.Investment
		if err := tx.Where("id = ?", id).First(&investment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrInvestmentNotFound
			}
			return err
		}
		if investment.Status != models.InvestmentStatusConfirmed && investment.Status != models.InvestmentStatusActive {
			return apperrors.WithMessage(apperrors.ErrInvalidState, "Rewards can only be paid on held investments")
		}

		set, err := s.locks.Acquire(tx, locking.Wallet(investment.UserID))
		if err != nil {
			return err
		}
		wallet := set.Wallet(investment.UserID)
		wallet.BalanceUSDT = wallet.BalanceUSDT.Add(amountUSDT)
		if err := tx.Model(wallet).Update("balance_usdt", wallet.BalanceUSDT).Error; err != nil {
			return err
		}

		rwdCode, err := ledger.NextDisplayCode(tx, ledger.KindReward)
		if err != nil {
			return err
		}
		txnCode, err := ledger.NextDisplayCode(tx, ledger.KindTransaction)
		if err != nil {
			return err
		}

		reward = &models.Reward{
			DisplayCode:  rwdCode,
			UserID:       investment.UserID,
			InvestmentID: investment.ID,
			PropertyID:   investment.PropertyID,
			AmountUSDT:   amountUSDT,
			Note:         note,
		}
		if err := tx.Create(reward).Error; err != nil {
			return err
		}
		return tx.Create(&models.Transaction{
			DisplayCode:     txnCode,
			UserID:          investment.UserID,
			WalletID:        wallet.ID,
			PropertyID:      investment.PropertyID,
			PropertyTokenID: investment.PropertyTokenID,
			RewardID:        &reward.ID,
			Type:            models.TransactionTypeReward,
			AmountUSDT:      amountUSDT,
			Status:          models.TransactionStatusCompleted,
			Description:     fmt.Sprintf("Reward %s on %s", rwdCode, investment.DisplayCode),
		}).Error
	})
	if err != nil {
		return nil, locking.Classify(err)
	}

	s.log.Infow("Reward distributed", "reward", reward.DisplayCode, "user_id", reward.UserID,
		"investment_id", reward.InvestmentID, "amount_usdt", amountUSDT.String())

	s.bus.Publish(ctx, events.RewardDistributed{
		Envelope:     events.NewEnvelope(events.TopicRewardDistributed),
		RewardID:     reward.ID,
		UserID:       reward.UserID,
		InvestmentID: reward.InvestmentID,
		PropertyID:   reward.PropertyID,
		AmountUSDT:   reward.AmountUSDT,
		DisplayCode:  reward.DisplayCode,
	})
	return reward, nil
}
