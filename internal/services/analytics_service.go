package services

import (
	"errors"
	"sort"

	apperrors "estatetoken/internal/errors"
	"estatetoken/internal/ledger"
	"estatetoken/internal/models"
	"estatetoken/internal/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// analyticsService answers read-only dashboard queries. Sums are taken in Go
// so decimals never pass through the database's floating-point aggregates.
type analyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB) AnalyticsServicer {
	return &analyticsService{db: db}
}

// GetInvestment returns one of the user's investments by UUID or display code.
func (s *analyticsService) GetInvestment(userID, ref string) (*models.Investment, error) {
	id, err := ledger.Investments.Resolve(s.db, ref)
	if err != nil {
		return nil, err
	}
	var investment models.Investment
	if err := s.db.Preload("Property").Preload("PropertyToken").
		Where("id = ? AND user_id = ?", id, userID).
		First(&investment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvestmentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &investment, nil
}

// ListInvestments returns the user's investments, newest first.
func (s *analyticsService) ListInvestments(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Investment{}).Where("user_id = ?", userID)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var investments []models.Investment
	if err := base.Order("created_at DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&investments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(investments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetSummary returns the user's running totals. A user who never invested
// gets a zero summary; no row is created.
func (s *analyticsService) GetSummary(userID string) (*models.PortfolioSummary, error) {
	var summary models.PortfolioSummary
	err := s.db.Where("user_id = ?", userID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.PortfolioSummary{
			UserID:            userID,
			TotalInvestedUSDT: decimal.Zero,
			TotalRewardsUSDT:  decimal.Zero,
			TotalROIUSDT:      decimal.Zero,
		}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &summary, nil
}

// GetHistory returns the user's snapshots inside the window, newest first.
func (s *analyticsService) GetHistory(userID string, window pagination.DateRange, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioHistory], error) {
	page.Defaults()
	from, to, err := window.Bounds()
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Dates must use the YYYY-MM-DD format")
	}

	var totalItems int64
	base := s.db.Model(&models.PortfolioHistory{}).
		Where("user_id = ? AND recorded_at >= ? AND recorded_at < ?", userID, from, to)
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var history []models.PortfolioHistory
	if err := base.Order("recorded_at DESC, id DESC").Scopes(pagination.Paginate(page)).Find(&history).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(history, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetCandles returns the user's daily candles inside the window, oldest first.
// Days without snapshots are absent rather than zero.
func (s *analyticsService) GetCandles(userID string, window pagination.DateRange) ([]models.PortfolioDailyCandle, error) {
	if _, _, err := window.Bounds(); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Dates must use the YYYY-MM-DD format")
	}
	candles := []models.PortfolioDailyCandle{}
	if err := s.db.Where("user_id = ? AND bucket_day >= ? AND bucket_day <= ?", userID, window.From, window.To).
		Order("bucket_day").
		Find(&candles).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return candles, nil
}

// GetBreakdown groups the user's holdings by property and token tier and
// values each group at current prices.
func (s *analyticsService) GetBreakdown(userID string) ([]HoldingBreakdown, error) {
	rows, err := loadHoldings(s.db, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	type groupKey struct{ property, token string }
	index := make(map[groupKey]int)
	breakdown := []HoldingBreakdown{}
	for _, r := range rows {
		key := groupKey{property: r.PropertyID}
		if r.PropertyTokenID != nil {
			key.token = *r.PropertyTokenID
		}
		i, ok := index[key]
		if !ok {
			i = len(breakdown)
			index[key] = i
			breakdown = append(breakdown, HoldingBreakdown{
				PropertyID:      r.PropertyID,
				PropertyTokenID: r.PropertyTokenID,
				Tokens:          decimal.Zero,
				InvestedUSDT:    decimal.Zero,
				CurrentValue:    decimal.Zero,
				CurrentPrice:    r.currentPrice(),
			})
		}
		b := &breakdown[i]
		b.Investments++
		b.Tokens = b.Tokens.Add(r.TokensPurchased)
		b.InvestedUSDT = b.InvestedUSDT.Add(r.AmountUSDT)
		b.CurrentValue = b.CurrentValue.Add(r.TokensPurchased.Mul(r.currentPrice()))
	}

	if err := s.labelBreakdown(breakdown); err != nil {
		return nil, err
	}
	sort.SliceStable(breakdown, func(i, j int) bool {
		return breakdown[i].CurrentValue.GreaterThan(breakdown[j].CurrentValue)
	})
	return breakdown, nil
}

// labelBreakdown fills in property names and tier symbols.
func (s *analyticsService) labelBreakdown(breakdown []HoldingBreakdown) error {
	if len(breakdown) == 0 {
		return nil
	}
	var propertyIDs, tokenIDs []string
	for _, b := range breakdown {
		propertyIDs = append(propertyIDs, b.PropertyID)
		if b.PropertyTokenID != nil {
			tokenIDs = append(tokenIDs, *b.PropertyTokenID)
		}
	}

	var properties []models.Property
	if err := s.db.Select("id, name").Where("id IN ?", propertyIDs).Find(&properties).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	names := make(map[string]string, len(properties))
	for _, p := range properties {
		names[p.ID] = p.Name
	}

	symbols := make(map[string]string)
	if len(tokenIDs) > 0 {
		var tokens []models.PropertyToken
		if err := s.db.Select("id, display_code").Where("id IN ?", tokenIDs).Find(&tokens).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, t := range tokens {
			symbols[t.ID] = t.DisplayCode
		}
	}

	for i := range breakdown {
		breakdown[i].PropertyName = names[breakdown[i].PropertyID]
		if id := breakdown[i].PropertyTokenID; id != nil {
			breakdown[i].TokenSymbol = symbols[*id]
		}
	}
	return nil
}

// GetPlatformTotals summarizes held investments per property.
func (s *analyticsService) GetPlatformTotals() ([]PropertyTotals, error) {
	type row struct {
		PropertyID      string
		PropertyName    string
		UserID          string
		TokensPurchased decimal.Decimal
		AmountUSDT      decimal.Decimal
	}
	var rows []row
	if err := s.db.Table("investments i").
		Select("i.property_id, p.name AS property_name, i.user_id, i.tokens_purchased, i.amount_usdt").
		Joins("JOIN properties p ON p.id = i.property_id").
		Where("i.status IN ?", models.HoldingStatuses).
		Order("p.name, i.property_id").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	totals := []PropertyTotals{}
	index := make(map[string]int)
	investors := make(map[string]map[string]bool)
	for _, r := range rows {
		i, ok := index[r.PropertyID]
		if !ok {
			i = len(totals)
			index[r.PropertyID] = i
			investors[r.PropertyID] = make(map[string]bool)
			totals = append(totals, PropertyTotals{
				PropertyID:   r.PropertyID,
				PropertyName: r.PropertyName,
				TokensSold:   decimal.Zero,
				InvestedUSDT: decimal.Zero,
			})
		}
		t := &totals[i]
		t.Investments++
		t.TokensSold = t.TokensSold.Add(r.TokensPurchased)
		t.InvestedUSDT = t.InvestedUSDT.Add(r.AmountUSDT)
		investors[r.PropertyID][r.UserID] = true
		t.Investors = len(investors[r.PropertyID])
	}
	return totals, nil
}
