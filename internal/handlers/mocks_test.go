package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"estatetoken/internal/events"
	"estatetoken/internal/logger"
	"estatetoken/internal/models"
	"estatetoken/internal/pagination"
	"estatetoken/internal/services"
	"estatetoken/internal/validator"
)

const testUserID = "0192a8b4-0000-7000-8000-000000000001"

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// --- mock settlement service ---

type mockSettlementService struct {
	investFn         func(ctx context.Context, userID string, ref services.InventoryRef, tokens decimal.Decimal) (*models.Investment, error)
	investByAmountFn func(ctx context.Context, userID, propertyRef string, amount decimal.Decimal) (*models.Investment, error)
}

var _ services.SettlementServicer = (*mockSettlementService)(nil)

func (m *mockSettlementService) Invest(ctx context.Context, userID string, ref services.InventoryRef, tokens decimal.Decimal) (*models.Investment, error) {
	if m.investFn != nil {
		return m.investFn(ctx, userID, ref, tokens)
	}
	return &models.Investment{}, nil
}

func (m *mockSettlementService) InvestByAmount(ctx context.Context, userID, propertyRef string, amount decimal.Decimal) (*models.Investment, error) {
	if m.investByAmountFn != nil {
		return m.investByAmountFn(ctx, userID, propertyRef, amount)
	}
	return &models.Investment{}, nil
}

// --- mock analytics service ---

type mockAnalyticsService struct {
	getInvestmentFn     func(userID, ref string) (*models.Investment, error)
	listInvestmentsFn   func(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error)
	getSummaryFn        func(userID string) (*models.PortfolioSummary, error)
	getHistoryFn        func(userID string, window pagination.DateRange, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioHistory], error)
	getCandlesFn        func(userID string, window pagination.DateRange) ([]models.PortfolioDailyCandle, error)
	getBreakdownFn      func(userID string) ([]services.HoldingBreakdown, error)
	getPlatformTotalsFn func() ([]services.PropertyTotals, error)
}

var _ services.AnalyticsServicer = (*mockAnalyticsService)(nil)

func (m *mockAnalyticsService) GetInvestment(userID, ref string) (*models.Investment, error) {
	if m.getInvestmentFn != nil {
		return m.getInvestmentFn(userID, ref)
	}
	return &models.Investment{}, nil
}

func (m *mockAnalyticsService) ListInvestments(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error) {
	if m.listInvestmentsFn != nil {
		return m.listInvestmentsFn(userID, page)
	}
	resp := pagination.NewPageResponse([]models.Investment{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

func (m *mockAnalyticsService) GetSummary(userID string) (*models.PortfolioSummary, error) {
	if m.getSummaryFn != nil {
		return m.getSummaryFn(userID)
	}
	return &models.PortfolioSummary{UserID: userID}, nil
}

func (m *mockAnalyticsService) GetHistory(userID string, window pagination.DateRange, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioHistory], error) {
	if m.getHistoryFn != nil {
		return m.getHistoryFn(userID, window, page)
	}
	resp := pagination.NewPageResponse([]models.PortfolioHistory{}, page.Page, page.PageSize, 0)
	return &resp, nil
}

func (m *mockAnalyticsService) GetCandles(userID string, window pagination.DateRange) ([]models.PortfolioDailyCandle, error) {
	if m.getCandlesFn != nil {
		return m.getCandlesFn(userID, window)
	}
	return []models.PortfolioDailyCandle{}, nil
}

func (m *mockAnalyticsService) GetBreakdown(userID string) ([]services.HoldingBreakdown, error) {
	if m.getBreakdownFn != nil {
		return m.getBreakdownFn(userID)
	}
	return []services.HoldingBreakdown{}, nil
}

func (m *mockAnalyticsService) GetPlatformTotals() ([]services.PropertyTotals, error) {
	if m.getPlatformTotalsFn != nil {
		return m.getPlatformTotalsFn()
	}
	return []services.PropertyTotals{}, nil
}

// --- mock portfolio service ---

type mockPortfolioService struct {
	snapshotUserFn         func(ctx context.Context, userRef string, changeType models.ChangeType) (*models.PortfolioHistory, error)
	snapshotAllInvestorsFn func(ctx context.Context) (int, error)
}

var _ services.PortfolioServicer = (*mockPortfolioService)(nil)

func (m *mockPortfolioService) Register(events.Subscriber) {}

func (m *mockPortfolioService) RecordSnapshot(_ context.Context, userID string, changeType models.ChangeType, referenceID string, at time.Time) (*models.PortfolioHistory, error) {
	return &models.PortfolioHistory{UserID: userID, ChangeType: changeType, ReferenceID: referenceID, RecordedAt: at}, nil
}

func (m *mockPortfolioService) SnapshotUser(ctx context.Context, userRef string, changeType models.ChangeType) (*models.PortfolioHistory, error) {
	if m.snapshotUserFn != nil {
		return m.snapshotUserFn(ctx, userRef, changeType)
	}
	return &models.PortfolioHistory{}, nil
}

func (m *mockPortfolioService) SnapshotAllInvestors(ctx context.Context) (int, error) {
	if m.snapshotAllInvestorsFn != nil {
		return m.snapshotAllInvestorsFn(ctx)
	}
	return 0, nil
}

func (m *mockPortfolioService) Valuate(context.Context, string) (*services.Valuation, error) {
	return &services.Valuation{}, nil
}

// --- mock candle service ---

type mockCandleService struct {
	aggregateFn       func(ctx context.Context) (*services.AggregationResult, error)
	aggregateWindowFn func(ctx context.Context, from, to time.Time) (*services.AggregationResult, error)
}

var _ services.CandleServicer = (*mockCandleService)(nil)

func (m *mockCandleService) Aggregate(ctx context.Context) (*services.AggregationResult, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx)
	}
	return &services.AggregationResult{}, nil
}

func (m *mockCandleService) AggregateWindow(ctx context.Context, from, to time.Time) (*services.AggregationResult, error) {
	if m.aggregateWindowFn != nil {
		return m.aggregateWindowFn(ctx, from, to)
	}
	return &services.AggregationResult{From: from, To: to}, nil
}

// --- mock reward service ---

type mockRewardService struct {
	distributeFn func(ctx context.Context, investmentRef string, amount decimal.Decimal, note string) (*models.Reward, error)
}

var _ services.RewardServicer = (*mockRewardService)(nil)

func (m *mockRewardService) Distribute(ctx context.Context, investmentRef string, amount decimal.Decimal, note string) (*models.Reward, error) {
	if m.distributeFn != nil {
		return m.distributeFn(ctx, investmentRef, amount, note)
	}
	return &models.Reward{}, nil
}

// --- mock inventory service ---

type mockInventoryService struct {
	createPropertyFn      func(ctx context.Context, in services.CreatePropertyInput) (*models.Property, error)
	createPropertyTokenFn func(ctx context.Context, propertyRef string, in services.CreatePropertyTokenInput) (*models.PropertyToken, error)
	resizeTokenTierFn     func(ctx context.Context, tokenRef string, newTotal decimal.Decimal) (*models.PropertyToken, error)
	updateTokenPriceFn    func(ctx context.Context, tokenRef string, newPrice decimal.Decimal) (*models.PropertyToken, error)
	setTokenActiveFn      func(ctx context.Context, tokenRef string, active bool) (*models.PropertyToken, error)
}

var _ services.InventoryServicer = (*mockInventoryService)(nil)

func (m *mockInventoryService) CreateProperty(ctx context.Context, in services.CreatePropertyInput) (*models.Property, error) {
	if m.createPropertyFn != nil {
		return m.createPropertyFn(ctx, in)
	}
	return &models.Property{}, nil
}

func (m *mockInventoryService) CreatePropertyToken(ctx context.Context, propertyRef string, in services.CreatePropertyTokenInput) (*models.PropertyToken, error) {
	if m.createPropertyTokenFn != nil {
		return m.createPropertyTokenFn(ctx, propertyRef, in)
	}
	return &models.PropertyToken{}, nil
}

func (m *mockInventoryService) ResizeTokenTier(ctx context.Context, tokenRef string, newTotal decimal.Decimal) (*models.PropertyToken, error) {
	if m.resizeTokenTierFn != nil {
		return m.resizeTokenTierFn(ctx, tokenRef, newTotal)
	}
	return &models.PropertyToken{}, nil
}

func (m *mockInventoryService) UpdateTokenPrice(ctx context.Context, tokenRef string, newPrice decimal.Decimal) (*models.PropertyToken, error) {
	if m.updateTokenPriceFn != nil {
		return m.updateTokenPriceFn(ctx, tokenRef, newPrice)
	}
	return &models.PropertyToken{}, nil
}

func (m *mockInventoryService) SetTokenActive(ctx context.Context, tokenRef string, active bool) (*models.PropertyToken, error) {
	if m.setTokenActiveFn != nil {
		return m.setTokenActiveFn(ctx, tokenRef, active)
	}
	return &models.PropertyToken{IsActive: active}, nil
}

// --- mock audit service ---

type mockAuditService struct {
	mu      sync.Mutex
	entries []services.AuditEntry
}

var _ services.AuditServicer = (*mockAuditService)(nil)

func (m *mockAuditService) Record(_ context.Context, entry services.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *mockAuditService) last() services.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return services.AuditEntry{}
	}
	return m.entries[len(m.entries)-1]
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- test helpers ---

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
