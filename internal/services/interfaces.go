package services

import (
	"context"
	"time"

	"estatetoken/internal/events"
	"estatetoken/internal/models"
	"estatetoken/internal/pagination"

	"github.com/shopspring/decimal"
)

// InventoryRef names what an investment buys: a token tier, or a legacy
// property sold from its own inventory. Either field may hold a UUID or a
// display code; Token takes precedence when both are set.
type InventoryRef struct {
	Token    string
	Property string
}

// SettlementServicer settles purchases of property tokens against wallets.
type SettlementServicer interface {
	Invest(ctx context.Context, userID string, ref InventoryRef, tokens decimal.Decimal) (*models.Investment, error)
	InvestByAmount(ctx context.Context, userID, propertyRef string, amountUSDT decimal.Decimal) (*models.Investment, error)
}

// PortfolioServicer maintains portfolio summaries and snapshots.
type PortfolioServicer interface {
	Register(bus events.Subscriber)
	RecordSnapshot(ctx context.Context, userID string, changeType models.ChangeType, referenceID string, at time.Time) (*models.PortfolioHistory, error)
	SnapshotUser(ctx context.Context, userRef string, changeType models.ChangeType) (*models.PortfolioHistory, error)
	SnapshotAllInvestors(ctx context.Context) (int, error)
	Valuate(ctx context.Context, userID string) (*Valuation, error)
}

// AggregationResult reports one candle aggregation run.
type AggregationResult struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Snapshots int       `json:"snapshots"`
	Candles   int       `json:"candles"`
	Users     int       `json:"users"`
}

// CandleServicer compacts snapshots into daily candles.
type CandleServicer interface {
	Aggregate(ctx context.Context) (*AggregationResult, error)
	AggregateWindow(ctx context.Context, from, to time.Time) (*AggregationResult, error)
}

// RewardServicer credits rewards to investors.
type RewardServicer interface {
	Distribute(ctx context.Context, investmentRef string, amountUSDT decimal.Decimal, note string) (*models.Reward, error)
}

// CreatePropertyInput holds the fields for a new property.
type CreatePropertyInput struct {
	OrganizationID    string
	Name              string
	PricePerTokenUSDT decimal.Decimal
	TotalTokens       decimal.Decimal
	ExpectedROI       decimal.Decimal
}

// CreatePropertyTokenInput holds the fields for a new token tier.
type CreatePropertyTokenInput struct {
	Symbol            string
	Name              string
	PricePerTokenUSDT decimal.Decimal
	TotalTokens       decimal.Decimal
	ExpectedROI       decimal.Decimal
}

// InventoryServicer administers properties and token tiers.
type InventoryServicer interface {
	CreateProperty(ctx context.Context, in CreatePropertyInput) (*models.Property, error)
	CreatePropertyToken(ctx context.Context, propertyRef string, in CreatePropertyTokenInput) (*models.PropertyToken, error)
	ResizeTokenTier(ctx context.Context, tokenRef string, newTotal decimal.Decimal) (*models.PropertyToken, error)
	UpdateTokenPrice(ctx context.Context, tokenRef string, newPrice decimal.Decimal) (*models.PropertyToken, error)
	SetTokenActive(ctx context.Context, tokenRef string, active bool) (*models.PropertyToken, error)
}

// Valuation is a user's position at current prices.
type Valuation struct {
	TotalValue    decimal.Decimal `json:"total_value"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	Holdings      int             `json:"holdings"`
}

// HoldingBreakdown is a user's position in one property or token tier.
type HoldingBreakdown struct {
	PropertyID      string          `json:"property_id"`
	PropertyName    string          `json:"property_name"`
	PropertyTokenID *string         `json:"property_token_id,omitempty"`
	TokenSymbol     string          `json:"token_symbol,omitempty"`
	Investments     int             `json:"investments"`
	Tokens          decimal.Decimal `json:"tokens"`
	InvestedUSDT    decimal.Decimal `json:"invested_usdt"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
}

// PropertyTotals aggregates all investments made in one property.
type PropertyTotals struct {
	PropertyID   string          `json:"property_id"`
	PropertyName string          `json:"property_name"`
	Investors    int             `json:"investors"`
	Investments  int             `json:"investments"`
	TokensSold   decimal.Decimal `json:"tokens_sold"`
	InvestedUSDT decimal.Decimal `json:"invested_usdt"`
}

// AnalyticsServicer answers read-only dashboard queries.
type AnalyticsServicer interface {
	GetInvestment(userID, ref string) (*models.Investment, error)
	ListInvestments(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error)
	GetSummary(userID string) (*models.PortfolioSummary, error)
	GetHistory(userID string, window pagination.DateRange, page pagination.PageRequest) (*pagination.PageResponse[models.PortfolioHistory], error)
	GetCandles(userID string, window pagination.DateRange) ([]models.PortfolioDailyCandle, error)
	GetBreakdown(userID string) ([]HoldingBreakdown, error)
	GetPlatformTotals() ([]PropertyTotals, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Record(ctx context.Context, entry AuditEntry)
}
