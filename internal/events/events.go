// Package events defines the typed, versioned events exchanged between the
// settlement core and its downstream consumers, and the in-process Bus that
// delivers them.
package events

import (
	"time"

	"estatetoken/internal/uuid"

	"github.com/shopspring/decimal"
)

// Topic names an event stream.
type Topic string

const (
	TopicInvestmentCompleted       Topic = "investment.completed"
	TopicMarketplaceTradeCompleted Topic = "marketplace.trade.completed"
	TopicRewardDistributed         Topic = "reward.distributed"
	TopicTokenPriceUpdated         Topic = "token.price.updated"
	TopicPortfolioCandleUpdated    Topic = "portfolio.candle.updated"
)

// Current payload version per topic. Bump when a payload changes shape.
var versions = map[Topic]int{
	TopicInvestmentCompleted:       1,
	TopicMarketplaceTradeCompleted: 1,
	TopicRewardDistributed:         1,
	TopicTokenPriceUpdated:         1,
	TopicPortfolioCandleUpdated:    1,
}

// Envelope carries the metadata common to every event.
type Envelope struct {
	EventID   string    `json:"eventId"`
	Topic     Topic     `json:"topic"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope stamps a fresh envelope for topic.
func NewEnvelope(topic Topic) Envelope {
	return Envelope{
		EventID:   uuid.New(),
		Topic:     topic,
		Version:   versions[topic],
		Timestamp: time.Now().UTC(),
	}
}

// Meta returns the envelope.
func (e Envelope) Meta() Envelope { return e }

// Event is implemented by every payload type through its embedded Envelope.
type Event interface {
	Meta() Envelope
}

// InvestmentCompleted is published once per committed settlement.
type InvestmentCompleted struct {
	Envelope
	UserID            string          `json:"userId"`
	PropertyID        string          `json:"propertyId"`
	PropertyTokenID   *string         `json:"propertyTokenId,omitempty"`
	OrganizationID    string          `json:"organizationId"`
	TokensPurchased   decimal.Decimal `json:"tokensPurchased"`
	PricePerTokenUSDT decimal.Decimal `json:"pricePerTokenUSDT"`
	AmountUSDT        decimal.Decimal `json:"amountUSDT"`
	ExpectedROI       decimal.Decimal `json:"expectedROI"`
	InvestmentID      string          `json:"investmentId"`
	TransactionID     string          `json:"transactionId"`
	InvestmentCode    string          `json:"investmentCode"`
	TransactionCode   string          `json:"transactionCode"`
}

// MarketplaceTradeCompleted is produced by the marketplace when a resale
// settles. The seller side is optional for primary-market style trades.
type MarketplaceTradeCompleted struct {
	Envelope
	TradeID            string          `json:"tradeId"`
	BuyerID            string          `json:"buyerId"`
	SellerID           string          `json:"sellerId"`
	PropertyID         string          `json:"propertyId"`
	PropertyTokenID    *string         `json:"propertyTokenId,omitempty"`
	TokensBought       decimal.Decimal `json:"tokensBought"`
	TotalUSDT          decimal.Decimal `json:"totalUSDT"`
	BuyerInvestmentID  string          `json:"buyerInvestmentId"`
	SellerInvestmentID *string         `json:"sellerInvestmentId,omitempty"`
}

// RewardDistributed is published after a reward has been credited.
type RewardDistributed struct {
	Envelope
	RewardID     string          `json:"rewardId"`
	UserID       string          `json:"userId"`
	InvestmentID string          `json:"investmentId"`
	PropertyID   string          `json:"propertyId"`
	AmountUSDT   decimal.Decimal `json:"amountUSDT"`
	DisplayCode  string          `json:"displayCode"`
}

// TokenPriceUpdated is published after a token tier is repriced.
type TokenPriceUpdated struct {
	Envelope
	PropertyTokenID string          `json:"propertyTokenId"`
	PropertyID      string          `json:"propertyId"`
	OldPrice        decimal.Decimal `json:"oldPrice"`
	NewPrice        decimal.Decimal `json:"newPrice"`
}

// Candle is the wire form of one daily OHLC bucket.
type Candle struct {
	Date          string          `json:"date"`
	OpenValue     decimal.Decimal `json:"openValue"`
	HighValue     decimal.Decimal `json:"highValue"`
	LowValue      decimal.Decimal `json:"lowValue"`
	CloseValue    decimal.Decimal `json:"closeValue"`
	TotalInvested decimal.Decimal `json:"totalInvested"`
	SnapshotCount int64           `json:"snapshotCount"`
}

// PortfolioCandleUpdated notifies real-time clients of a user's latest candle.
type PortfolioCandleUpdated struct {
	Envelope
	UserID string `json:"userId"`
	Candle Candle `json:"candle"`
}
