package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"estatetoken/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an active user with a unique email and display code.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	n := nextID()
	user := &models.User{
		DisplayCode: fmt.Sprintf("USR-T%05d", n),
		Email:       fmt.Sprintf("user%d@test.com", n),
		FirstName:   "Test",
		LastName:    "Investor",
		IsActive:    true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestWallet creates a USDT wallet for the user with the given balance.
func CreateTestWallet(t *testing.T, db *gorm.DB, userID, balance string) *models.Wallet {
	t.Helper()

	wallet := &models.Wallet{
		UserID:      userID,
		BalanceUSDT: D(balance),
		Currency:    "USDT",
	}
	if err := db.Create(wallet).Error; err != nil {
		t.Fatalf("failed to create test wallet: %v", err)
	}
	return wallet
}

// CreateTestInvestor creates a user together with a funded wallet.
func CreateTestInvestor(t *testing.T, db *gorm.DB, balance string) (*models.User, *models.Wallet) {
	t.Helper()

	user := CreateTestUser(t, db)
	return user, CreateTestWallet(t, db, user.ID, balance)
}

// CreateTestProperty creates an active legacy property with its own inventory.
func CreateTestProperty(t *testing.T, db *gorm.DB, price, available string) *models.Property {
	t.Helper()

	property := &models.Property{
		DisplayCode:       fmt.Sprintf("PROP-T%05d", nextID()),
		Name:              "Test Residence",
		PricePerTokenUSDT: D(price),
		TotalTokens:       D(available),
		AvailableTokens:   D(available),
		ExpectedROI:       D("8"),
		IsActive:          true,
	}
	if err := db.Create(property).Error; err != nil {
		t.Fatalf("failed to create test property: %v", err)
	}
	return property
}

// CreateTestPropertyToken creates an active token tier under the property.
func CreateTestPropertyToken(t *testing.T, db *gorm.DB, propertyID, price, total, available string) *models.PropertyToken {
	t.Helper()

	token := &models.PropertyToken{
		DisplayCode:       fmt.Sprintf("TIER-T%05d", nextID()),
		PropertyID:        propertyID,
		Name:              "Class A",
		PricePerTokenUSDT: D(price),
		TotalTokens:       D(total),
		AvailableTokens:   D(available),
		ExpectedROI:       D("12"),
		IsActive:          true,
	}
	if err := db.Create(token).Error; err != nil {
		t.Fatalf("failed to create test property token: %v", err)
	}
	return token
}

// CreateTestInvestment inserts a confirmed investment without touching
// wallets or inventory. Pass a nil token for a legacy property investment.
func CreateTestInvestment(t *testing.T, db *gorm.DB, userID string, property *models.Property, token *models.PropertyToken, tokens string) *models.Investment {
	t.Helper()

	price := property.PricePerTokenUSDT
	roi := property.ExpectedROI
	var tokenID *string
	if token != nil {
		price = token.PricePerTokenUSDT
		roi = token.ExpectedROI
		tokenID = &token.ID
	}

	qty := D(tokens)
	investment := &models.Investment{
		DisplayCode:       fmt.Sprintf("INV-T%05d", nextID()),
		UserID:            userID,
		PropertyID:        property.ID,
		PropertyTokenID:   tokenID,
		TokensPurchased:   qty,
		PricePerTokenUSDT: price,
		AmountUSDT:        qty.Mul(price),
		ExpectedROI:       roi,
		Status:            models.InvestmentStatusConfirmed,
		PaymentStatus:     models.PaymentStatusCompleted,
	}
	if err := db.Create(investment).Error; err != nil {
		t.Fatalf("failed to create test investment: %v", err)
	}
	return investment
}

// CreateTestSnapshot appends a portfolio history row at the given time.
func CreateTestSnapshot(t *testing.T, db *gorm.DB, userID, value, invested string, at time.Time) *models.PortfolioHistory {
	t.Helper()

	snapshot := &models.PortfolioHistory{
		UserID:        userID,
		TotalValue:    D(value),
		TotalInvested: D(invested),
		RecordedAt:    at.UTC(),
		ChangeType:    models.ChangeTypeSnapshot,
	}
	if err := db.Create(snapshot).Error; err != nil {
		t.Fatalf("failed to create test snapshot: %v", err)
	}
	return snapshot
}
