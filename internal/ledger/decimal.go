// Package ledger holds the primitives every settlement path shares: exact
// decimal helpers for money and token quantities, display-code sequences, and
// canonical resolution of UUID-or-display-code references.
package ledger

import (
	"strings"

	apperrors "estatetoken/internal/errors"

	"github.com/shopspring/decimal"
)

const (
	// TokenScale is the finest token quantity that can be bought.
	TokenScale int32 = 6
	// CurrencyScale is used only when presenting USDT amounts.
	CurrencyScale int32 = 2

	// quotientScale matches the NUMERIC(36,18) columns.
	quotientScale int32 = 18
)

var tokenStep = decimal.New(1, -TokenScale)

// ParseAmount parses a decimal literal supplied by a client.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid decimal value: "+s)
	}
	return d, nil
}

// ValidTokenQuantity rejects zero, negative and over-precise quantities.
func ValidTokenQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return apperrors.ErrInvalidQuantity
	}
	if !q.Truncate(TokenScale).Equal(q) {
		return apperrors.WithMessage(apperrors.ErrInvalidQuantity, "Token quantity supports at most 6 decimal places")
	}
	return nil
}

// ValidTokenSupply is ValidTokenQuantity but allows zero, which retires a
// tier's unsold supply.
func ValidTokenSupply(q decimal.Decimal) error {
	if q.IsZero() {
		return nil
	}
	return ValidTokenQuantity(q)
}

// Cost returns the exact USDT cost of tokens at price.
func Cost(tokens, price decimal.Decimal) decimal.Decimal {
	return tokens.Mul(price)
}

// TokensForAmount converts a USDT amount to a token quantity at price,
// truncating to TokenScale so the buyer is never charged more than amount.
func TokensForAmount(amount, price decimal.Decimal) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidState, "Property has no valid token price")
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidQuantity, "Amount must be greater than zero")
	}
	tokens := amount.DivRound(price, quotientScale).Truncate(TokenScale)
	if Cost(tokens, price).GreaterThan(amount) {
		tokens = tokens.Sub(tokenStep)
	}
	if !tokens.IsPositive() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidQuantity, "Amount is too small to buy any tokens")
	}
	return tokens, nil
}

// RoundCurrency rounds a USDT amount for display.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyScale)
}

// PercentOf returns pct percent of amount.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(decimal.NewFromInt(100))
}
