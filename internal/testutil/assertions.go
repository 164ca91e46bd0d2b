package testutil

import (
	"errors"
	"testing"

	apperrors "estatetoken/internal/errors"

	"github.com/shopspring/decimal"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal checks that got equals the decimal written in want.
func AssertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()

	if !got.Equal(D(want)) {
		t.Errorf("expected %s %s, got %s", label, want, got.String())
	}
}

// D parses a decimal literal, panicking on malformed input.
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
