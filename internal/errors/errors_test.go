package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := Wrap(ErrInsufficientFunds, fmt.Errorf("balance 50 < 200"))
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if errors.Is(wrapped, ErrInsufficientInventory) {
		t.Error("expected wrapped error not to match a different sentinel")
	}

	outer := fmt.Errorf("invest: %w", WithMessage(ErrPropertyNotFound, "no property PROP-000009"))
	if !errors.Is(outer, ErrPropertyNotFound) {
		t.Error("expected fmt-wrapped AppError to match its sentinel")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "lock_timeout", err: Wrap(ErrLockTimeout, errors.New("55P03")), want: true},
		{name: "insufficient_funds", err: ErrInsufficientFunds, want: false},
		{name: "insufficient_inventory", err: ErrInsufficientInventory, want: false},
		{name: "plain_error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	for _, sentinel := range []*AppError{ErrWalletNotFound, ErrPropertyNotFound, ErrPropertyTokenNotFound, ErrUserNotFound} {
		if !IsNotFound(sentinel) {
			t.Errorf("expected %s to be in the not-found family", sentinel.Code)
		}
	}
	if IsNotFound(ErrInvalidState) {
		t.Error("INVALID_STATE must not be reported as not found")
	}
}
