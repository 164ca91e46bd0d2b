// Package errors provides the application error taxonomy for the settlement
// and portfolio-accounting service. Service-layer functions return *AppError so
// callers can distinguish retryable conditions from terminal rejections, and
// so HTTP responses never leak internal details to clients.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Retryable  bool   `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so a wrapped
// copy of a sentinel still matches the sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Retryable:  sentinel.Retryable,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Retryable:  sentinel.Retryable,
		Internal:   sentinel.Internal,
	}
}

// IsRetryable reports whether err is an AppError the end user may retry.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// IsNotFound reports whether err belongs to the not-found family.
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode == http.StatusNotFound
	}
	return false
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}

	ErrInvalidAPIKey         = &AppError{Code: "INVALID_API_KEY", Message: "Invalid or missing API key", StatusCode: http.StatusUnauthorized}
	ErrPipelineNotConfigured = &AppError{Code: "PIPELINE_NOT_CONFIGURED", Message: "Pipeline endpoints are not configured", StatusCode: http.StatusServiceUnavailable}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Lookup errors. All of them belong to the not-found family.
var (
	ErrUserNotFound          = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrWalletNotFound        = &AppError{Code: "WALLET_NOT_FOUND", Message: "Wallet not found", StatusCode: http.StatusNotFound}
	ErrPropertyNotFound      = &AppError{Code: "PROPERTY_NOT_FOUND", Message: "Property not found", StatusCode: http.StatusNotFound}
	ErrPropertyTokenNotFound = &AppError{Code: "PROPERTY_TOKEN_NOT_FOUND", Message: "Property token not found", StatusCode: http.StatusNotFound}
	ErrInvestmentNotFound    = &AppError{Code: "INVESTMENT_NOT_FOUND", Message: "Investment not found", StatusCode: http.StatusNotFound}
)

// Settlement errors.
var (
	ErrInvalidState          = &AppError{Code: "INVALID_STATE", Message: "Resource is not in a valid state for this operation", StatusCode: http.StatusConflict}
	ErrInvalidQuantity       = &AppError{Code: "INVALID_QUANTITY", Message: "Quantity must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrInsufficientInventory = &AppError{Code: "INSUFFICIENT_INVENTORY", Message: "Not enough tokens available", StatusCode: http.StatusConflict}
	ErrInsufficientFunds     = &AppError{Code: "INSUFFICIENT_FUNDS", Message: "Insufficient wallet balance", StatusCode: http.StatusPaymentRequired}
	ErrLockTimeout           = &AppError{Code: "LOCK_TIMEOUT", Message: "The resource is busy, please try again", StatusCode: http.StatusServiceUnavailable, Retryable: true}
	ErrSettlementFailed      = &AppError{Code: "SETTLEMENT_FAILED", Message: "The investment could not be settled", StatusCode: http.StatusInternalServerError}
)

// Inventory admin errors.
var (
	ErrDuplicateDisplayCode = &AppError{Code: "DUPLICATE_DISPLAY_CODE", Message: "Display code is already in use", StatusCode: http.StatusConflict}
)
