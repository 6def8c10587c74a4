package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Card & Ledger (CARD) ----

func ErrInvalidInput(message string) *AppError {
	return New("CARD_001", message, http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance on card", http.StatusPaymentRequired)
}

// CodeInsufficientFunds identifies the overdraft rejection; callers branch on
// it when a failed debit needs distinct handling from other errors.
const CodeInsufficientFunds = "CARD_002"

// IsInsufficientFunds reports whether err is an overdraft rejection.
func IsInsufficientFunds(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == CodeInsufficientFunds
}

func ErrNotFound(entity string) *AppError {
	return New("CARD_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrAddressDerivation(currency string) *AppError {
	return New("CARD_004", fmt.Sprintf("cannot derive address for currency %q", currency), http.StatusBadRequest)
}

func ErrAddressImmutable() *AppError {
	return New("CARD_005", "Receive address is already set and cannot change", http.StatusConflict)
}

// ---- Exchange (EXC) ----

func ErrRateUnavailable(err error) *AppError {
	return Wrap("EXC_001", "Exchange rate is currently unavailable", http.StatusServiceUnavailable, err)
}

func ErrQuoteExpired() *AppError {
	return New("EXC_002", "Quote has expired", http.StatusGone)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("EXC_003", fmt.Sprintf("order cannot move from %s to %s", from, to), http.StatusConflict)
}

func ErrSettlementFailed(err error) *AppError {
	return Wrap("EXC_004", "Settlement debit failed", http.StatusConflict, err)
}

func ErrSameCurrency() *AppError {
	return New("EXC_005", "From and to currencies must differ", http.StatusBadRequest)
}

// ---- Regulator & Authorization (REG) ----

func ErrUnauthorized() *AppError {
	return New("REG_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrRegulatorRequired() *AppError {
	return New("REG_002", "Regulator capability required", http.StatusForbidden)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_002", "Internal database error", http.StatusInternalServerError, err)
}

func ErrRateLimitExceeded() *AppError {
	return New("SYS_003", "Rate limit exceeded", http.StatusTooManyRequests)
}

// Validation returns a CARD_001-style validation error.
func Validation(message string) *AppError {
	return New("CARD_001", message, http.StatusBadRequest)
}
