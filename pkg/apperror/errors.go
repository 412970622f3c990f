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

// CodeOf returns the AppError code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Error codes.
const (
	CodeInvalidAmount     = "VAL_001"
	CodeInvalidPIN        = "VAL_002"
	CodeValidation        = "VAL_003"
	CodeIncorrectPIN      = "PIN_001"
	CodeInsufficientFunds = "PAY_001"
	CodeNotFound          = "NF_001"
	CodeUnauthenticated   = "AUTH_001"
	CodeInvalidToken      = "AUTH_002"
	CodeForbiddenUser     = "AUTH_003"
	CodeRemoteUnavailable = "NET_001"
	CodeOTPRateLimited    = "OTP_001"
	CodeOTPExpired        = "OTP_002"
	CodeOTPInvalid        = "OTP_003"
	CodeOTPDeliveryFailed = "OTP_004"
	CodeRateLimitExceeded = "RATE_001"
	CodeMethodNotAllowed  = "REQ_001"
	CodeInternal          = "SYS_001"
)

// ---- Validation (VAL) ----

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrInvalidPIN() *AppError {
	return New(CodeInvalidPIN, "PIN must be exactly 4 digits", http.StatusBadRequest)
}

// Validation returns a generic validation error with a caller-supplied message.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ---- Wallet business logic (PIN, PAY, NF) ----

func ErrIncorrectPIN() *AppError {
	return New(CodeIncorrectPIN, "current PIN incorrect", http.StatusForbidden)
}

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrUnauthenticated() *AppError {
	return New(CodeUnauthenticated, "Missing identity token", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbiddenUser() *AppError {
	return New(CodeForbiddenUser, "Token is not bound to the requested user", http.StatusForbidden)
}

// ---- Remote store (NET) ----

func ErrRemoteUnavailable(err error) *AppError {
	return Wrap(CodeRemoteUnavailable, "Remote store unavailable", http.StatusServiceUnavailable, err)
}

// ---- One-time passcodes (OTP) ----

func ErrOTPRateLimited() *AppError {
	return New(CodeOTPRateLimited, "Please wait before requesting another code", http.StatusTooManyRequests)
}

func ErrOTPExpired() *AppError {
	return New(CodeOTPExpired, "Code expired", http.StatusBadRequest)
}

func ErrOTPInvalid() *AppError {
	return New(CodeOTPInvalid, "Invalid code", http.StatusBadRequest)
}

func ErrOTPDeliveryFailed(err error) *AppError {
	return Wrap(CodeOTPDeliveryFailed, "Failed to deliver code", http.StatusBadGateway, err)
}

// ---- Request handling (RATE, REQ) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

func ErrMethodNotAllowed() *AppError {
	return New(CodeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
