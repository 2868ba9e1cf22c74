package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Retryable is implemented by errors that carry their own retry
// classification, like the gateway client's response errors.
type Retryable interface {
	IsRetryable() bool
}

// Domain error codes
const (
	ErrCodeValidation            = "VALIDATION"
	ErrCodeCurrencyMismatch      = "CURRENCY_MISMATCH"
	ErrCodeInvalidTransition     = "INVALID_TRANSITION"
	ErrCodeEmptyGroup            = "EMPTY_GROUP"
	ErrCodeUnmappedGatewayStatus = "UNMAPPED_GATEWAY_STATUS"
	ErrCodeGatewayUnavailable    = "GATEWAY_UNAVAILABLE"
	ErrCodePaymentError          = "PAYMENT_ERROR"
	ErrCodeStaleState            = "STALE_STATE"
	ErrCodeOrderNotFound         = "ORDER_NOT_FOUND"
	ErrCodePaymentNotFound       = "PAYMENT_NOT_FOUND"
)

func NewValidationError(message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

func NewCurrencyMismatchError(left, right string) *DomainError {
	return &DomainError{
		Code:    ErrCodeCurrencyMismatch,
		Message: fmt.Sprintf("currency mismatch: %s vs %s", left, right),
	}
}

func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewEmptyGroupError(groupID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeEmptyGroup,
		Message: fmt.Sprintf("delivery group %s has no lines", groupID),
	}
}

func NewUnmappedGatewayStatusError(status string) *DomainError {
	return &DomainError{
		Code:    ErrCodeUnmappedGatewayStatus,
		Message: fmt.Sprintf("unrecognized gateway status %q", status),
	}
}

func NewGatewayUnavailableError(err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeGatewayUnavailable,
		Message: "payment gateway unavailable",
		Err:     err,
	}
}

func NewPaymentError(message string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentError,
		Message: message,
		Err:     err,
	}
}

func NewStaleStateError(entity string) *DomainError {
	return &DomainError{
		Code:    ErrCodeStaleState,
		Message: fmt.Sprintf("%s was modified concurrently", entity),
	}
}

func NewOrderNotFoundError(ref string) *DomainError {
	return &DomainError{
		Code:    ErrCodeOrderNotFound,
		Message: fmt.Sprintf("order %s not found", ref),
	}
}

func NewPaymentNotFoundError(ref string) *DomainError {
	return &DomainError{
		Code:    ErrCodePaymentNotFound,
		Message: fmt.Sprintf("payment %s not found", ref),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// RedirectRequired signals that the caller must send the end user to an
// external gateway URL before the payment flow can continue. It travels as
// an error value but is control flow, not a failure.
type RedirectRequired struct {
	URL string
}

func (e *RedirectRequired) Error() string {
	return "redirect required: " + e.URL
}

// IsRedirectRequired extracts a RedirectRequired signal from an error chain.
func IsRedirectRequired(err error) (*RedirectRequired, bool) {
	var redirect *RedirectRequired
	ok := errors.As(err, &redirect)
	return redirect, ok
}
