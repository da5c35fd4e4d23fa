package domain

import (
	"errors" // Error checks
	"fmt"    // Error formatting
	"time"   // Transfer timestamps
)

// ErrorKind classifies every failure a core operation can report
type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindInvalidAmount      ErrorKind = "INVALID_AMOUNT"
	KindRecipientNotFound  ErrorKind = "RECIPIENT_NOT_FOUND"
	KindSelfTransferDenied ErrorKind = "SELF_TRANSFER_DENIED"
	KindInsufficientFunds  ErrorKind = "INSUFFICIENT_FUNDS"
	KindUnauthorized       ErrorKind = "UNAUTHORIZED"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindStoreFailure       ErrorKind = "STORE_FAILURE"
)

// Error is the failure variant of every operation outcome.
// Err holds the internal cause and is never sent to callers.
type Error struct {
	Kind       ErrorKind
	Message    string
	Balance    *Money    // Current balance, set for INSUFFICIENT_FUNDS
	TransferID string    // Set once a transfer id exists, so the caller can query it later
	Timestamp  time.Time // When the transfer attempt was made, set alongside TransferID
	Retryable  bool      // The outcome is unknown or transient; retry or query by transfer id
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so errors.Is(err, &Error{Kind: k}) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an error of the given kind
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreFailure wraps an internal fault with a generic message
func StoreFailure(cause error, retryable bool) *Error {
	return &Error{
		Kind:      KindStoreFailure,
		Message:   "ledger operation failed",
		Retryable: retryable,
		Err:       cause,
	}
}

// InsufficientFunds reports the balance the sender currently has
func InsufficientFunds(balance, needed Money) *Error {
	b := balance
	return &Error{
		Kind:    KindInsufficientFunds,
		Message: fmt.Sprintf("Insufficient funds: have %s, need %s", balance, needed),
		Balance: &b,
	}
}

// AsError extracts a *Error; anything else becomes a non-retryable STORE_FAILURE
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return StoreFailure(err, false)
}

// KindOf returns the kind of err, or an empty kind for nil
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}

// IsRetryable reports whether err is a transient failure
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
