package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConflictData = errors.New("data conflicts with existing data")
	ErrDataNotFound = errors.New("data not found")

	// validation
	ErrInvalidAmount  = errors.New("amount must be greater than zero")
	ErrMissingEmail   = errors.New("customer email is required")
	ErrMissingOrderID = errors.New("order id is required")
	ErrEmptyToken     = errors.New("token is required")

	// webhook gate
	ErrSecretNotConfigured = errors.New("webhook secret is not configured")
	ErrMissingSignature    = errors.New("signature header is missing")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrMalformedPayload    = errors.New("malformed webhook payload")

	// settlement
	ErrOrderSettled = errors.New("order is already settled")

	ErrProviderInternal = errors.New("payment provider internal error")
	ErrInternalError    = errors.New("internal error")
)

// TooManyRequestsError is returned when the payment provider answers 429.
// RetryAfter carries the provider-requested backoff.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func NewTooManyRequestsError(retryAfter time.Duration) TooManyRequestsError {
	return TooManyRequestsError{RetryAfter: retryAfter}
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}
