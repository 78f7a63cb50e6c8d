package reservation

import (
	"errors"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidFare       = errors.New("unknown fare class")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEventNotFound     = errors.New("event not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrNotExpirable      = errors.New("ticket is not expirable")
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrPaymentMismatch   = errors.New("ticket already paid by another payment")
	ErrConcurrentUpdate  = errors.New("ticket changed concurrently")
	ErrRateLimited       = errors.New("rate limited")
	ErrEmptyCart         = errors.New("nothing to reserve")
)

// RateLimitedError carries how long the caller should wait.
type RateLimitedError struct {
	RetryAfter string
}

func (e RateLimitedError) Error() string {
	return "rate limited, retry in " + e.RetryAfter
}

func (e RateLimitedError) Unwrap() error { return ErrRateLimited }
