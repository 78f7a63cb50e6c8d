package repository

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStaleState        = errors.New("row is no longer in the expected state")
	ErrUnknownFare       = errors.New("unknown fare class")
)
