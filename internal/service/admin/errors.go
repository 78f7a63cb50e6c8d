package admin

import (
	"errors"
)

var (
	ErrProducerConflict = errors.New("producer already exists")
	ErrProducerNotFound = errors.New("producer not found")
	ErrEventConflict    = errors.New("event already exists")
	ErrInvalidEvent     = errors.New("invalid event")
)
