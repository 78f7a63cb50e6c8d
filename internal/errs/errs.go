// Package errs classifies failures of external dependencies so callers can
// decide between redelivery and fail-stop without matching strings.
package errs

import (
	cr "github.com/cockroachdb/errors"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, connection
	// resets, 5xx answers.
	ErrTransient = cr.New("transient failure")
	// ErrPermanent marks failures a retry cannot fix: 4xx answers,
	// undecodable bodies.
	ErrPermanent = cr.New("permanent failure")
)

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Transient(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Mark(cr.Wrap(err, msg), ErrTransient)
}

func Permanent(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Mark(cr.Wrap(err, msg), ErrPermanent)
}

func IsTransient(err error) bool {
	return cr.Is(err, ErrTransient)
}

func IsPermanent(err error) bool {
	return cr.Is(err, ErrPermanent)
}

// Is reports whether err carries target either in its chain or as a mark.
func Is(err, target error) bool {
	return cr.Is(err, target)
}
