package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist. The
	// HTTP layer maps it to 404; malformed date boundaries are reported the
	// same way, matching the behavior of the calendar views this replaces.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for client input that fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
