package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrDuplicateWatchlistEntry = errors.New("coin already in watchlist")
	ErrNotFound                = errors.New("not found")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrMissingToken            = errors.New("no token provided")
	ErrInvalidToken            = errors.New("invalid token")
	ErrUpstreamUnavailable     = errors.New("market data unavailable")
)

// ValidationError reports a rejected request field. It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
