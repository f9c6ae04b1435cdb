package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrDuplicateUser   = errors.New("username is already taken")
	ErrUnknownUser     = errors.New("unknown user")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotFound        = errors.New("record not found")
	ErrForbidden       = errors.New("forbidden")
)

// ValidationError reports an empty or malformed form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Required returns a ValidationError for a missing field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Message: field + " is required."}
}

// IsCredentialError reports whether err came from a failed login. Both unknown
// usernames and bad passwords match so callers can show one message.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrUnknownUser) || errors.Is(err, ErrInvalidPassword)
}
