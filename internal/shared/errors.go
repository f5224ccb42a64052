package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrStoreRequired is returned when a store scoped action runs before a
	// store is selected.
	ErrStoreRequired = errors.New("please select a store")
)

// SafeError carries a message that can be shown to the user as is.
type SafeError struct {
	Message string
	Err     error
}

func (e *SafeError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *SafeError) Unwrap() error { return e.Err }

// NewSafeError wraps err with a user facing message.
func NewSafeError(message string, err error) error {
	return &SafeError{Message: message, Err: err}
}

// UserSafeMessage returns a message suitable for a toast. Internal errors
// collapse to a generic sentence.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var safe *SafeError
	if errors.As(err, &safe) && strings.TrimSpace(safe.Message) != "" {
		return safe.Message
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrStoreRequired):
		return "Please select a store"
	case errors.Is(err, ErrNotFound):
		return "The requested item no longer exists"
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Your form expired, please try again"
	}
	return "Something went wrong, please try again"
}
