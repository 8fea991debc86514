package prompts

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/promptvaultdev/promptvault/internal/store"
)

// Sentinel errors for the service layer. HTTP and bot transports map
// these onto their own status codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrDuplicate     = errors.New("already exists")
	ErrConflict      = errors.New("conflicting update")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// invalid builds a ValidationError.
func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// mapStoreErr translates storage errors into service sentinels. Errors
// that carry no domain meaning pass through as storage failures.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		return ErrDuplicate
	default:
		return err
	}
}
