package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the referenced order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateID is returned by a Ledger when the generated order id is taken.
	ErrDuplicateID = errors.New("order id already exists")
	// ErrStatusConflict means the stored status changed between read and write.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrInvalidTransition is wrapped by the ValidationError for a forbidden edge.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports missing or malformed input. It is never retried.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
