package orders

import "errors"

// Error codes carried in the "code" field of failed protocol responses.
const (
	CodeValidation        = "validation"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeDuplicateID       = "duplicate_id"
)

// ErrorCode returns the protocol code for a domain error, or "" if err is not one.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case IsValidation(err):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStatusConflict):
		return CodeConflict
	case errors.Is(err, ErrDuplicateID):
		return CodeDuplicateID
	}
	return ""
}

// ErrorFromCode rebuilds a domain error from a protocol code and message. It
// returns nil for codes it does not know.
func ErrorFromCode(code, message string) error {
	switch code {
	case CodeValidation:
		return &ValidationError{Message: message}
	case CodeInvalidTransition:
		return &ValidationError{Field: "status", Message: message, Err: ErrInvalidTransition}
	case CodeNotFound:
		return ErrNotFound
	case CodeConflict:
		return ErrStatusConflict
	case CodeDuplicateID:
		return ErrDuplicateID
	}
	return nil
}
