package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks failures caused by the caller: bad files, bad
	// extensions, corrupt images, missing or out-of-range fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal marks failures the caller cannot fix. The wrapped detail is
	// for server logs only.
	ErrInternal = errors.New("internal error")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError carries a message that is safe to show to API clients.
type ValidationError struct {
	Message string
}

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Internal wraps err so that errors.Is(result, ErrInternal) holds while the
// original cause stays reachable through errors.Unwrap chains for logging.
func Internal(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
