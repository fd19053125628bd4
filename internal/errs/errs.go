package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups for unknown wallets or log rows.
var ErrNotFound = errors.New("not found")

// ConflictError rejects a stage request that is already running or not yet
// due. Batch callers treat it as "skip this wallet", not as a failure.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func Conflictf(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// ValidationError rejects malformed configuration or scope rules.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
