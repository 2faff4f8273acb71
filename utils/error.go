package utils

import (
	"context"
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")
var ErrorStorageUnavailable = errors.New("storage unavailable")

// ValidationError marks malformed caller input. The message is safe to surface
// to the presentation layer as-is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrorRecordNotFound)
}

func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
