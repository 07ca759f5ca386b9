package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores for an unknown article or story id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput rejects a store call whose arguments can never succeed,
	// such as an empty id.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed matches every *ValidationError under errors.Is.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError names the field of a feed, article or story that is invalid.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
