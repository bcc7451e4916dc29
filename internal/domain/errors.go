package domain

import (
	"errors"
	"fmt"
)

var (
	ErrImageNotFound     = errors.New("image not found")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrProcessingFailed  = errors.New("image processing failed")
	ErrStorageFailed     = errors.New("storage operation failed")
)

// DimensionError reports which requested axis failed validation.
// Field is "width", "height" or "both".
type DimensionError struct {
	Field  string
	Reason string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *DimensionError) Unwrap() error {
	return ErrInvalidDimensions
}
