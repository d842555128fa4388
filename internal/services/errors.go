// Package services defines the business logic for items (todos and
// follow-ups) and classification dispatch. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks any request rejected for a bad or missing field
	// value. Concrete failures wrap it with the offending field's name, so
	// callers can both match with errors.Is and surface the detail.
	ErrValidation = errors.New("validation failed")

	// ErrItemNotFound indicates that the requested item does not exist.
	ErrItemNotFound = errors.New("item not found")
)

// invalidf builds an ErrValidation-wrapped error with field detail.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
