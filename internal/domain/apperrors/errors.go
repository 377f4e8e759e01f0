// Package apperrors holds the error values shared between the catalog layers.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrVersionConflict indicates that a document was saved from a stale version.
var ErrVersionConflict = errors.New("version conflict")

// ErrUnknownCurrency indicates a currency that is neither the base currency nor in the rate snapshot.
var ErrUnknownCurrency = errors.New("unknown currency")

// ErrRateNotFound indicates that no exchange rate is held for a currency code.
var ErrRateNotFound = errors.New("exchange rate not found")

// ErrProviderUnavailable indicates a transport failure while fetching rates.
var ErrProviderUnavailable = errors.New("exchange rate provider unavailable")

// ErrMalformedProviderResponse indicates a provider payload that could not be used.
var ErrMalformedProviderResponse = errors.New("malformed exchange rate provider response")

// RateNotFoundError is returned by strict conversions when a code has no rate.
type RateNotFoundError struct {
	Code string
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRateNotFound.Error(), e.Code)
}

// Is lets errors.Is(err, ErrRateNotFound) match.
func (e *RateNotFoundError) Is(target error) bool {
	return target == ErrRateNotFound
}

// NewRateNotFound creates a RateNotFoundError for code.
func NewRateNotFound(code string) error {
	return &RateNotFoundError{Code: code}
}
