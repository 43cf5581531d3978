// internal/exchange/errors.go
package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrRateUnavailable indicates a missing or non-positive price for either side.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrSameCurrency indicates both sides of the selection name the same currency.
	ErrSameCurrency = errors.New("cannot swap to the same currency")

	// ErrInvalidAmount indicates an amount that is empty, non-numeric or negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrRequired indicates a required form field was left unset.
	ErrRequired = errors.New("field is required")
)

// Field names used in FieldError.
const (
	FieldFromCurrency = "from_currency"
	FieldToCurrency   = "to_currency"
	FieldFromAmount   = "from_amount"
	FieldToAmount     = "to_amount"
)

// FieldError attaches a form field to a recoverable validation error.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) *FieldError {
	return &FieldError{Field: field, Err: err}
}
