package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrMalformedMoney indicates an amount that does not parse as a decimal.
	ErrMalformedMoney = errors.New("malformed money")
	// ErrInvalidOperation indicates an unknown cart line operation.
	ErrInvalidOperation = errors.New("invalid cart operation")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidProduct indicates a catalog record that failed boundary validation.
	ErrInvalidProduct = errors.New("invalid product")
)
