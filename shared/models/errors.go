package models

import "errors"

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAmount     = errors.New("amount must be greater than zero with at most two decimal places")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("origin and destination accounts must be different")
	ErrUserNotFound      = errors.New("user not found")
)

// IsValidation reports whether err is an expected rejection that should be
// returned to the caller as-is rather than treated as an internal failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSameAccount)
}
