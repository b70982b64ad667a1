package domain

import "errors"

var (
	ErrInvalidTeam         = errors.New("invalid team")
	ErrInvalidQuarter      = errors.New("invalid quarter")
	ErrInvalidNumericInput = errors.New("invalid numeric input")
	ErrAuthentication      = errors.New("authentication failed")
	ErrDivisionByZero      = errors.New("division by zero: allocation vector sums to zero")
	ErrTrackerQuery        = errors.New("tracker query failed")
)
