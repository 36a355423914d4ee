package token

import "errors"

var (
	ErrNilState            = errors.New("token: state not configured")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrUnauthorized        = errors.New("token: unauthorized")
	ErrRateMustNotIncrease = errors.New("token: interest rate must not increase")
	ErrRateNotSet          = errors.New("token: global interest rate not initialised")
	ErrInvalidRate         = errors.New("token: interest rate must not be negative")
	ErrTimeReversed        = errors.New("token: last accrual timestamp is in the future")
)
