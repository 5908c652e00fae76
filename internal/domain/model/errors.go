package model

import (
	"errors"
	"fmt"
)

// ErrDuplicateActiveTrade means the symbol already has a pending or
// approved trade. Callers treat it as a skip, not a failure.
var ErrDuplicateActiveTrade = errors.New("active trade already exists for symbol")

// ErrInvalidTransition means the requested status change violates the
// trade state machine. No state was changed.
var ErrInvalidTransition = errors.New("invalid trade status transition")

// ErrTradeNotFound means no trade with the given id exists.
var ErrTradeNotFound = errors.New("trade not found")

// ValidationError reports a malformed proposal or market input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExchangeError carries the exchange's own rejection message.
type ExchangeError struct {
	Code    int
	Message string
}

func (e *ExchangeError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("exchange error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("exchange error: %s", e.Message)
}
