package helpers

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Sentinels (match with errors.Is)
// -----------------------------------------------------------------------------

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrNoData              = errors.New("no data for symbol")
	ErrTotalRefreshFailure = errors.New("total refresh failure")
	ErrInvalidInput        = errors.New("invalid input")
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type QuoteTickerError struct {
	Message string
	Cause   error
}

func (e *QuoteTickerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *QuoteTickerError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As; each also matches its sentinel.
type ProviderUnavailableError struct {
	QuoteTickerError
	Provider string
}
type NoDataError struct {
	QuoteTickerError
	Symbol string
}
type TotalRefreshFailureError struct {
	QuoteTickerError
	Symbols int
}
type InvalidInputError struct{ QuoteTickerError }
type DatabaseError struct{ QuoteTickerError }
type NetworkError struct {
	QuoteTickerError
	StatusCode int
}

func (e *ProviderUnavailableError) Is(target error) bool { return target == ErrProviderUnavailable }
func (e *NoDataError) Is(target error) bool              { return target == ErrNoData }
func (e *TotalRefreshFailureError) Is(target error) bool { return target == ErrTotalRefreshFailure }
func (e *InvalidInputError) Is(target error) bool        { return target == ErrInvalidInput }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewProviderUnavailable(provider, symbol string, cause error) error {
	return &ProviderUnavailableError{
		QuoteTickerError: QuoteTickerError{Message: fmt.Sprintf("%s unavailable for %s", provider, symbol), Cause: cause},
		Provider:         provider,
	}
}

// -----------------------------------------------------------------------------

func NewNoData(provider, symbol string) error {
	return &NoDataError{
		QuoteTickerError: QuoteTickerError{Message: fmt.Sprintf("%s has no data for %s", provider, symbol)},
		Symbol:           symbol,
	}
}

// -----------------------------------------------------------------------------

func NewTotalRefreshFailure(symbols int) error {
	return &TotalRefreshFailureError{
		QuoteTickerError: QuoteTickerError{Message: fmt.Sprintf("no quotes resolved for %d symbols", symbols)},
		Symbols:          symbols,
	}
}

// -----------------------------------------------------------------------------

func NewInvalidInput(format string, args ...interface{}) error {
	return &InvalidInputError{QuoteTickerError{Message: fmt.Sprintf(format, args...)}}
}

// -----------------------------------------------------------------------------

func NewDatabaseError(operation string, cause error) error {
	return &DatabaseError{QuoteTickerError{Message: fmt.Sprintf("%s failed", operation), Cause: cause}}
}

// -----------------------------------------------------------------------------

func NewNetworkError(message string, status int, cause error) error {
	return &NetworkError{
		QuoteTickerError: QuoteTickerError{Message: message, Cause: cause},
		StatusCode:       status,
	}
}
