package tokentx

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds returned by the service. Callers distinguish them with errors.Is.
var (
	// ErrInvalidInput means a parameter was malformed or missing. It is always
	// reported before any ledger call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAmount is the invalid-input case for amounts and decimals.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrInvalidInput)

	// ErrNotFound means a mint or account that had to exist does not.
	ErrNotFound = errors.New("not found")

	// ErrLedgerUnavailable means a read against the ledger endpoint failed.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrDerivationMismatch means a derived address disagreed with its own
	// derivation. It indicates a bug, never bad input.
	ErrDerivationMismatch = errors.New("derivation mismatch")
)

// Kind labels used in logs, metrics and HTTP responses.
const (
	KindInvalidInput       = "invalid_input"
	KindNotFound           = "not_found"
	KindLedgerUnavailable  = "ledger_unavailable"
	KindDerivationMismatch = "derivation_mismatch"
	KindCanceled           = "canceled"
	KindInternal           = "internal"
)

// Kind returns the failure label for err, or "" when err is nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrLedgerUnavailable):
		return KindLedgerUnavailable
	case errors.Is(err, ErrDerivationMismatch):
		return KindDerivationMismatch
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func invalidAmount(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAmount, fmt.Sprintf(format, args...))
}
