package apperrors

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Validation errors are rejected before evaluation and never recorded
	// as policy decisions.
	ErrValidation       = errors.New("validation failed")
	ErrCurrencyMismatch = errors.New("currency does not match delegation currency")
	ErrUnknownAction    = errors.New("unknown delegation action")

	// ErrInvalidTransition is returned for lifecycle transitions the state
	// machine does not permit. No ledger entry is written.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrLedgerHalted is returned for append attempts on a ledger that
	// failed verification and has not yet been corrected.
	ErrLedgerHalted = errors.New("audit ledger halted pending review")
)
