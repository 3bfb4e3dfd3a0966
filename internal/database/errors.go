package database

import "errors"

var (
	ErrCourtNotFound   = errors.New("court not found")
	ErrVenueNotFound   = errors.New("venue not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrGameNotFound    = errors.New("game not found")

	// ErrSlotUnavailable means a conflicting pending or confirmed booking
	// already occupies the requested interval.
	ErrSlotUnavailable = errors.New("slot is already booked")

	// ErrInsufficientFunds means a debit would take the balance negative.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	// ErrInvalidStatus means the booking or game is not in a state that
	// permits the requested transition.
	ErrInvalidStatus = errors.New("invalid status for this operation")

	// ErrDuplicateReference means a ledger entry with the same reference id
	// already exists; the caller should treat the operation as replayed.
	ErrDuplicateReference = errors.New("reference id already used")
)
