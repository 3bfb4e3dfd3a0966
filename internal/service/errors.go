package service

import "errors"

var (
	ErrSlotLockHeld    = errors.New("slot is being reserved by another user")
	ErrLockExpired     = errors.New("booking lock has expired")
	ErrNotBookingOwner = errors.New("booking belongs to another user")
	ErrCourtInactive   = errors.New("court is not active")
	ErrOutsideHours    = errors.New("slot is outside court operating hours")
	ErrSlotInPast      = errors.New("slot start is in the past")
	ErrInvalidSlot     = errors.New("slot end must be after slot start")
	ErrSlotTooShort    = errors.New("slot is shorter than the court's slot duration")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrMissingIdemKey  = errors.New("idempotency key is required")
	ErrInvalidPlayers  = errors.New("invalid player limits")
)
