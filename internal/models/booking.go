package models

import "time"

type Booking struct {
	ID                 int64      `json:"id"`
	CourtID            int64      `json:"court_id"`
	UserID             int64      `json:"user_id"`
	SlotStart          time.Time  `json:"slot_start"`
	SlotEnd            time.Time  `json:"slot_end"`
	Status             string     `json:"status"` // pending, confirmed, cancelled, expired, completed
	PriceLocked        float64    `json:"price_locked"`
	AmountPaid         float64    `json:"amount_paid"`
	LockExpiryTime     time.Time  `json:"lock_expiry_time"`
	CreatedAt          time.Time  `json:"created_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	GameID             *int64     `json:"game_id,omitempty"`
}

// Active reports whether the booking still occupies its slot.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// Overlaps reports whether [start, end) intersects the booking's slot.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.SlotStart.Before(end) && b.SlotEnd.After(start)
}
