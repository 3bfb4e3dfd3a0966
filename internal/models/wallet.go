package models

import "time"

type Wallet struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is an append-only ledger entry. Rows are never updated or
// deleted; corrections happen through compensating entries.
type Transaction struct {
	ID           int64     `json:"id"`
	WalletID     int64     `json:"wallet_id"`
	Type         string    `json:"type"` // credit, debit
	Amount       float64   `json:"amount"`
	BalanceAfter float64   `json:"balance_after"`
	Description  string    `json:"description"`
	ReferenceID  string    `json:"reference_id,omitempty"` // idempotency key
	BookingID    *int64    `json:"booking_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
