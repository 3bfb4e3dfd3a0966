package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
	StatusCompleted = "completed"
)

const (
	GameStatusOpen      = "open"
	GameStatusFull      = "full"
	GameStatusCancelled = "cancelled"
	GameStatusCompleted = "completed"
)

const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

const (
	DiscountScopeVenue = "venue"
	DiscountScopeCourt = "court"
)

const (
	// SlotLockTTL caps how long a reservation attempt may hold the slot
	// mutex, and how long a pending booking keeps its price locked.
	SlotLockTTL = 5 * time.Minute

	// SlotViewWindow is the decay window for the demand view counter.
	SlotViewWindow = 10 * time.Minute
)

// Demand multiplier tiers by view count within SlotViewWindow.
// A single viewer keeps the base tier; the surcharge starts at two.
const (
	DemandMultiplierNoViewers   = 1.0
	DemandMultiplier2To5Viewers = 1.2
	DemandMultiplierOver5       = 1.5
)

// Time-to-slot multiplier tiers.
const (
	TimeMultiplierOver24Hours = 1.0
	TimeMultiplier6To24Hours  = 1.2
	TimeMultiplierUnder6Hours = 1.5
)

// Historical popularity multiplier tiers by average court rating.
const (
	HistoricalMultiplierLow    = 1.0 // no ratings or average below 3
	HistoricalMultiplierMedium = 1.2 // average exactly 3
	HistoricalMultiplierHigh   = 1.5 // average 4 and up
)

// Refund percentages by hours remaining until slot start. Boundaries are
// inclusive toward the larger refund: exactly 24h yields 100, exactly 6h
// yields 50.
const (
	RefundPercentOver24Hours      = 100.0
	RefundPercent6To24Hours       = 50.0
	RefundPercentUnder6Hours      = 0.0
	RefundPercentCourtDeactivated = 100.0

	FullRefundWindowHours    = 24.0
	PartialRefundWindowHours = 6.0
)

const (
	// DefaultPageSize for transaction history pagination.
	DefaultPageSize = 20

	// MaxPageSize bounds a caller-supplied page size.
	MaxPageSize = 100
)
