package domain

import (
	"context"
	"time"

	"playcourt/internal/models"
)

// Store is the durable persistence surface consumed by the services and
// background workers. *database.DB is the production implementation.
type Store interface {
	// Courts and venues (managed by out-of-scope CRUD; read-mostly here).
	GetCourt(ctx context.Context, id int64) (*models.Court, error)
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	CreateVenue(ctx context.Context, venue *models.Venue) error
	CreateCourt(ctx context.Context, court *models.Court) error
	DeactivateCourt(ctx context.Context, id int64) error
	DeactivatedCourts(ctx context.Context) ([]*models.Court, error)

	// Bookings.
	CreateBookingWithOverlapCheck(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	BookingsByUser(ctx context.Context, userID int64) ([]*models.Booking, error)
	HasOverlappingBooking(ctx context.Context, courtID int64, start, end time.Time, excludeID int64) (bool, error)
	ConfirmBooking(ctx context.Context, bookingID int64, now time.Time) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64, reason string, now time.Time) error
	ExpireDueBookings(ctx context.Context, now time.Time) (int64, error)
	CompleteBookingWithPayout(ctx context.Context, bookingID int64, now time.Time) (*models.Booking, error)
	ConfirmedFutureBookings(ctx context.Context, courtID int64, now time.Time) ([]*models.Booking, error)
	RefundAndCancelBooking(ctx context.Context, bookingID int64, refundAmount float64, reason, referenceID string, now time.Time) error

	// Wallet ledger.
	CreateWallet(ctx context.Context, userID int64, now time.Time) (*models.Wallet, error)
	GetWalletByUser(ctx context.Context, userID int64) (*models.Wallet, error)
	CreditWallet(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64, now time.Time) (*models.Wallet, error)
	DebitWallet(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64, now time.Time) (*models.Wallet, error)
	TransactionByReference(ctx context.Context, referenceID string) (*models.Transaction, error)
	TransactionHistory(ctx context.Context, userID int64, page, pageSize int) ([]*models.Transaction, error)

	// Discounts and ratings (pricing inputs).
	CreateDiscount(ctx context.Context, discount *models.Discount) error
	ApplicableDiscounts(ctx context.Context, venueID, courtID int64, at time.Time) ([]*models.Discount, error)
	ExpiredDiscounts(ctx context.Context, now time.Time) ([]*models.Discount, error)
	DeleteDiscount(ctx context.Context, id int64) error
	CreateRating(ctx context.Context, rating *models.Rating) error
	CourtRatingScores(ctx context.Context, courtID int64) ([]int, error)

	// Games.
	CreateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, id int64) (*models.Game, error)
	JoinGame(ctx context.Context, gameID, userID int64, now time.Time) error
	LeaveGame(ctx context.Context, gameID, userID int64) error
	StartedUnderMinGames(ctx context.Context, now time.Time) ([]*models.Game, error)
	UpdateGameStatus(ctx context.Context, id int64, status string) error
	CompleteGame(ctx context.Context, id int64, now time.Time) error
}

// LockStore is the shared cache used for the slot mutex and demand
// counters. Implementations live in internal/repository.
type LockStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Increment adds one to the counter at key, applying ttl when the
	// counter is created, and returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// SetNX stores value only if key is absent; reports whether it won.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// SlotLocker serializes reservation attempts for one (court, slotStart).
type SlotLocker interface {
	TryAcquire(ctx context.Context, courtID int64, slotStart time.Time) (bool, error)
	Release(ctx context.Context, courtID int64, slotStart time.Time)
}

// PricingEngine computes a slot's final price and its components.
type PricingEngine interface {
	Breakdown(ctx context.Context, courtID int64, slotStart time.Time) (*models.PricingBreakdown, error)
	TrackSlotView(ctx context.Context, courtID int64, slotStart time.Time) error
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingService owns the booking state machine.
type BookingService interface {
	LockSlot(ctx context.Context, userID, courtID int64, slotStart, slotEnd time.Time) (*models.Booking, error)
	ConfirmBooking(ctx context.Context, userID, bookingID int64) (*models.Booking, error)
	CancelBooking(ctx context.Context, userID, bookingID int64, reason string) (*models.Booking, error)
	CompleteBooking(ctx context.Context, bookingID int64) (*models.Booking, error)
	IsSlotAvailable(ctx context.Context, courtID int64, slotStart, slotEnd time.Time) (bool, error)
	GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error)
	ListMyBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	ExpirePendingBookings(ctx context.Context) (int64, error)
}

// WalletService owns balances and the transaction ledger.
type WalletService interface {
	AddFunds(ctx context.Context, userID int64, amount float64, idempotencyKey string) (*models.Wallet, error)
	Credit(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64) (*models.Wallet, error)
	Debit(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64) (*models.Wallet, error)
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	TransactionHistory(ctx context.Context, userID int64, page, pageSize int) ([]*models.Transaction, error)
}

// GameService owns group games tied to bookings.
type GameService interface {
	CreateGame(ctx context.Context, userID int64, game *models.Game) (*models.Game, error)
	GetGame(ctx context.Context, gameID int64) (*models.Game, error)
	JoinGame(ctx context.Context, userID, gameID int64) (*models.Game, error)
	LeaveGame(ctx context.Context, userID, gameID int64) (*models.Game, error)
	CompleteGame(ctx context.Context, gameID int64) error
	AutoCancelGames(ctx context.Context) (int, error)
}
