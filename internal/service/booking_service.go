package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"playcourt/internal/clock"
	"playcourt/internal/database"
	"playcourt/internal/domain"
	"playcourt/internal/events"
	"playcourt/internal/metrics"
	"playcourt/internal/models"
	"playcourt/internal/pricing"
)

// BookingService drives the booking lifecycle: lock a slot at a quoted
// price, confirm it by debiting the wallet, cancel it with a time-based
// refund, complete it with a payout to the venue owner.
type BookingService struct {
	store    domain.Store
	locker   domain.SlotLocker
	pricer   domain.PricingEngine
	eventBus domain.EventPublisher
	clock    clock.Clock
	logger   *zerolog.Logger
}

func NewBookingService(store domain.Store, locker domain.SlotLocker, pricer domain.PricingEngine, eventBus domain.EventPublisher, clk clock.Clock, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:    store,
		locker:   locker,
		pricer:   pricer,
		eventBus: eventBus,
		clock:    clk,
		logger:   logger,
	}
}

func (s *BookingService) validateSlot(court *models.Court, slotStart, slotEnd, now time.Time) error {
	if !slotEnd.After(slotStart) {
		return ErrInvalidSlot
	}
	if slotEnd.Sub(slotStart) < time.Duration(court.SlotDurationMinutes)*time.Minute {
		return ErrSlotTooShort
	}
	if !slotStart.After(now) {
		return ErrSlotInPast
	}
	if !court.IsActive {
		return ErrCourtInactive
	}
	if !court.WithinOperatingHours(slotStart, slotEnd) {
		return ErrOutsideHours
	}
	return nil
}

// LockSlot reserves a slot: takes the slot mutex, prices the slot, and
// persists a pending booking with that price locked in. The caller has
// until the lock expiry to confirm.
func (s *BookingService) LockSlot(ctx context.Context, userID, courtID int64, slotStart, slotEnd time.Time) (*models.Booking, error) {
	now := s.clock.Now()

	court, err := s.store.GetCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}
	if err := s.validateSlot(court, slotStart, slotEnd, now); err != nil {
		return nil, err
	}

	acquired, err := s.locker.TryAcquire(ctx, courtID, slotStart)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrSlotLockHeld
	}

	breakdown, err := s.pricer.Breakdown(ctx, courtID, slotStart)
	if err != nil {
		s.locker.Release(ctx, courtID, slotStart)
		return nil, err
	}

	booking := &models.Booking{
		CourtID:        courtID,
		UserID:         userID,
		SlotStart:      slotStart.UTC(),
		SlotEnd:        slotEnd.UTC(),
		Status:         models.StatusPending,
		PriceLocked:    breakdown.FinalPrice,
		LockExpiryTime: now.Add(models.SlotLockTTL),
		CreatedAt:      now,
	}
	if err := s.store.CreateBookingWithOverlapCheck(ctx, booking); err != nil {
		s.locker.Release(ctx, courtID, slotStart)
		return nil, err
	}

	metrics.IncBookingTransition(models.StatusPending)
	s.publishBookingEvent(events.EventBookingLocked, booking, "")
	s.logger.Info().Int64("booking_id", booking.ID).Int64("court_id", courtID).
		Float64("price", booking.PriceLocked).Msg("slot locked")

	return booking, nil
}

// ConfirmBooking charges the quoted price from the user's wallet and flips
// the booking to confirmed. A lapsed lock cancels the booking instead.
func (s *BookingService) ConfirmBooking(ctx context.Context, userID, bookingID int64) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrNotBookingOwner
	}
	if booking.Status != models.StatusPending {
		return nil, database.ErrInvalidStatus
	}

	now := s.clock.Now()
	if now.After(booking.LockExpiryTime) {
		if err := s.store.CancelBooking(ctx, bookingID, "Lock expired", now); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("cancel on lapsed lock failed")
		}
		s.locker.Release(ctx, booking.CourtID, booking.SlotStart)
		metrics.IncBookingTransition(models.StatusCancelled)
		return nil, ErrLockExpired
	}

	confirmed, err := s.store.ConfirmBooking(ctx, bookingID, now)
	if err != nil {
		return nil, err
	}
	s.locker.Release(ctx, booking.CourtID, booking.SlotStart)

	metrics.IncBookingTransition(models.StatusConfirmed)
	metrics.IncWalletTransaction(models.TransactionDebit)
	s.publishBookingEvent(events.EventBookingConfirmed, confirmed, "")
	s.logger.Info().Int64("booking_id", bookingID).Float64("amount", confirmed.AmountPaid).Msg("booking confirmed")

	return confirmed, nil
}

// CancelBooking cancels a pending or confirmed booking. Confirmed bookings
// are refunded on the sliding schedule: full refund a day or more out, half
// down to six hours, nothing after that.
func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID int64, reason string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrNotBookingOwner
	}

	now := s.clock.Now()
	if reason == "" {
		reason = "Cancelled by user"
	}

	switch booking.Status {
	case models.StatusPending:
		if err := s.store.CancelBooking(ctx, bookingID, reason, now); err != nil {
			return nil, err
		}
	case models.StatusConfirmed:
		percent := pricing.RefundPercent(now, booking.SlotStart)
		refund := pricing.RefundAmount(booking.AmountPaid, percent)
		reference := fmt.Sprintf("refund_booking_%d", bookingID)
		if err := s.store.RefundAndCancelBooking(ctx, bookingID, refund, reason, reference, now); err != nil {
			return nil, err
		}
		if refund > 0 {
			metrics.IncWalletTransaction(models.TransactionCredit)
		}
		s.logger.Info().Int64("booking_id", bookingID).Float64("refund", refund).
			Float64("percent", percent).Msg("booking cancelled with refund")
	default:
		return nil, database.ErrInvalidStatus
	}

	s.locker.Release(ctx, booking.CourtID, booking.SlotStart)
	metrics.IncBookingTransition(models.StatusCancelled)

	cancelled, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publishBookingEvent(events.EventBookingCancelled, cancelled, reason)
	return cancelled, nil
}

// CompleteBooking settles a finished confirmed booking: the amount paid is
// credited to the venue owner and the booking is closed.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	completed, err := s.store.CompleteBookingWithPayout(ctx, bookingID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(models.StatusCompleted)
	if completed.AmountPaid > 0 {
		metrics.IncWalletTransaction(models.TransactionCredit)
	}
	s.publishBookingEvent(events.EventBookingCompleted, completed, "")
	s.logger.Info().Int64("booking_id", bookingID).Float64("payout", completed.AmountPaid).Msg("booking completed")

	return completed, nil
}

// IsSlotAvailable reports whether the slot is free of pending and confirmed
// bookings. Advisory only: the authoritative overlap check runs inside the
// hold and confirm transactions.
func (s *BookingService) IsSlotAvailable(ctx context.Context, courtID int64, slotStart, slotEnd time.Time) (bool, error) {
	overlapping, err := s.store.HasOverlappingBooking(ctx, courtID, slotStart, slotEnd, 0)
	if err != nil {
		return false, err
	}
	return !overlapping, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}

func (s *BookingService) ListMyBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.store.BookingsByUser(ctx, userID)
}

// ExpirePendingBookings sweeps pending bookings whose lock has lapsed.
func (s *BookingService) ExpirePendingBookings(ctx context.Context) (int64, error) {
	count, err := s.store.ExpireDueBookings(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info().Int64("count", count).Msg("expired stale pending bookings")
	}
	return count, nil
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking, reason string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		CourtID:    booking.CourtID,
		SlotStart:  booking.SlotStart,
		SlotEnd:    booking.SlotEnd,
		Status:     booking.Status,
		Price:      booking.PriceLocked,
		AmountPaid: booking.AmountPaid,
		Reason:     reason,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
