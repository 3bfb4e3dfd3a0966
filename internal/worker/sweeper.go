package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"playcourt/internal/clock"
	"playcourt/internal/domain"
	"playcourt/internal/metrics"
	"playcourt/internal/models"
	"playcourt/internal/pricing"
)

const (
	SweepExpiry      = "booking_expiry"
	SweepGameCancel  = "game_auto_cancel"
	SweepCourtRefund = "court_refund"
	SweepDiscounts   = "discount_prune"
)

// DiscountPruner is the slice of the venue service the sweeper needs.
type DiscountPruner interface {
	PruneExpiredDiscounts(ctx context.Context) (int, error)
}

// SweeperConfig carries the loop intervals. Zero values get defaults.
type SweeperConfig struct {
	ExpiryInterval      time.Duration
	GameCancelInterval  time.Duration
	CourtRefundInterval time.Duration
	DiscountInterval    time.Duration
}

func (c *SweeperConfig) applyDefaults() {
	if c.ExpiryInterval <= 0 {
		c.ExpiryInterval = time.Minute
	}
	if c.GameCancelInterval <= 0 {
		c.GameCancelInterval = time.Minute
	}
	if c.CourtRefundInterval <= 0 {
		c.CourtRefundInterval = 30 * time.Minute
	}
	if c.DiscountInterval <= 0 {
		c.DiscountInterval = 6 * time.Hour
	}
}

// Sweeper runs the periodic reconciliation loops: expiring stale pending
// bookings, cancelling under-subscribed games, refunding bookings on
// deactivated courts, and pruning lapsed discounts. Every pass is
// idempotent, so overlapping or repeated runs are harmless.
type Sweeper struct {
	store     domain.Store
	bookings  domain.BookingService
	games     domain.GameService
	discounts DiscountPruner
	cfg       SweeperConfig
	retry     RetryPolicy
	clock     clock.Clock
	logger    *zerolog.Logger

	wg sync.WaitGroup
}

func NewSweeper(store domain.Store, bookings domain.BookingService, games domain.GameService, discounts DiscountPruner, cfg SweeperConfig, clk clock.Clock, logger *zerolog.Logger) *Sweeper {
	cfg.applyDefaults()
	return &Sweeper{
		store:     store,
		bookings:  bookings,
		games:     games,
		discounts: discounts,
		cfg:       cfg,
		retry: RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  2 * time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2,
		},
		clock:  clk,
		logger: logger,
	}
}

// Start launches every loop. Loops stop when ctx is cancelled; Wait blocks
// until they have drained.
func (s *Sweeper) Start(ctx context.Context) {
	s.launch(ctx, SweepExpiry, s.cfg.ExpiryInterval, s.sweepExpiredBookings)
	s.launch(ctx, SweepGameCancel, s.cfg.GameCancelInterval, s.sweepUnderMinGames)
	s.launch(ctx, SweepCourtRefund, s.cfg.CourtRefundInterval, s.sweepDeactivatedCourts)
	s.launch(ctx, SweepDiscounts, s.cfg.DiscountInterval, s.sweepExpiredDiscounts)
	s.logger.Info().Msg("sweeper loops started")
}

// Wait blocks until all loops have exited.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) launch(ctx context.Context, name string, interval time.Duration, pass func(context.Context) (int, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runPass(ctx, name, pass)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runPass(ctx, name, pass)
			}
		}
	}()
}

// runPass executes one sweep with backoff on transient failure.
func (s *Sweeper) runPass(ctx context.Context, name string, pass func(context.Context) (int, error)) {
	for attempt := 1; ; attempt++ {
		processed, err := pass(ctx)
		if err == nil {
			metrics.AddSweepProcessed(name, processed)
			if processed > 0 {
				s.logger.Info().Str("sweep", name).Int("processed", processed).Msg("sweep pass done")
			}
			return
		}

		s.logger.Error().Err(err).Str("sweep", name).Int("attempt", attempt).Msg("sweep pass failed")
		if attempt > s.retry.MaxRetries {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retry.NextDelay(attempt)):
		}
	}
}

func (s *Sweeper) sweepExpiredBookings(ctx context.Context) (int, error) {
	count, err := s.bookings.ExpirePendingBookings(ctx)
	return int(count), err
}

func (s *Sweeper) sweepUnderMinGames(ctx context.Context) (int, error) {
	return s.games.AutoCancelGames(ctx)
}

// sweepDeactivatedCourts refunds every confirmed future booking on courts
// that were taken out of service. The refund is always 100%, whatever the
// cancellation schedule would normally pay.
func (s *Sweeper) sweepDeactivatedCourts(ctx context.Context) (int, error) {
	now := s.clock.Now()
	courts, err := s.store.DeactivatedCourts(ctx)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, court := range courts {
		bookings, err := s.store.ConfirmedFutureBookings(ctx, court.ID, now)
		if err != nil {
			s.logger.Error().Err(err).Int64("court_id", court.ID).Msg("list refundable bookings failed")
			continue
		}

		for _, booking := range bookings {
			reason := fmt.Sprintf("Court %q deactivated", court.Name)
			reference := fmt.Sprintf("court_refund_booking_%d", booking.ID)
			refund := pricing.RefundAmount(booking.AmountPaid, models.RefundPercentCourtDeactivated)
			if err := s.store.RefundAndCancelBooking(ctx, booking.ID, refund, reason, reference, now); err != nil {
				s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("forced refund failed")
				continue
			}
			metrics.IncBookingTransition(models.StatusCancelled)
			if refund > 0 {
				metrics.IncWalletTransaction(models.TransactionCredit)
			}
			refunded++
		}
	}
	return refunded, nil
}

func (s *Sweeper) sweepExpiredDiscounts(ctx context.Context) (int, error) {
	return s.discounts.PruneExpiredDiscounts(ctx)
}
