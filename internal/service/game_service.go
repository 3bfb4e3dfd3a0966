package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"playcourt/internal/clock"
	"playcourt/internal/domain"
	"playcourt/internal/events"
	"playcourt/internal/metrics"
	"playcourt/internal/models"
	"playcourt/internal/pricing"
)

// GameService manages open group games layered over bookings. A game that
// reaches its start time without the minimum head count is auto-cancelled,
// and its backing booking cancelled on the usual refund schedule.
type GameService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	clock    clock.Clock
	logger   *zerolog.Logger
}

func NewGameService(store domain.Store, eventBus domain.EventPublisher, clk clock.Clock, logger *zerolog.Logger) *GameService {
	return &GameService{
		store:    store,
		eventBus: eventBus,
		clock:    clk,
		logger:   logger,
	}
}

func (s *GameService) CreateGame(ctx context.Context, userID int64, game *models.Game) (*models.Game, error) {
	if game.MinPlayers < 2 || game.MaxPlayers < game.MinPlayers {
		return nil, ErrInvalidPlayers
	}
	if !game.EndTime.After(game.StartTime) {
		return nil, ErrInvalidSlot
	}
	if !game.StartTime.After(s.clock.Now()) {
		return nil, ErrSlotInPast
	}

	game.CreatedBy = userID
	game.Status = models.GameStatusOpen
	game.CreatedAt = s.clock.Now()
	if err := s.store.CreateGame(ctx, game); err != nil {
		return nil, err
	}

	s.publishGameEvent(events.EventGameCreated, game)
	s.logger.Info().Int64("game_id", game.ID).Int64("court_id", game.CourtID).Msg("game created")
	return game, nil
}

func (s *GameService) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	return s.store.GetGame(ctx, gameID)
}

func (s *GameService) JoinGame(ctx context.Context, userID, gameID int64) (*models.Game, error) {
	if err := s.store.JoinGame(ctx, gameID, userID, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.store.GetGame(ctx, gameID)
}

func (s *GameService) LeaveGame(ctx context.Context, userID, gameID int64) (*models.Game, error) {
	if err := s.store.LeaveGame(ctx, gameID, userID); err != nil {
		return nil, err
	}
	return s.store.GetGame(ctx, gameID)
}

// CompleteGame closes a finished game. When a booking backs the game,
// completion settles the booking too, crediting the venue owner.
func (s *GameService) CompleteGame(ctx context.Context, gameID int64) error {
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.store.CompleteGame(ctx, gameID, now); err != nil {
		return err
	}

	if game.BookingID != nil {
		completed, err := s.store.CompleteBookingWithPayout(ctx, *game.BookingID, now)
		if err != nil {
			return err
		}
		metrics.IncBookingTransition(models.StatusCompleted)
		if completed.AmountPaid > 0 {
			metrics.IncWalletTransaction(models.TransactionCredit)
		}
		s.logger.Info().Int64("game_id", gameID).Int64("booking_id", *game.BookingID).
			Float64("payout", completed.AmountPaid).Msg("game completed with payout")
	}
	return nil
}

// AutoCancelGames cancels games that started without enough players and
// cascades into their backing bookings. Each game is handled independently;
// one failure does not stop the sweep.
func (s *GameService) AutoCancelGames(ctx context.Context) (int, error) {
	now := s.clock.Now()
	games, err := s.store.StartedUnderMinGames(ctx, now)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, game := range games {
		if err := s.store.UpdateGameStatus(ctx, game.ID, models.GameStatusCancelled); err != nil {
			s.logger.Error().Err(err).Int64("game_id", game.ID).Msg("game auto-cancel failed")
			continue
		}

		if game.BookingID != nil {
			reason := "Game Cancelled (Min players not met)"
			if err := s.cancelGameBooking(ctx, *game.BookingID, reason, now); err != nil {
				s.logger.Error().Err(err).Int64("game_id", game.ID).
					Int64("booking_id", *game.BookingID).Msg("game booking cancel failed")
			}
		}

		game.Status = models.GameStatusCancelled
		s.publishGameEvent(events.EventGameCancelled, game)
		cancelled++
	}

	if cancelled > 0 {
		s.logger.Info().Int("count", cancelled).Msg("auto-cancelled under-min games")
	}
	return cancelled, nil
}

// cancelGameBooking cascades a game cancellation into its backing booking,
// refunding on the same sliding schedule a user-driven cancel would apply.
// A game is only swept after its start time, so in practice the refund is
// zero; the money stays forfeited.
func (s *GameService) cancelGameBooking(ctx context.Context, bookingID int64, reason string, now time.Time) error {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}

	switch booking.Status {
	case models.StatusConfirmed:
		percent := pricing.RefundPercent(now, booking.SlotStart)
		refund := pricing.RefundAmount(booking.AmountPaid, percent)
		reference := fmt.Sprintf("game_cancel_booking_%d", bookingID)
		if err := s.store.RefundAndCancelBooking(ctx, bookingID, refund, reason, reference, now); err != nil {
			return err
		}
		if refund > 0 {
			metrics.IncWalletTransaction(models.TransactionCredit)
		}
	case models.StatusPending:
		if err := s.store.CancelBooking(ctx, bookingID, reason, now); err != nil {
			return err
		}
	default:
		return nil
	}

	metrics.IncBookingTransition(models.StatusCancelled)
	return nil
}

func (s *GameService) publishGameEvent(eventType string, game *models.Game) {
	if s.eventBus == nil {
		return
	}

	payload := events.GameEventPayload{
		GameID:         game.ID,
		CourtID:        game.CourtID,
		Status:         game.Status,
		CurrentPlayers: game.CurrentPlayers,
		MinPlayers:     game.MinPlayers,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("game_id", game.ID).Msg("publish event error")
	}
}
