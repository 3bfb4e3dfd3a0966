package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"playcourt/internal/clock"
	"playcourt/internal/database"
	"playcourt/internal/domain"
	"playcourt/internal/events"
	"playcourt/internal/metrics"
	"playcourt/internal/models"
)

// WalletService fronts the wallet ledger. Every balance change is recorded
// as a transaction row; deposits are idempotent on their reference key, so
// a retried top-up is applied at most once.
type WalletService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	clock    clock.Clock
	logger   *zerolog.Logger
}

func NewWalletService(store domain.Store, eventBus domain.EventPublisher, clk clock.Clock, logger *zerolog.Logger) *WalletService {
	return &WalletService{
		store:    store,
		eventBus: eventBus,
		clock:    clk,
		logger:   logger,
	}
}

// AddFunds tops up the user's wallet, creating it on first use. Replays of
// the same idempotency key return the wallet unchanged.
func (s *WalletService) AddFunds(ctx context.Context, userID int64, amount float64, idempotencyKey string) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return nil, ErrMissingIdemKey
	}

	now := s.clock.Now()
	if _, err := s.store.CreateWallet(ctx, userID, now); err != nil {
		return nil, err
	}

	existing, err := s.store.TransactionByReference(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info().Int64("user_id", userID).Str("reference", idempotencyKey).Msg("deposit replayed, returning current wallet")
		return s.store.GetWalletByUser(ctx, userID)
	}

	description := fmt.Sprintf("Deposit of %.2f", amount)
	wallet, err := s.store.CreditWallet(ctx, userID, amount, description, idempotencyKey, nil, now)
	if errors.Is(err, database.ErrDuplicateReference) {
		// Lost the race against a concurrent replay of the same key.
		return s.store.GetWalletByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	metrics.IncWalletTransaction(models.TransactionCredit)
	s.publishWalletEvent(events.EventWalletCredited, wallet, amount, description, idempotencyKey)
	return wallet, nil
}

// Credit adds funds without idempotency semantics beyond the optional
// reference id. Used for refunds and payouts issued by the system.
func (s *WalletService) Credit(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.store.CreditWallet(ctx, userID, amount, description, referenceID, bookingID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.IncWalletTransaction(models.TransactionCredit)
	s.publishWalletEvent(events.EventWalletCredited, wallet, amount, description, referenceID)
	return wallet, nil
}

// Debit removes funds; the store rejects the operation rather than let the
// balance go negative.
func (s *WalletService) Debit(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.store.DebitWallet(ctx, userID, amount, description, referenceID, bookingID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	metrics.IncWalletTransaction(models.TransactionDebit)
	s.publishWalletEvent(events.EventWalletDebited, wallet, amount, description, referenceID)
	return wallet, nil
}

func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return s.store.GetWalletByUser(ctx, userID)
}

func (s *WalletService) TransactionHistory(ctx context.Context, userID int64, page, pageSize int) ([]*models.Transaction, error) {
	return s.store.TransactionHistory(ctx, userID, page, pageSize)
}

func (s *WalletService) publishWalletEvent(eventType string, wallet *models.Wallet, amount float64, description, referenceID string) {
	if s.eventBus == nil {
		return
	}

	payload := events.WalletEventPayload{
		UserID:      wallet.UserID,
		Amount:      amount,
		Balance:     wallet.Balance,
		Description: description,
		ReferenceID: referenceID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("user_id", wallet.UserID).Msg("publish event error")
	}
}
