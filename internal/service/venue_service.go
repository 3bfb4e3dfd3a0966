package service

import (
	"context"

	"github.com/rs/zerolog"

	"playcourt/internal/clock"
	"playcourt/internal/domain"
	"playcourt/internal/models"
)

// VenueService covers venue and court administration plus the pricing
// inputs attached to them: discounts and ratings. Deactivating a court only
// flips the flag here; the refund sweep picks up its future bookings.
type VenueService struct {
	store  domain.Store
	clock  clock.Clock
	logger *zerolog.Logger
}

func NewVenueService(store domain.Store, clk clock.Clock, logger *zerolog.Logger) *VenueService {
	return &VenueService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

func (s *VenueService) CreateVenue(ctx context.Context, ownerID int64, name string) (*models.Venue, error) {
	venue := &models.Venue{
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateVenue(ctx, venue); err != nil {
		return nil, err
	}
	return venue, nil
}

func (s *VenueService) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	return s.store.GetVenue(ctx, id)
}

func (s *VenueService) CreateCourt(ctx context.Context, court *models.Court) (*models.Court, error) {
	court.IsActive = true
	court.CreatedAt = s.clock.Now()
	if err := s.store.CreateCourt(ctx, court); err != nil {
		return nil, err
	}
	return court, nil
}

func (s *VenueService) GetCourt(ctx context.Context, id int64) (*models.Court, error) {
	return s.store.GetCourt(ctx, id)
}

func (s *VenueService) DeactivateCourt(ctx context.Context, id int64) error {
	if err := s.store.DeactivateCourt(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("court_id", id).Msg("court deactivated, future bookings queued for refund")
	return nil
}

func (s *VenueService) RateCourt(ctx context.Context, userID, courtID int64, score int) error {
	rating := &models.Rating{
		CourtID:   courtID,
		UserID:    userID,
		Score:     score,
		CreatedAt: s.clock.Now(),
	}
	return s.store.CreateRating(ctx, rating)
}

func (s *VenueService) CreateDiscount(ctx context.Context, discount *models.Discount) (*models.Discount, error) {
	discount.IsActive = true
	discount.CreatedAt = s.clock.Now()
	if err := s.store.CreateDiscount(ctx, discount); err != nil {
		return nil, err
	}
	return discount, nil
}

// PruneExpiredDiscounts removes discounts past their validity window and
// returns how many went.
func (s *VenueService) PruneExpiredDiscounts(ctx context.Context) (int, error) {
	expired, err := s.store.ExpiredDiscounts(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, d := range expired {
		if err := s.store.DeleteDiscount(ctx, d.ID); err != nil {
			s.logger.Error().Err(err).Int64("discount_id", d.ID).Msg("discount prune failed")
			continue
		}
		pruned++
	}
	return pruned, nil
}
