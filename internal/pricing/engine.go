package pricing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"playcourt/internal/clock"
	"playcourt/internal/domain"
	"playcourt/internal/models"
)

const (
	slotViewKeyFormat = "200601021504" // minute precision
)

// Engine computes slot prices from a base price and three independent
// multipliers (live demand, time until start, historical popularity), then
// applies the best active discount. The same inputs always produce the same
// breakdown, so a price quoted at lock time can be re-derived later.
type Engine struct {
	store  domain.Store
	cache  domain.LockStore
	clock  clock.Clock
	logger *zerolog.Logger
}

func NewEngine(store domain.Store, cache domain.LockStore, clk clock.Clock, logger *zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		cache:  cache,
		clock:  clk,
		logger: logger,
	}
}

func slotViewKey(courtID int64, slotStart time.Time) string {
	return fmt.Sprintf("slot_views:%d:%s", courtID, slotStart.UTC().Format(slotViewKeyFormat))
}

// TrackSlotView bumps the demand counter for a slot. The counter decays
// after SlotViewWindow so stale interest stops inflating prices.
func (e *Engine) TrackSlotView(ctx context.Context, courtID int64, slotStart time.Time) error {
	_, err := e.cache.Increment(ctx, slotViewKey(courtID, slotStart), models.SlotViewWindow)
	if err != nil {
		return fmt.Errorf("track slot view: %w", err)
	}
	return nil
}

// Breakdown prices a slot on the given court.
func (e *Engine) Breakdown(ctx context.Context, courtID int64, slotStart time.Time) (*models.PricingBreakdown, error) {
	court, err := e.store.GetCourt(ctx, courtID)
	if err != nil {
		return nil, err
	}

	demand, err := e.demandMultiplier(ctx, courtID, slotStart)
	if err != nil {
		// Pricing must not fail on a cache hiccup; fall back to base demand.
		e.logger.Warn().Err(err).Int64("court_id", courtID).Msg("Demand lookup failed, using base multiplier")
		demand = models.DemandMultiplierNoViewers
	}

	historical, err := e.historicalMultiplier(ctx, courtID)
	if err != nil {
		return nil, err
	}

	breakdown := &models.PricingBreakdown{
		BasePrice:            court.BasePrice,
		DemandMultiplier:     demand,
		TimeMultiplier:       timeMultiplier(e.clock.Now(), slotStart),
		HistoricalMultiplier: historical,
		DiscountFactor:       1.0,
	}

	preDiscount := breakdown.BasePrice * breakdown.DemandMultiplier * breakdown.TimeMultiplier * breakdown.HistoricalMultiplier

	discount, err := e.bestDiscount(ctx, court, slotStart)
	if err != nil {
		return nil, err
	}
	if discount != nil {
		breakdown.DiscountFactor = 1.0 - discount.PercentOff/100.0
	}

	breakdown.FinalPrice = round2(preDiscount * breakdown.DiscountFactor)
	breakdown.DiscountAmount = round2(preDiscount - breakdown.FinalPrice)

	return breakdown, nil
}

func (e *Engine) demandMultiplier(ctx context.Context, courtID int64, slotStart time.Time) (float64, error) {
	raw, err := e.cache.Get(ctx, slotViewKey(courtID, slotStart))
	if err != nil {
		return 0, err
	}
	views := int64(0)
	if raw != "" {
		views, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse view counter %q: %w", raw, err)
		}
	}

	switch {
	case views > 5:
		return models.DemandMultiplierOver5, nil
	case views >= 2:
		return models.DemandMultiplier2To5Viewers, nil
	default:
		return models.DemandMultiplierNoViewers, nil
	}
}

// timeMultiplier charges more the closer the slot is to starting. Slots in
// the past (only reachable through admin tooling) price at the base tier.
func timeMultiplier(now, slotStart time.Time) float64 {
	hours := slotStart.Sub(now).Hours()
	switch {
	case hours <= 0:
		return models.TimeMultiplierOver24Hours
	case hours > 24:
		return models.TimeMultiplierOver24Hours
	case hours >= 6:
		// 24 hours out is still the mid tier, the cheap tier starts
		// strictly past a full day.
		return models.TimeMultiplier6To24Hours
	default:
		return models.TimeMultiplierUnder6Hours
	}
}

func (e *Engine) historicalMultiplier(ctx context.Context, courtID int64) (float64, error) {
	scores, err := e.store.CourtRatingScores(ctx, courtID)
	if err != nil {
		return 0, err
	}
	if len(scores) == 0 {
		return models.HistoricalMultiplierLow, nil
	}

	sum := 0
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))

	switch {
	case avg >= 4:
		return models.HistoricalMultiplierHigh, nil
	case avg == 3:
		return models.HistoricalMultiplierMedium, nil
	default:
		return models.HistoricalMultiplierLow, nil
	}
}

func (e *Engine) bestDiscount(ctx context.Context, court *models.Court, slotStart time.Time) (*models.Discount, error) {
	discounts, err := e.store.ApplicableDiscounts(ctx, court.VenueID, court.ID, slotStart)
	if err != nil {
		return nil, err
	}
	if len(discounts) == 0 {
		return nil, nil
	}
	// Discounts never stack; the query orders by percent_off descending.
	return discounts[0], nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
