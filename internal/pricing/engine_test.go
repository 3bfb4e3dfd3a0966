package pricing

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playcourt/internal/clock"
	"playcourt/internal/database"
	"playcourt/internal/models"
	"playcourt/internal/repository"
)

func newTestEngine(t *testing.T, now time.Time) (*Engine, *database.DB, *clock.Fixed) {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFixed(now)
	engine := NewEngine(db, repository.NewMemoryLockStore(), clk, &logger)
	return engine, db, clk
}

func seedCourt(t *testing.T, db *database.DB, basePrice float64) *models.Court {
	t.Helper()
	ctx := context.Background()

	venue := &models.Venue{OwnerID: 1, Name: "Center Court Club"}
	require.NoError(t, db.CreateVenue(ctx, venue))

	court := &models.Court{
		VenueID:             venue.ID,
		Name:                "Court 1",
		SlotDurationMinutes: 60,
		BasePrice:           basePrice,
		OpenTime:            "06:00",
		CloseTime:           "23:00",
		IsActive:            true,
	}
	require.NoError(t, db.CreateCourt(ctx, court))
	return court
}

func TestTimeMultiplier(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		until time.Duration
		want  float64
	}{
		{"FarOut", 48 * time.Hour, 1.0},
		{"JustOver24Hours", 24*time.Hour + time.Minute, 1.0},
		{"Exactly24Hours", 24 * time.Hour, 1.2},
		{"JustUnder24Hours", 24*time.Hour - time.Minute, 1.2},
		{"Exactly6Hours", 6 * time.Hour, 1.2},
		{"JustUnder6Hours", 6*time.Hour - time.Minute, 1.5},
		{"AlreadyStarted", -time.Hour, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeMultiplier(now, now.Add(tt.until)))
		})
	}
}

func TestBreakdown(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	slotStart := now.Add(48 * time.Hour)
	ctx := context.Background()

	t.Run("BasePriceOnly", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 100.0, breakdown.BasePrice)
		assert.Equal(t, 1.0, breakdown.DemandMultiplier)
		assert.Equal(t, 1.0, breakdown.TimeMultiplier)
		assert.Equal(t, 1.0, breakdown.HistoricalMultiplier)
		assert.Equal(t, 1.0, breakdown.DiscountFactor)
		assert.Equal(t, 100.0, breakdown.FinalPrice)
		assert.Equal(t, 0.0, breakdown.DiscountAmount)
	})

	t.Run("Deterministic", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 75)

		first, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		second, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("SingleViewerStaysBase", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		require.NoError(t, engine.TrackSlotView(ctx, court.ID, slotStart))

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 1.0, breakdown.DemandMultiplier)
		assert.Equal(t, 100.0, breakdown.FinalPrice)
	})

	t.Run("ModerateDemand", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		for i := 0; i < 3; i++ {
			require.NoError(t, engine.TrackSlotView(ctx, court.ID, slotStart))
		}

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 1.2, breakdown.DemandMultiplier)
		assert.Equal(t, 120.0, breakdown.FinalPrice)
	})

	t.Run("HighDemand", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		for i := 0; i < 6; i++ {
			require.NoError(t, engine.TrackSlotView(ctx, court.ID, slotStart))
		}

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 1.5, breakdown.DemandMultiplier)
		assert.Equal(t, 150.0, breakdown.FinalPrice)
	})

	t.Run("ViewsOnAnotherSlotDoNotCount", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		otherSlot := slotStart.Add(time.Hour)
		for i := 0; i < 6; i++ {
			require.NoError(t, engine.TrackSlotView(ctx, court.ID, otherSlot))
		}

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 1.0, breakdown.DemandMultiplier)
	})

	t.Run("HistoricalPopularity", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		for _, score := range []int{4, 5, 4} {
			require.NoError(t, db.CreateRating(ctx, &models.Rating{
				CourtID: court.ID, UserID: int64(score), Score: score, CreatedAt: now,
			}))
		}

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 1.5, breakdown.HistoricalMultiplier)
		assert.Equal(t, 150.0, breakdown.FinalPrice)
	})

	t.Run("AverageBetweenThreeAndFourIsBase", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		for i, score := range []int{3, 4} { // average 3.5
			require.NoError(t, db.CreateRating(ctx, &models.Rating{
				CourtID: court.ID, UserID: int64(i + 1), Score: score, CreatedAt: now,
			}))
		}

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 1.0, breakdown.HistoricalMultiplier)
	})

	t.Run("DiscountApplied", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		require.NoError(t, db.CreateDiscount(ctx, &models.Discount{
			Scope:      models.DiscountScopeCourt,
			CourtID:    &court.ID,
			PercentOff: 20,
			ValidFrom:  now,
			ValidTo:    now.Add(72 * time.Hour),
			IsActive:   true,
		}))

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 0.8, breakdown.DiscountFactor)
		assert.Equal(t, 80.0, breakdown.FinalPrice)
		assert.Equal(t, 20.0, breakdown.DiscountAmount)
	})

	t.Run("BestDiscountWins", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		for _, pct := range []float64{10, 30} {
			require.NoError(t, db.CreateDiscount(ctx, &models.Discount{
				Scope:      models.DiscountScopeCourt,
				CourtID:    &court.ID,
				PercentOff: pct,
				ValidFrom:  now,
				ValidTo:    now.Add(72 * time.Hour),
				IsActive:   true,
			}))
		}

		breakdown, err := engine.Breakdown(ctx, court.ID, slotStart)
		require.NoError(t, err)
		assert.Equal(t, 70.0, breakdown.FinalPrice)
	})

	t.Run("MultipliersCompose", func(t *testing.T) {
		engine, db, _ := newTestEngine(t, now)
		court := seedCourt(t, db, 100)

		// 12 hours out, 3 viewers, no ratings: 100 * 1.2 * 1.2 = 144
		nearSlot := now.Add(12 * time.Hour)
		for i := 0; i < 3; i++ {
			require.NoError(t, engine.TrackSlotView(ctx, court.ID, nearSlot))
		}

		breakdown, err := engine.Breakdown(ctx, court.ID, nearSlot)
		require.NoError(t, err)
		assert.Equal(t, 1.2, breakdown.DemandMultiplier)
		assert.Equal(t, 1.2, breakdown.TimeMultiplier)
		assert.Equal(t, 144.0, breakdown.FinalPrice)
	})
}

func TestRefundPercent(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		until time.Duration
		want  float64
	}{
		{"WellAhead", 48 * time.Hour, 100},
		{"Exactly24Hours", 24 * time.Hour, 100},
		{"JustUnder24Hours", 24*time.Hour - time.Second, 50},
		{"Exactly6Hours", 6 * time.Hour, 50},
		{"JustUnder6Hours", 6*time.Hour - time.Second, 0},
		{"AlreadyStarted", -time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RefundPercent(now, now.Add(tt.until)))
		})
	}
}

func TestRefundAmount(t *testing.T) {
	assert.Equal(t, 150.0, RefundAmount(150, 100))
	assert.Equal(t, 75.0, RefundAmount(150, 50))
	assert.Equal(t, 0.0, RefundAmount(150, 0))
	assert.Equal(t, 49.99, RefundAmount(99.98, 50))
}
