package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playcourt/internal/clock"
	"playcourt/internal/config"
	"playcourt/internal/database"
	"playcourt/internal/events"
	"playcourt/internal/export"
	"playcourt/internal/models"
	"playcourt/internal/pricing"
	"playcourt/internal/repository"
	"playcourt/internal/service"
)

const (
	playerKey = "player-key"
	adminKey  = "admin-key"

	playerUserID int64 = 101
	adminUserID  int64 = 1
)

var apiNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

type apiEnv struct {
	handler http.Handler
	db      *database.DB
	clock   *clock.Fixed
}

func apiConfig(rps float64, burst int) config.APIConfig {
	return config.APIConfig{
		Port: 0,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: playerKey, UserID: playerUserID, Name: "player"},
				{Key: adminKey, UserID: adminUserID, Name: "ops", Admin: true},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: rps, Burst: burst},
	}
}

func newAPIEnv(t *testing.T, cfg config.APIConfig) *apiEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clk := clock.NewFixed(apiNow)
	cache := repository.NewMemoryLockStore()
	locker := service.NewSlotLockCoordinator(cache, &logger)
	pricer := pricing.NewEngine(db, cache, clk, &logger)
	bus := events.NewEventBus()

	srv := NewServer(cfg, Deps{
		Bookings: service.NewBookingService(db, locker, pricer, bus, clk, &logger),
		Wallets:  service.NewWalletService(db, bus, clk, &logger),
		Games:    service.NewGameService(db, bus, clk, &logger),
		Venues:   service.NewVenueService(db, clk, &logger),
		Pricer:   pricer,
		Exporter: export.NewExcel(db, "", &logger),
	}, &logger)

	return &apiEnv{handler: srv.Handler(), db: db, clock: clk}
}

func (e *apiEnv) do(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

func (e *apiEnv) seedCourt(t *testing.T) *models.Court {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/venues", adminKey, map[string]any{"name": "Riverside Club"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	venue := decodeBody[models.Venue](t, rec)

	rec = e.do(t, http.MethodPost, "/api/v1/courts", adminKey, map[string]any{
		"venue_id":              venue.ID,
		"name":                  "Court 1",
		"slot_duration_minutes": 60,
		"base_price":            100.0,
		"open_time":             "06:00",
		"close_time":            "23:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	court := decodeBody[models.Court](t, rec)
	return &court
}

func (e *apiEnv) fund(t *testing.T, apiKey string, amount float64, idemKey string) models.Wallet {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/wallet/funds", apiKey, map[string]any{
		"amount":          amount,
		"idempotency_key": idemKey,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[models.Wallet](t, rec)
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))

	t.Run("missing key", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/bookings", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown key", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/bookings", "nope", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/bookings", playerKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAdminOnlyEndpoints(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))

	rec := env.do(t, http.MethodPost, "/api/v1/venues", playerKey, map[string]any{"name": "Nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/bookings/1/complete", playerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	env := newAPIEnv(t, apiConfig(1, 1))

	rec := env.do(t, http.MethodGet, "/api/v1/bookings", playerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/bookings", playerKey, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))
	court := env.seedCourt(t)
	env.fund(t, playerKey, 500, "topup-1")

	slotStart := apiNow.Add(48 * time.Hour)
	slotEnd := slotStart.Add(time.Hour)

	rec := env.do(t, http.MethodPost, "/api/v1/bookings/lock", playerKey, map[string]any{
		"court_id":   court.ID,
		"slot_start": slotStart,
		"slot_end":   slotEnd,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[models.Booking](t, rec)
	assert.Equal(t, models.StatusPending, booking.Status)
	assert.Equal(t, 100.0, booking.PriceLocked)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/confirm", booking.ID), playerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decodeBody[models.Booking](t, rec)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.Equal(t, 100.0, confirmed.AmountPaid)

	rec = env.do(t, http.MethodGet, "/api/v1/wallet", playerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decodeBody[models.Wallet](t, rec)
	assert.Equal(t, 400.0, wallet.Balance)

	// Two days out, so the cancellation refunds in full.
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/cancel", booking.ID), playerKey,
		map[string]any{"reason": "change of plans"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decodeBody[models.Booking](t, rec)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	rec = env.do(t, http.MethodGet, "/api/v1/wallet", playerKey, nil)
	wallet = decodeBody[models.Wallet](t, rec)
	assert.Equal(t, 500.0, wallet.Balance)

	rec = env.do(t, http.MethodGet, "/api/v1/bookings", playerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Bookings []models.Booking `json:"bookings"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.Len(t, listing.Bookings, 1)
}

func TestAddFundsIdempotentOverHTTP(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))

	first := env.fund(t, playerKey, 250, "topup-once")
	assert.Equal(t, 250.0, first.Balance)

	replay := env.fund(t, playerKey, 250, "topup-once")
	assert.Equal(t, 250.0, replay.Balance)
}

func TestErrorMapping(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))
	court := env.seedCourt(t)

	t.Run("unknown booking is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/v1/bookings/9999/confirm", playerKey, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("contended slot is 409", func(t *testing.T) {
		slotStart := apiNow.Add(26 * time.Hour)
		body := map[string]any{
			"court_id":   court.ID,
			"slot_start": slotStart,
			"slot_end":   slotStart.Add(time.Hour),
		}
		rec := env.do(t, http.MethodPost, "/api/v1/bookings/lock", playerKey, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodPost, "/api/v1/bookings/lock", adminKey, body)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("insufficient funds is 402", func(t *testing.T) {
		env.fund(t, playerKey, 50, "topup-small")

		slotStart := apiNow.Add(48 * time.Hour)
		rec := env.do(t, http.MethodPost, "/api/v1/bookings/lock", playerKey, map[string]any{
			"court_id":   court.ID,
			"slot_start": slotStart,
			"slot_end":   slotStart.Add(time.Hour),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		booking := decodeBody[models.Booking](t, rec)

		rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/confirm", booking.ID), playerKey, nil)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("past slot is 400", func(t *testing.T) {
		slotStart := apiNow.Add(-2 * time.Hour)
		rec := env.do(t, http.MethodPost, "/api/v1/bookings/lock", playerKey, map[string]any{
			"court_id":   court.ID,
			"slot_start": slotStart,
			"slot_end":   slotStart.Add(time.Hour),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBookingOwnership(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))
	court := env.seedCourt(t)
	env.fund(t, playerKey, 500, "topup-owner")

	slotStart := apiNow.Add(24 * time.Hour)
	rec := env.do(t, http.MethodPost, "/api/v1/bookings/lock", playerKey, map[string]any{
		"court_id":   court.ID,
		"slot_start": slotStart,
		"slot_end":   slotStart.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	booking := decodeBody[models.Booking](t, rec)

	// The admin may read any booking; confirming for another user may not happen.
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", booking.ID), adminKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/confirm", booking.ID), adminKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPricingEndpoints(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))
	court := env.seedCourt(t)

	slotStart := apiNow.Add(12 * time.Hour)

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/pricing/views", playerKey, map[string]any{
			"court_id":   court.ID,
			"slot_start": slotStart,
		})
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := env.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/pricing/quote?court_id=%d&slot_start=%s", court.ID, slotStart.Format(time.RFC3339)),
		playerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decodeBody[models.PricingBreakdown](t, rec)

	assert.Equal(t, 100.0, quote.BasePrice)
	assert.Equal(t, 1.2, quote.DemandMultiplier)
	assert.Equal(t, 1.2, quote.TimeMultiplier)
	assert.Equal(t, 144.0, quote.FinalPrice)
}

func TestVenueAndAvailabilityEndpoints(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))
	court := env.seedCourt(t)

	t.Run("venue readable by any caller", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/venues/%d", court.VenueID), playerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		venue := decodeBody[models.Venue](t, rec)
		assert.Equal(t, "Riverside Club", venue.Name)

		rec = env.do(t, http.MethodGet, "/api/v1/venues/999", playerKey, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("availability flips once a slot is held", func(t *testing.T) {
		slotStart := apiNow.Add(30 * time.Hour)
		slotEnd := slotStart.Add(time.Hour)
		path := fmt.Sprintf("/api/v1/courts/%d/availability?slot_start=%s&slot_end=%s",
			court.ID, slotStart.Format(time.RFC3339), slotEnd.Format(time.RFC3339))

		rec := env.do(t, http.MethodGet, path, playerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, decodeBody[map[string]bool](t, rec)["available"])

		rec = env.do(t, http.MethodPost, "/api/v1/bookings/lock", playerKey, map[string]any{
			"court_id":   court.ID,
			"slot_start": slotStart,
			"slot_end":   slotEnd,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = env.do(t, http.MethodGet, path, playerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeBody[map[string]bool](t, rec)["available"])
	})
}

func TestGameEndpoints(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))
	court := env.seedCourt(t)

	start := apiNow.Add(24 * time.Hour)
	rec := env.do(t, http.MethodPost, "/api/v1/games", playerKey, map[string]any{
		"title":       "Friday doubles",
		"venue_id":    court.VenueID,
		"court_id":    court.ID,
		"start_time":  start,
		"end_time":    start.Add(2 * time.Hour),
		"min_players": 2,
		"max_players": 4,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	game := decodeBody[models.Game](t, rec)
	assert.Equal(t, models.GameStatusOpen, game.Status)
	assert.Equal(t, 1, game.CurrentPlayers)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/games/%d/join", game.ID), adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	joined := decodeBody[models.Game](t, rec)
	assert.Equal(t, 2, joined.CurrentPlayers)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/games/%d/join", game.ID), adminKey, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "double join must be rejected")

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/games/%d/leave", game.ID), adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	left := decodeBody[models.Game](t, rec)
	assert.Equal(t, 1, left.CurrentPlayers)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/games/%d/leave", game.ID), playerKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "creator cannot leave")

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/games/%d", game.ID), playerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportEndpoints(t *testing.T) {
	env := newAPIEnv(t, apiConfig(0, 0))
	court := env.seedCourt(t)
	env.fund(t, playerKey, 500, "topup-export")

	slotStart := apiNow.Add(24 * time.Hour)
	rec := env.do(t, http.MethodPost, "/api/v1/bookings/lock", playerKey, map[string]any{
		"court_id":   court.ID,
		"slot_start": slotStart,
		"slot_end":   slotStart.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("schedule export is admin only", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/export/bookings?court_id=1&from=2026-09-01&to=2026-09-03", playerKey, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("schedule export", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/export/bookings?court_id=%d&from=2026-09-01&to=2026-09-03", court.ID)
		rec := env.do(t, http.MethodGet, path, adminKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		assert.NotZero(t, rec.Body.Len())
	})

	t.Run("ledger export for self", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/export/ledger", playerKey, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	})

	t.Run("ledger export for another user needs admin", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/export/ledger?user_id=%d", playerUserID)
		rec := env.do(t, http.MethodGet, path, playerKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code, "own id is always allowed")

		rec = env.do(t, http.MethodGet, "/api/v1/export/ledger?user_id=12345", playerKey, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodGet, path, adminKey, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
