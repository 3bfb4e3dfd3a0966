package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"playcourt/internal/config"
	"playcourt/internal/database"
	"playcourt/internal/domain"
	"playcourt/internal/metrics"
	"playcourt/internal/models"
	"playcourt/internal/service"

	"github.com/rs/zerolog"
)

// VenueService is the venue/court administration surface the API needs.
type VenueService interface {
	CreateVenue(ctx context.Context, ownerID int64, name string) (*models.Venue, error)
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	CreateCourt(ctx context.Context, court *models.Court) (*models.Court, error)
	GetCourt(ctx context.Context, id int64) (*models.Court, error)
	DeactivateCourt(ctx context.Context, id int64) error
	RateCourt(ctx context.Context, userID, courtID int64, score int) error
	CreateDiscount(ctx context.Context, discount *models.Discount) (*models.Discount, error)
}

// Exporter streams spreadsheet reports. Nil disables the export endpoints.
type Exporter interface {
	WriteBookingSchedule(ctx context.Context, w io.Writer, courtID int64, from, to time.Time) error
	WriteLedger(ctx context.Context, w io.Writer, userID int64) error
}

type Server struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	wallets  domain.WalletService
	games    domain.GameService
	venues   VenueService
	pricer   domain.PricingEngine
	exporter Exporter
	server   *http.Server
	log      zerolog.Logger
}

type Deps struct {
	Bookings domain.BookingService
	Wallets  domain.WalletService
	Games    domain.GameService
	Venues   VenueService
	Pricer   domain.PricingEngine
	Exporter Exporter
}

func NewServer(cfg config.APIConfig, deps Deps, logger *zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		bookings: deps.Bookings,
		wallets:  deps.Wallets,
		games:    deps.Games,
		venues:   deps.Venues,
		pricer:   deps.Pricer,
		exporter: deps.Exporter,
		log:      logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings/lock", s.handleLockSlot)
	mux.HandleFunc("POST /api/v1/bookings/{id}/confirm", s.handleConfirmBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", s.handleCancelBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/complete", s.handleCompleteBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("GET /api/v1/bookings", s.handleListBookings)

	mux.HandleFunc("POST /api/v1/wallet/funds", s.handleAddFunds)
	mux.HandleFunc("GET /api/v1/wallet", s.handleGetWallet)
	mux.HandleFunc("GET /api/v1/wallet/transactions", s.handleTransactions)

	mux.HandleFunc("GET /api/v1/pricing/quote", s.handlePricingQuote)
	mux.HandleFunc("POST /api/v1/pricing/views", s.handleTrackView)

	mux.HandleFunc("POST /api/v1/games", s.handleCreateGame)
	mux.HandleFunc("GET /api/v1/games/{id}", s.handleGetGame)
	mux.HandleFunc("POST /api/v1/games/{id}/join", s.handleJoinGame)
	mux.HandleFunc("POST /api/v1/games/{id}/leave", s.handleLeaveGame)
	mux.HandleFunc("POST /api/v1/games/{id}/complete", s.handleCompleteGame)

	mux.HandleFunc("POST /api/v1/venues", s.handleCreateVenue)
	mux.HandleFunc("GET /api/v1/venues/{id}", s.handleGetVenue)
	mux.HandleFunc("POST /api/v1/courts", s.handleCreateCourt)
	mux.HandleFunc("GET /api/v1/courts/{id}", s.handleGetCourt)
	mux.HandleFunc("GET /api/v1/courts/{id}/availability", s.handleSlotAvailability)
	mux.HandleFunc("POST /api/v1/courts/{id}/deactivate", s.handleDeactivateCourt)
	mux.HandleFunc("POST /api/v1/courts/{id}/ratings", s.handleRateCourt)
	mux.HandleFunc("POST /api/v1/discounts", s.handleCreateDiscount)

	mux.HandleFunc("GET /api/v1/export/bookings", s.handleExportBookings)
	mux.HandleFunc("GET /api/v1/export/ledger", s.handleExportLedger)

	auth := NewAuth(cfg)

	// Health stays outside the auth chain so probes need no credentials.
	root := http.NewServeMux()
	root.HandleFunc("GET /health", s.handleHealth)
	root.Handle("/api/v1/", auth.Wrap(mux))

	handler := s.loggingMiddleware(root)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s
}

// Handler exposes the configured handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(endpointLabel(r))
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// endpointLabel keeps metric cardinality bounded: method plus the resource
// segment, never raw paths with ids in them.
func endpointLabel(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
	if resource, _, ok := strings.Cut(path, "/"); ok {
		path = resource
	}
	return r.Method + " /" + path
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps service and storage sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrCourtNotFound),
		errors.Is(err, database.ErrVenueNotFound),
		errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrWalletNotFound),
		errors.Is(err, database.ErrGameNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, database.ErrSlotUnavailable),
		errors.Is(err, database.ErrInvalidStatus),
		errors.Is(err, database.ErrDuplicateReference),
		errors.Is(err, database.ErrGameFull),
		errors.Is(err, database.ErrAlreadyInGame),
		errors.Is(err, service.ErrSlotLockHeld),
		errors.Is(err, service.ErrLockExpired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotBookingOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrCourtInactive),
		errors.Is(err, service.ErrOutsideHours),
		errors.Is(err, service.ErrSlotInPast),
		errors.Is(err, service.ErrInvalidSlot),
		errors.Is(err, service.ErrSlotTooShort),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrMissingIdemKey),
		errors.Is(err, service.ErrInvalidPlayers),
		errors.Is(err, database.ErrNotInGame),
		errors.Is(err, database.ErrCreatorMayStay):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// caller returns the authenticated identity; a zero user id means the
// request never passed a usable credential.
func caller(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := IdentityFrom(r.Context())
	if !ok || id.UserID <= 0 {
		writeError(w, http.StatusUnauthorized, "caller identity is unknown")
		return Identity{}, false
	}
	return id, true
}

func requireAdmin(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	id, ok := caller(w, r)
	if !ok {
		return Identity{}, false
	}
	if !id.Admin {
		writeError(w, http.StatusForbidden, "admin access required")
		return Identity{}, false
	}
	return id, true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
