package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"playcourt/internal/models"
)

func (s *Server) handleLockSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var body struct {
		CourtID   int64     `json:"court_id"`
		SlotStart time.Time `json:"slot_start"`
		SlotEnd   time.Time `json:"slot_end"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.CourtID <= 0 {
		writeError(w, http.StatusBadRequest, "court_id is required")
		return
	}

	booking, err := s.bookings.LockSlot(r.Context(), id.UserID, body.CourtID, body.SlotStart, body.SlotEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) handleConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	bookingID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.ConfirmBooking(r.Context(), id.UserID, bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	bookingID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// The body is optional for cancellations.
	_ = decodeJSON(r, &body)

	booking, err := s.bookings.CancelBooking(r.Context(), id.UserID, bookingID, body.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	bookingID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.CompleteBooking(r.Context(), bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	bookingID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if booking.UserID != id.UserID && !id.Admin {
		writeError(w, http.StatusForbidden, "booking belongs to another user")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	bookings, err := s.bookings.ListMyBookings(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) handleAddFunds(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var body struct {
		Amount         float64 `json:"amount"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if headerKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")); headerKey != "" {
		body.IdempotencyKey = headerKey
	}

	wallet, err := s.wallets.AddFunds(r.Context(), id.UserID, body.Amount, body.IdempotencyKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	wallet, err := s.wallets.GetWallet(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	txs, err := s.wallets.TransactionHistory(r.Context(), id.UserID, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"page":         page,
		"page_size":    pageSize,
	})
}

func (s *Server) handlePricingQuote(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}

	courtID, err := strconv.ParseInt(r.URL.Query().Get("court_id"), 10, 64)
	if err != nil || courtID <= 0 {
		writeError(w, http.StatusBadRequest, "court_id is required")
		return
	}
	slotStart, err := time.Parse(time.RFC3339, r.URL.Query().Get("slot_start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "slot_start must be RFC 3339")
		return
	}

	breakdown, err := s.pricer.Breakdown(r.Context(), courtID, slotStart)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}

	var body struct {
		CourtID   int64     `json:"court_id"`
		SlotStart time.Time `json:"slot_start"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.CourtID <= 0 {
		writeError(w, http.StatusBadRequest, "court_id is required")
		return
	}

	if err := s.pricer.TrackSlotView(r.Context(), body.CourtID, body.SlotStart); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "tracked"})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var body struct {
		Title      string    `json:"title"`
		VenueID    int64     `json:"venue_id"`
		CourtID    int64     `json:"court_id"`
		StartTime  time.Time `json:"start_time"`
		EndTime    time.Time `json:"end_time"`
		MinPlayers int       `json:"min_players"`
		MaxPlayers int       `json:"max_players"`
		BookingID  *int64    `json:"booking_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	game, err := s.games.CreateGame(r.Context(), id.UserID, &models.Game{
		Title:      body.Title,
		VenueID:    body.VenueID,
		CourtID:    body.CourtID,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
		MinPlayers: body.MinPlayers,
		MaxPlayers: body.MaxPlayers,
		BookingID:  body.BookingID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	gameID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	game, err := s.games.GetGame(r.Context(), gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	gameID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	game, err := s.games.JoinGame(r.Context(), id.UserID, gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	gameID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	game, err := s.games.LeaveGame(r.Context(), id.UserID, gameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func (s *Server) handleCompleteGame(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	gameID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	if err := s.games.CompleteGame(r.Context(), gameID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
