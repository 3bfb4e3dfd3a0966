package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"playcourt/internal/models"
)

func (s *Server) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAdmin(w, r)
	if !ok {
		return
	}

	var body struct {
		Name    string `json:"name"`
		OwnerID int64  `json:"owner_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	ownerID := body.OwnerID
	if ownerID <= 0 {
		ownerID = id.UserID
	}

	venue, err := s.venues.CreateVenue(r.Context(), ownerID, body.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, venue)
}

func (s *Server) handleCreateCourt(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var body struct {
		VenueID             int64   `json:"venue_id"`
		Name                string  `json:"name"`
		SlotDurationMinutes int     `json:"slot_duration_minutes"`
		BasePrice           float64 `json:"base_price"`
		OpenTime            string  `json:"open_time"`
		CloseTime           string  `json:"close_time"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	court, err := s.venues.CreateCourt(r.Context(), &models.Court{
		VenueID:             body.VenueID,
		Name:                body.Name,
		SlotDurationMinutes: body.SlotDurationMinutes,
		BasePrice:           body.BasePrice,
		OpenTime:            body.OpenTime,
		CloseTime:           body.CloseTime,
		IsActive:            true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, court)
}

func (s *Server) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	venueID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid venue id")
		return
	}

	venue, err := s.venues.GetVenue(r.Context(), venueID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *Server) handleSlotAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	courtID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid court id")
		return
	}
	slotStart, err := time.Parse(time.RFC3339, r.URL.Query().Get("slot_start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "slot_start must be RFC 3339")
		return
	}
	slotEnd, err := time.Parse(time.RFC3339, r.URL.Query().Get("slot_end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "slot_end must be RFC 3339")
		return
	}

	available, err := s.bookings.IsSlotAvailable(r.Context(), courtID, slotStart, slotEnd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (s *Server) handleGetCourt(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	courtID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid court id")
		return
	}

	court, err := s.venues.GetCourt(r.Context(), courtID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, court)
}

func (s *Server) handleDeactivateCourt(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	courtID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid court id")
		return
	}

	if err := s.venues.DeactivateCourt(r.Context(), courtID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) handleRateCourt(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	courtID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid court id")
		return
	}

	var body struct {
		Score int `json:"score"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.venues.RateCourt(r.Context(), id.UserID, courtID, body.Score); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "rated"})
}

func (s *Server) handleCreateDiscount(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	var body struct {
		Scope      string    `json:"scope"`
		VenueID    *int64    `json:"venue_id"`
		CourtID    *int64    `json:"court_id"`
		PercentOff float64   `json:"percent_off"`
		ValidFrom  time.Time `json:"valid_from"`
		ValidTo    time.Time `json:"valid_to"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	discount, err := s.venues.CreateDiscount(r.Context(), &models.Discount{
		Scope:      body.Scope,
		VenueID:    body.VenueID,
		CourtID:    body.CourtID,
		PercentOff: body.PercentOff,
		ValidFrom:  body.ValidFrom,
		ValidTo:    body.ValidTo,
		IsActive:   true,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, discount)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "exports are disabled")
		return
	}

	courtID, err := strconv.ParseInt(r.URL.Query().Get("court_id"), 10, 64)
	if err != nil || courtID <= 0 {
		writeError(w, http.StatusBadRequest, "court_id is required")
		return
	}
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "to must be after from")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=bookings_court_%d.xlsx", courtID))
	if err := s.exporter.WriteBookingSchedule(r.Context(), w, courtID, from, to); err != nil {
		s.log.Error().Err(err).Int64("court_id", courtID).Msg("booking export failed")
	}
}

func (s *Server) handleExportLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "exports are disabled")
		return
	}

	userID := id.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		if parsed != id.UserID && !id.Admin {
			writeError(w, http.StatusForbidden, "cannot export another user's ledger")
			return
		}
		userID = parsed
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=ledger_user_%d.xlsx", userID))
	if err := s.exporter.WriteLedger(r.Context(), w, userID); err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("ledger export failed")
	}
}
