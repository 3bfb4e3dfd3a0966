package models

import "time"

type Game struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	VenueID        int64      `json:"venue_id"`
	CourtID        int64      `json:"court_id"`
	CreatedBy      int64      `json:"created_by"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	MinPlayers     int        `json:"min_players"`
	MaxPlayers     int        `json:"max_players"`
	CurrentPlayers int        `json:"current_players"`
	Status         string     `json:"status"` // open, full, cancelled, completed
	BookingID      *int64     `json:"booking_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

type GameParticipant struct {
	ID       int64     `json:"id"`
	GameID   int64     `json:"game_id"`
	UserID   int64     `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
	IsActive bool      `json:"is_active"`
}

// Rating is a read-only input to pricing: the historical popularity
// multiplier is derived from a court's average score.
type Rating struct {
	ID        int64     `json:"id"`
	CourtID   int64     `json:"court_id"`
	UserID    int64     `json:"user_id"`
	Score     int       `json:"score"` // 1..5
	CreatedAt time.Time `json:"created_at"`
}
