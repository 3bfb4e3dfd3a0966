package models

import "time"

type Discount struct {
	ID         int64     `json:"id"`
	Scope      string    `json:"scope"` // venue, court
	VenueID    *int64    `json:"venue_id,omitempty"`
	CourtID    *int64    `json:"court_id,omitempty"`
	PercentOff float64   `json:"percent_off"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidTo    time.Time `json:"valid_to"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApplicableAt reports whether the discount is live at the given instant.
func (d *Discount) ApplicableAt(at time.Time) bool {
	return d.IsActive && !at.Before(d.ValidFrom) && !at.After(d.ValidTo)
}
