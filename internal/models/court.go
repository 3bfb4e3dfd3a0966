package models

import (
	"fmt"
	"time"
)

type Venue struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Court struct {
	ID                  int64     `json:"id"`
	VenueID             int64     `json:"venue_id"`
	Name                string    `json:"name"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	BasePrice           float64   `json:"base_price"`
	OpenTime            string    `json:"open_time"`  // HH:MM
	CloseTime           string    `json:"close_time"` // HH:MM
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return h*60 + m, nil
}

// Validate checks the court invariants that do not depend on other entities.
func (c *Court) Validate() error {
	open, err := parseClock(c.OpenTime)
	if err != nil {
		return err
	}
	closeAt, err := parseClock(c.CloseTime)
	if err != nil {
		return err
	}
	if open >= closeAt {
		return fmt.Errorf("open time %s must be before close time %s", c.OpenTime, c.CloseTime)
	}
	if c.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot duration must be positive")
	}
	if c.BasePrice < 0 {
		return fmt.Errorf("base price must not be negative")
	}
	return nil
}

// WithinOperatingHours reports whether the slot falls inside the court's
// open..close window on its start day. Times are compared as minutes since
// midnight in UTC, matching how slots are stored.
func (c *Court) WithinOperatingHours(slotStart, slotEnd time.Time) bool {
	open, err := parseClock(c.OpenTime)
	if err != nil {
		return false
	}
	closeAt, err := parseClock(c.CloseTime)
	if err != nil {
		return false
	}

	startMin := slotStart.UTC().Hour()*60 + slotStart.UTC().Minute()
	endMin := slotEnd.UTC().Hour()*60 + slotEnd.UTC().Minute()
	if endMin == 0 && slotEnd.After(slotStart) {
		endMin = 24 * 60
	}
	return startMin >= open && endMin <= closeAt
}
