package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"playcourt/internal/models"
)

func (d *DB) CreateVenue(ctx context.Context, venue *models.Venue) error {
	if venue.CreatedAt.IsZero() {
		venue.CreatedAt = time.Now().UTC()
	}
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO venues (owner_id, name, created_at) VALUES (?, ?, ?)`,
		venue.OwnerID, venue.Name, venue.CreatedAt)
	if err != nil {
		return fmt.Errorf("create venue: %w", err)
	}
	venue.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("venue insert id: %w", err)
	}
	return nil
}

func (d *DB) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	var v models.Venue
	err := d.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, created_at FROM venues WHERE id = ?`, id).
		Scan(&v.ID, &v.OwnerID, &v.Name, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVenueNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get venue: %w", err)
	}
	return &v, nil
}

func (d *DB) CreateCourt(ctx context.Context, court *models.Court) error {
	if err := court.Validate(); err != nil {
		return err
	}
	if court.CreatedAt.IsZero() {
		court.CreatedAt = time.Now().UTC()
	}
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO courts (venue_id, name, slot_duration_minutes, base_price, open_time, close_time, is_active, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		court.VenueID, court.Name, court.SlotDurationMinutes, court.BasePrice,
		court.OpenTime, court.CloseTime, court.IsActive, court.CreatedAt)
	if err != nil {
		return fmt.Errorf("create court: %w", err)
	}
	court.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("court insert id: %w", err)
	}
	return nil
}

func (d *DB) GetCourt(ctx context.Context, id int64) (*models.Court, error) {
	var c models.Court
	err := d.db.QueryRowContext(ctx,
		`SELECT id, venue_id, name, slot_duration_minutes, base_price, open_time, close_time, is_active, created_at
         FROM courts WHERE id = ?`, id).
		Scan(&c.ID, &c.VenueID, &c.Name, &c.SlotDurationMinutes, &c.BasePrice,
			&c.OpenTime, &c.CloseTime, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCourtNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get court: %w", err)
	}
	return &c, nil
}

// DeactivateCourt flips is_active off; the forced-refund sweep picks the
// court up on its next run.
func (d *DB) DeactivateCourt(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx, `UPDATE courts SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate court: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrCourtNotFound
	}
	return nil
}

func (d *DB) DeactivatedCourts(ctx context.Context) ([]*models.Court, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, venue_id, name, slot_duration_minutes, base_price, open_time, close_time, is_active, created_at
         FROM courts WHERE is_active = 0`)
	if err != nil {
		return nil, fmt.Errorf("list deactivated courts: %w", err)
	}
	defer rows.Close()

	var courts []*models.Court
	for rows.Next() {
		var c models.Court
		if err := rows.Scan(&c.ID, &c.VenueID, &c.Name, &c.SlotDurationMinutes, &c.BasePrice,
			&c.OpenTime, &c.CloseTime, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan court: %w", err)
		}
		courts = append(courts, &c)
	}
	return courts, rows.Err()
}
