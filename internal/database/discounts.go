package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"playcourt/internal/models"
)

func (d *DB) CreateDiscount(ctx context.Context, discount *models.Discount) error {
	if discount.CreatedAt.IsZero() {
		discount.CreatedAt = time.Now().UTC()
	}
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO discounts (scope, venue_id, court_id, percent_off, valid_from, valid_to, is_active, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		discount.Scope, discount.VenueID, discount.CourtID, discount.PercentOff,
		discount.ValidFrom.UTC(), discount.ValidTo.UTC(), discount.IsActive, discount.CreatedAt)
	if err != nil {
		return fmt.Errorf("create discount: %w", err)
	}
	discount.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("discount insert id: %w", err)
	}
	return nil
}

// ApplicableDiscounts returns active, date-valid discounts scoped to the
// court or its venue, highest percent-off first.
func (d *DB) ApplicableDiscounts(ctx context.Context, venueID, courtID int64, at time.Time) ([]*models.Discount, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, scope, venue_id, court_id, percent_off, valid_from, valid_to, is_active, created_at
         FROM discounts
         WHERE is_active = 1 AND valid_from <= ? AND valid_to >= ?
           AND ((scope = ? AND court_id = ?) OR (scope = ? AND venue_id = ?))
         ORDER BY percent_off DESC`,
		at.UTC(), at.UTC(),
		models.DiscountScopeCourt, courtID, models.DiscountScopeVenue, venueID)
	if err != nil {
		return nil, fmt.Errorf("list applicable discounts: %w", err)
	}
	defer rows.Close()
	return collectDiscounts(rows)
}

func (d *DB) ExpiredDiscounts(ctx context.Context, now time.Time) ([]*models.Discount, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, scope, venue_id, court_id, percent_off, valid_from, valid_to, is_active, created_at
         FROM discounts WHERE valid_to < ?`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list expired discounts: %w", err)
	}
	defer rows.Close()
	return collectDiscounts(rows)
}

func collectDiscounts(rows *sql.Rows) ([]*models.Discount, error) {
	var discounts []*models.Discount
	for rows.Next() {
		var disc models.Discount
		var venueID, courtID sql.NullInt64
		if err := rows.Scan(&disc.ID, &disc.Scope, &venueID, &courtID, &disc.PercentOff,
			&disc.ValidFrom, &disc.ValidTo, &disc.IsActive, &disc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan discount: %w", err)
		}
		if venueID.Valid {
			id := venueID.Int64
			disc.VenueID = &id
		}
		if courtID.Valid {
			id := courtID.Int64
			disc.CourtID = &id
		}
		discounts = append(discounts, &disc)
	}
	return discounts, rows.Err()
}

func (d *DB) DeleteDiscount(ctx context.Context, id int64) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete discount: %w", err)
	}
	return nil
}

func (d *DB) CreateRating(ctx context.Context, rating *models.Rating) error {
	if rating.Score < 1 || rating.Score > 5 {
		return fmt.Errorf("rating score must be 1..5")
	}
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO ratings (court_id, user_id, score, created_at) VALUES (?, ?, ?, ?)`,
		rating.CourtID, rating.UserID, rating.Score, rating.CreatedAt)
	if err != nil {
		return fmt.Errorf("create rating: %w", err)
	}
	rating.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("rating insert id: %w", err)
	}
	return nil
}

func (d *DB) CourtRatingScores(ctx context.Context, courtID int64) ([]int, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT score FROM ratings WHERE court_id = ?`, courtID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var scores []int
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}
