package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"playcourt/internal/models"
)

var (
	ErrGameFull       = errors.New("game is full")
	ErrAlreadyInGame  = errors.New("user is already in this game")
	ErrNotInGame      = errors.New("user is not in this game")
	ErrCreatorMayStay = errors.New("game creator cannot leave the game")
)

const gameColumns = `id, title, venue_id, court_id, created_by, start_time, end_time,
	min_players, max_players, current_players, status, booking_id, created_at, completed_at`

func scanGame(row rowScanner) (*models.Game, error) {
	var g models.Game
	var bookingID sql.NullInt64
	var completedAt sql.NullTime
	err := row.Scan(&g.ID, &g.Title, &g.VenueID, &g.CourtID, &g.CreatedBy,
		&g.StartTime, &g.EndTime, &g.MinPlayers, &g.MaxPlayers, &g.CurrentPlayers,
		&g.Status, &bookingID, &g.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := bookingID.Int64
		g.BookingID = &id
	}
	if completedAt.Valid {
		t := completedAt.Time
		g.CompletedAt = &t
	}
	return &g, nil
}

// CreateGame inserts the game and enrolls the creator as the first
// participant in one transaction.
func (d *DB) CreateGame(ctx context.Context, game *models.Game) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO games (title, venue_id, court_id, created_by, start_time, end_time,
				min_players, max_players, current_players, status, booking_id, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			game.Title, game.VenueID, game.CourtID, game.CreatedBy,
			game.StartTime.UTC(), game.EndTime.UTC(),
			game.MinPlayers, game.MaxPlayers, models.GameStatusOpen,
			game.BookingID, game.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		game.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("game insert id: %w", err)
		}
		game.CurrentPlayers = 1
		game.Status = models.GameStatusOpen

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO game_participants (game_id, user_id, joined_at, is_active) VALUES (?, ?, ?, 1)`,
			game.ID, game.CreatedBy, game.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("enroll creator: %w", err)
		}
		return nil
	})
}

func (d *DB) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return game, nil
}

// JoinGame adds a participant, bumping the player count and flipping the
// game to full at capacity, all in one transaction.
func (d *DB) JoinGame(ctx context.Context, gameID, userID int64, now time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, gameID)
		game, err := scanGame(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGameNotFound
		}
		if err != nil {
			return fmt.Errorf("get game in tx: %w", err)
		}
		if game.Status != models.GameStatusOpen {
			return ErrInvalidStatus
		}
		if game.CurrentPlayers >= game.MaxPlayers {
			return ErrGameFull
		}

		var active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM game_participants WHERE game_id = ? AND user_id = ? AND is_active = 1`,
			gameID, userID).Scan(&active); err != nil {
			return fmt.Errorf("check participant in tx: %w", err)
		}
		if active > 0 {
			return ErrAlreadyInGame
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO game_participants (game_id, user_id, joined_at, is_active) VALUES (?, ?, ?, 1)`,
			gameID, userID, now.UTC()); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}

		status := models.GameStatusOpen
		if game.CurrentPlayers+1 >= game.MaxPlayers {
			status = models.GameStatusFull
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE games SET current_players = current_players + 1, status = ? WHERE id = ?`,
			status, gameID); err != nil {
			return fmt.Errorf("update game in tx: %w", err)
		}
		return nil
	})
}

// LeaveGame deactivates the participant row and reopens a full game.
func (d *DB) LeaveGame(ctx context.Context, gameID, userID int64) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, gameID)
		game, err := scanGame(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGameNotFound
		}
		if err != nil {
			return fmt.Errorf("get game in tx: %w", err)
		}
		if game.CreatedBy == userID {
			return ErrCreatorMayStay
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE game_participants SET is_active = 0 WHERE game_id = ? AND user_id = ? AND is_active = 1`,
			gameID, userID)
		if err != nil {
			return fmt.Errorf("deactivate participant: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return ErrNotInGame
		}

		status := game.Status
		if status == models.GameStatusFull {
			status = models.GameStatusOpen
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE games SET current_players = current_players - 1, status = ? WHERE id = ?`,
			status, gameID); err != nil {
			return fmt.Errorf("update game in tx: %w", err)
		}
		return nil
	})
}

// StartedUnderMinGames lists games whose start time has passed while still
// under their minimum player count.
func (d *DB) StartedUnderMinGames(ctx context.Context, now time.Time) ([]*models.Game, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games
         WHERE status IN (?, ?) AND start_time <= ? AND current_players < min_players`,
		models.GameStatusOpen, models.GameStatusFull, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list under-min games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (d *DB) UpdateGameStatus(ctx context.Context, id int64, status string) error {
	result, err := d.db.ExecContext(ctx, `UPDATE games SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update game status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (d *DB) CompleteGame(ctx context.Context, id int64, now time.Time) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE games SET status = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)`,
		models.GameStatusCompleted, now.UTC(), id, models.GameStatusOpen, models.GameStatusFull)
	if err != nil {
		return fmt.Errorf("complete game: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidStatus
	}
	return nil
}
