package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"playcourt/internal/models"
)

const bookingColumns = `id, court_id, user_id, slot_start, slot_end, status, price_locked,
	amount_paid, lock_expiry_time, created_at, confirmed_at, cancelled_at, cancellation_reason, game_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var confirmedAt, cancelledAt sql.NullTime
	var gameID sql.NullInt64
	err := row.Scan(&b.ID, &b.CourtID, &b.UserID, &b.SlotStart, &b.SlotEnd, &b.Status,
		&b.PriceLocked, &b.AmountPaid, &b.LockExpiryTime, &b.CreatedAt,
		&confirmedAt, &cancelledAt, &b.CancellationReason, &gameID)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		b.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		b.CancelledAt = &t
	}
	if gameID.Valid {
		id := gameID.Int64
		b.GameID = &id
	}
	return &b, nil
}

// overlapCondition matches bookings whose [slot_start, slot_end) interval
// intersects [?, ?) and which still occupy the slot.
const overlapCondition = `court_id = ? AND id != ? AND status IN ('pending', 'confirmed')
	AND slot_start < ? AND slot_end > ?`

func (d *DB) HasOverlappingBooking(ctx context.Context, courtID int64, start, end time.Time, excludeID int64) (bool, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE `+overlapCondition,
		courtID, excludeID, end.UTC(), start.UTC()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return count > 0, nil
}

// CreateBookingWithOverlapCheck inserts a pending booking, re-checking the
// overlap invariant inside the same transaction. The cache-level slot mutex
// narrows the race window; this check closes it for persisted rows.
func (d *DB) CreateBookingWithOverlapCheck(ctx context.Context, booking *models.Booking) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE `+overlapCondition,
			booking.CourtID, int64(0), booking.SlotEnd.UTC(), booking.SlotStart.UTC()).Scan(&count)
		if err != nil {
			return fmt.Errorf("check overlap in tx: %w", err)
		}
		if count > 0 {
			return ErrSlotUnavailable
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (court_id, user_id, slot_start, slot_end, status, price_locked,
				amount_paid, lock_expiry_time, created_at, cancellation_reason, game_id)
             VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, '', ?)`,
			booking.CourtID, booking.UserID, booking.SlotStart.UTC(), booking.SlotEnd.UTC(),
			booking.Status, booking.PriceLocked, booking.LockExpiryTime.UTC(),
			booking.CreatedAt.UTC(), booking.GameID)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		booking.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("booking insert id: %w", err)
		}
		return nil
	})
}

func (d *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

func (d *DB) BookingsByUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY slot_start DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// ConfirmBooking executes the whole confirmation unit in one transaction:
// overlap re-check, wallet debit, ledger append and status flip. Any
// failure rolls back the lot, so a debit without a confirm (or the
// reverse) can never be observed.
func (d *DB) ConfirmBooking(ctx context.Context, bookingID int64, now time.Time) (*models.Booking, error) {
	var confirmed *models.Booking
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID)
		booking, err := scanBooking(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("get booking in tx: %w", err)
		}
		if booking.Status != models.StatusPending {
			return ErrInvalidStatus
		}

		var overlapping int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE `+overlapCondition,
			booking.CourtID, booking.ID, booking.SlotEnd.UTC(), booking.SlotStart.UTC()).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("check overlap in tx: %w", err)
		}
		if overlapping > 0 {
			return ErrSlotUnavailable
		}

		var walletID int64
		var balance float64
		err = tx.QueryRowContext(ctx,
			`SELECT id, balance FROM wallets WHERE user_id = ?`, booking.UserID).
			Scan(&walletID, &balance)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWalletNotFound
		}
		if err != nil {
			return fmt.Errorf("get wallet in tx: %w", err)
		}
		if balance < booking.PriceLocked {
			return ErrInsufficientFunds
		}

		newBalance := balance - booking.PriceLocked
		if _, err := tx.ExecContext(ctx,
			`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
			newBalance, now.UTC(), walletID); err != nil {
			return fmt.Errorf("debit wallet in tx: %w", err)
		}

		description := fmt.Sprintf("Booking for court #%d at %s",
			booking.CourtID, booking.SlotStart.UTC().Format("2006-01-02 15:04"))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (wallet_id, type, amount, balance_after, description, booking_id, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			walletID, models.TransactionDebit, booking.PriceLocked, newBalance,
			description, booking.ID, now.UTC()); err != nil {
			return fmt.Errorf("append debit transaction in tx: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, amount_paid = ?, confirmed_at = ? WHERE id = ?`,
			models.StatusConfirmed, booking.PriceLocked, now.UTC(), booking.ID); err != nil {
			return fmt.Errorf("confirm booking in tx: %w", err)
		}

		booking.Status = models.StatusConfirmed
		booking.AmountPaid = booking.PriceLocked
		confirmedAt := now.UTC()
		booking.ConfirmedAt = &confirmedAt
		confirmed = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// CancelBooking flips the status only; any refund credit is a separate
// ledger operation issued by the caller.
func (d *DB) CancelBooking(ctx context.Context, bookingID int64, reason string, now time.Time) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancellation_reason = ?, cancelled_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		models.StatusCancelled, reason, now.UTC(), bookingID,
		models.StatusCancelled, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// ExpireDueBookings transitions pending bookings whose lock has lapsed.
// Idempotent: already-expired rows no longer match the predicate.
func (d *DB) ExpireDueBookings(ctx context.Context, now time.Time) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE status = ? AND lock_expiry_time <= ?`,
		models.StatusExpired, models.StatusPending, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire bookings: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired rows affected: %w", err)
	}
	return rows, nil
}

// CompleteBookingWithPayout marks a confirmed booking completed and credits
// the venue owner's wallet with the amount paid, in one transaction.
func (d *DB) CompleteBookingWithPayout(ctx context.Context, bookingID int64, now time.Time) (*models.Booking, error) {
	var completed *models.Booking
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID)
		booking, err := scanBooking(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("get booking in tx: %w", err)
		}
		if booking.Status != models.StatusConfirmed {
			return ErrInvalidStatus
		}

		var ownerID int64
		err = tx.QueryRowContext(ctx,
			`SELECT v.owner_id FROM venues v JOIN courts c ON c.venue_id = v.id WHERE c.id = ?`,
			booking.CourtID).Scan(&ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVenueNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve venue owner in tx: %w", err)
		}

		if booking.AmountPaid > 0 {
			var walletID int64
			var balance float64
			err = tx.QueryRowContext(ctx,
				`SELECT id, balance FROM wallets WHERE user_id = ?`, ownerID).
				Scan(&walletID, &balance)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			if err != nil {
				return fmt.Errorf("get owner wallet in tx: %w", err)
			}

			newBalance := balance + booking.AmountPaid
			if _, err := tx.ExecContext(ctx,
				`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
				newBalance, now.UTC(), walletID); err != nil {
				return fmt.Errorf("credit owner wallet in tx: %w", err)
			}

			reference := fmt.Sprintf("payout_booking_%d", booking.ID)
			description := fmt.Sprintf("Payout for completed booking #%d", booking.ID)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transactions (wallet_id, type, amount, balance_after, description, reference_id, booking_id, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				walletID, models.TransactionCredit, booking.AmountPaid, newBalance,
				description, reference, booking.ID, now.UTC()); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateReference
				}
				return fmt.Errorf("append payout transaction in tx: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ? WHERE id = ?`,
			models.StatusCompleted, booking.ID); err != nil {
			return fmt.Errorf("complete booking in tx: %w", err)
		}

		booking.Status = models.StatusCompleted
		completed = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (d *DB) ConfirmedFutureBookings(ctx context.Context, courtID int64, now time.Time) ([]*models.Booking, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE court_id = ? AND status = ? AND slot_start > ?`,
		courtID, models.StatusConfirmed, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list future bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// BookingsByCourtRange returns all bookings on a court whose slot starts in
// [from, to), newest last. Used by the schedule export.
func (d *DB) BookingsByCourtRange(ctx context.Context, courtID int64, from, to time.Time) ([]*models.Booking, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE court_id = ? AND slot_start >= ? AND slot_start < ?
         ORDER BY slot_start`,
		courtID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list bookings by range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// RefundAndCancelBooking credits the payer the given refund and cancels the
// booking, in one transaction. Only confirmed bookings qualify. The reference
// id makes a retry a no-op on already-refunded rows even if the status guard
// were to miss.
func (d *DB) RefundAndCancelBooking(ctx context.Context, bookingID int64, refundAmount float64, reason, referenceID string, now time.Time) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID)
		booking, err := scanBooking(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("get booking in tx: %w", err)
		}
		if booking.Status != models.StatusConfirmed {
			return ErrInvalidStatus
		}

		if refundAmount > 0 {
			var walletID int64
			var balance float64
			err = tx.QueryRowContext(ctx,
				`SELECT id, balance FROM wallets WHERE user_id = ?`, booking.UserID).
				Scan(&walletID, &balance)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrWalletNotFound
			}
			if err != nil {
				return fmt.Errorf("get wallet in tx: %w", err)
			}

			newBalance := balance + refundAmount
			if _, err := tx.ExecContext(ctx,
				`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
				newBalance, now.UTC(), walletID); err != nil {
				return fmt.Errorf("credit wallet in tx: %w", err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO transactions (wallet_id, type, amount, balance_after, description, reference_id, booking_id, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				walletID, models.TransactionCredit, refundAmount, newBalance,
				reason, referenceID, booking.ID, now.UTC()); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateReference
				}
				return fmt.Errorf("append refund transaction in tx: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, cancellation_reason = ?, cancelled_at = ? WHERE id = ?`,
			models.StatusCancelled, reason, now.UTC(), booking.ID); err != nil {
			return fmt.Errorf("cancel booking in tx: %w", err)
		}
		return nil
	})
}
