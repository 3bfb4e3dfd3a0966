package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"playcourt/internal/models"
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (d *DB) CreateWallet(ctx context.Context, userID int64, now time.Time) (*models.Wallet, error) {
	result, err := d.db.ExecContext(ctx,
		`INSERT INTO wallets (user_id, balance, created_at, updated_at) VALUES (?, 0, ?, ?)`,
		userID, now.UTC(), now.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return d.GetWalletByUser(ctx, userID)
		}
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("wallet insert id: %w", err)
	}
	return &models.Wallet{ID: id, UserID: userID, Balance: 0, CreatedAt: now.UTC(), UpdatedAt: now.UTC()}, nil
}

func (d *DB) GetWalletByUser(ctx context.Context, userID int64) (*models.Wallet, error) {
	var w models.Wallet
	err := d.db.QueryRowContext(ctx,
		`SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = ?`, userID).
		Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// applyLedger performs one balance mutation plus its ledger append inside a
// transaction. SQLite's single-writer transactions serialize concurrent
// mutations of the same wallet, so the read-modify-write is safe.
func (d *DB) applyLedger(ctx context.Context, userID int64, txType string, amount float64, description, referenceID string, bookingID *int64, now time.Time) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	var wallet *models.Wallet
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var w models.Wallet
		err := tx.QueryRowContext(ctx,
			`SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = ?`, userID).
			Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWalletNotFound
		}
		if err != nil {
			return fmt.Errorf("get wallet in tx: %w", err)
		}

		switch txType {
		case models.TransactionCredit:
			w.Balance += amount
		case models.TransactionDebit:
			if w.Balance < amount {
				return ErrInsufficientFunds
			}
			w.Balance -= amount
		default:
			return fmt.Errorf("unknown transaction type %q", txType)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
			w.Balance, now.UTC(), w.ID); err != nil {
			return fmt.Errorf("update balance in tx: %w", err)
		}

		var ref any
		if referenceID != "" {
			ref = referenceID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (wallet_id, type, amount, balance_after, description, reference_id, booking_id, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ID, txType, amount, w.Balance, description, ref, bookingID, now.UTC()); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateReference
			}
			return fmt.Errorf("append transaction in tx: %w", err)
		}

		w.UpdatedAt = now.UTC()
		wallet = &w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

func (d *DB) CreditWallet(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64, now time.Time) (*models.Wallet, error) {
	return d.applyLedger(ctx, userID, models.TransactionCredit, amount, description, referenceID, bookingID, now)
}

func (d *DB) DebitWallet(ctx context.Context, userID int64, amount float64, description, referenceID string, bookingID *int64, now time.Time) (*models.Wallet, error) {
	return d.applyLedger(ctx, userID, models.TransactionDebit, amount, description, referenceID, bookingID, now)
}

func (d *DB) TransactionByReference(ctx context.Context, referenceID string) (*models.Transaction, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, wallet_id, type, amount, balance_after, description, reference_id, booking_id, created_at
         FROM transactions WHERE reference_id = ?`, referenceID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return t, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var ref sql.NullString
	var bookingID sql.NullInt64
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.Description, &ref, &bookingID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ref.Valid {
		t.ReferenceID = ref.String
	}
	if bookingID.Valid {
		id := bookingID.Int64
		t.BookingID = &id
	}
	return &t, nil
}

// TransactionHistory returns the wallet's ledger, newest first.
func (d *DB) TransactionHistory(ctx context.Context, userID int64, page, pageSize int) ([]*models.Transaction, error) {
	wallet, err := d.GetWalletByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = models.DefaultPageSize
	}
	if pageSize > models.MaxPageSize {
		pageSize = models.MaxPageSize
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, wallet_id, type, amount, balance_after, description, reference_id, booking_id, created_at
         FROM transactions WHERE wallet_id = ?
         ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		wallet.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}
