package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playcourt/internal/models"
)

func TestCreateWallet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	wallet, err := db.CreateWallet(ctx, 1, dbNow)
	require.NoError(t, err)
	assert.Zero(t, wallet.Balance)

	// Creating again returns the existing wallet.
	again, err := db.CreateWallet(ctx, 1, dbNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, wallet.ID, again.ID)
}

func TestWalletLedger(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	const userID int64 = 2

	_, err := db.CreateWallet(ctx, userID, dbNow)
	require.NoError(t, err)

	t.Run("credit", func(t *testing.T) {
		wallet, err := db.CreditWallet(ctx, userID, 150, "Wallet top-up", "topup_1", nil, dbNow)
		require.NoError(t, err)
		assert.Equal(t, 150.0, wallet.Balance)
	})

	t.Run("debit", func(t *testing.T) {
		wallet, err := db.DebitWallet(ctx, userID, 60, "Booking payment", "", nil, dbNow)
		require.NoError(t, err)
		assert.Equal(t, 90.0, wallet.Balance)
	})

	t.Run("debit past zero fails", func(t *testing.T) {
		_, err := db.DebitWallet(ctx, userID, 500, "Booking payment", "", nil, dbNow)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		wallet, err := db.GetWalletByUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 90.0, wallet.Balance, "failed debit must not move the balance")
	})

	t.Run("non-positive amounts rejected", func(t *testing.T) {
		_, err := db.CreditWallet(ctx, userID, 0, "zero", "", nil, dbNow)
		assert.Error(t, err)
		_, err = db.DebitWallet(ctx, userID, -5, "negative", "", nil, dbNow)
		assert.Error(t, err)
	})

	t.Run("missing wallet", func(t *testing.T) {
		_, err := db.CreditWallet(ctx, 999, 10, "credit", "", nil, dbNow)
		assert.ErrorIs(t, err, ErrWalletNotFound)
	})
}

func TestTransactionReference(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	const userID int64 = 3

	_, err := db.CreateWallet(ctx, userID, dbNow)
	require.NoError(t, err)

	_, err = db.CreditWallet(ctx, userID, 100, "Wallet top-up", "ref_1", nil, dbNow)
	require.NoError(t, err)

	t.Run("lookup by reference", func(t *testing.T) {
		tx, err := db.TransactionByReference(ctx, "ref_1")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionCredit, tx.Type)
		assert.Equal(t, 100.0, tx.Amount)
		assert.Equal(t, 100.0, tx.BalanceAfter)
	})

	t.Run("reuse is rejected and balance untouched", func(t *testing.T) {
		_, err := db.CreditWallet(ctx, userID, 100, "Wallet top-up", "ref_1", nil, dbNow)
		require.ErrorIs(t, err, ErrDuplicateReference)

		wallet, err := db.GetWalletByUser(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 100.0, wallet.Balance)
	})

	t.Run("empty references never collide", func(t *testing.T) {
		_, err := db.CreditWallet(ctx, userID, 10, "credit", "", nil, dbNow)
		require.NoError(t, err)
		_, err = db.CreditWallet(ctx, userID, 10, "credit", "", nil, dbNow)
		require.NoError(t, err)
	})

	t.Run("unknown reference returns nil", func(t *testing.T) {
		tx, err := db.TransactionByReference(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, tx)
	})
}

func TestTransactionHistoryPaging(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	const userID int64 = 4

	_, err := db.CreateWallet(ctx, userID, dbNow)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := db.CreditWallet(ctx, userID, float64(10*(i+1)), "credit", "", nil, dbNow.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	first, err := db.TransactionHistory(ctx, userID, 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 50.0, first[0].Amount, "newest entry comes first")

	second, err := db.TransactionHistory(ctx, userID, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 30.0, second[0].Amount)

	last, err := db.TransactionHistory(ctx, userID, 3, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, 10.0, last[0].Amount)
}
