package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// categoryID looks up a seeded global category by name.
func categoryID(t *testing.T, store *SQLiteStorage, name string) int64 {
	t.Helper()
	cats, err := store.GetCategories(context.Background(), 0)
	require.NoError(t, err)
	for _, c := range cats {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not seeded", name)
	return 0
}

func newTestTransaction(userID int64, typ model.TransactionType, amount string, date time.Time, categoryID *int64) *model.Transaction {
	return &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Description: string(typ) + " " + amount,
		CategoryID:  categoryID,
	}
}

func TestSQLiteStorage_TransactionLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	groceries := categoryID(t, store, "Groceries")
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	txn := newTestTransaction(1, model.TransactionExpense, "42.37", date, &groceries)
	txn.Recurrence = &model.Recurrence{Unit: "month", Interval: 1}

	require.NoError(t, store.CreateTransaction(ctx, txn))

	got, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "42.37", got.Amount.StringFixed(2))
	assert.Equal(t, model.TransactionExpense, got.Type)
	assert.True(t, got.Date.Equal(date))
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, groceries, *got.CategoryID)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, "month", got.Recurrence.Unit)
	assert.False(t, got.IsDeleted())

	exists, err := store.TransactionHashExists(ctx, 1, txn.Hash)
	require.NoError(t, err)
	assert.True(t, exists)

	got.Amount = decimal.RequireFromString("40")
	require.NoError(t, store.UpdateTransaction(ctx, got))

	again, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", again.Amount.StringFixed(2))

	require.NoError(t, store.SoftDeleteTransaction(ctx, txn.ID, time.Now()))

	deleted, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	live, err := store.ListTransactions(ctx, 1, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := store.ListTransactions(ctx, 1, service.TransactionFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Deleting twice reports not found.
	err = store.SoftDeleteTransaction(ctx, txn.ID, time.Now())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_UpdateCannotChangeOwner(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txn := newTestTransaction(1, model.TransactionIncome, "100", time.Now(), nil)
	require.NoError(t, store.CreateTransaction(ctx, txn))

	moved := *txn
	moved.UserID = 2
	err := store.UpdateTransaction(ctx, &moved)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := store.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
}

func TestSQLiteStorage_CreateTransactionValidation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		modify func(*model.Transaction)
		name   string
	}{
		{name: "zero amount", modify: func(txn *model.Transaction) { txn.Amount = decimal.Zero }},
		{name: "negative amount", modify: func(txn *model.Transaction) { txn.Amount = decimal.NewFromInt(-5) }},
		{name: "unknown type", modify: func(txn *model.Transaction) { txn.Type = "TRANSFER" }},
		{name: "missing user", modify: func(txn *model.Transaction) { txn.UserID = 0 }},
		{name: "missing date", modify: func(txn *model.Transaction) { txn.Date = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := newTestTransaction(1, model.TransactionExpense, "10", time.Now(), nil)
			tt.modify(txn)
			err := store.CreateTransaction(ctx, txn)
			assert.ErrorIs(t, err, ErrInvalidTransaction)
		})
	}
}

func TestSQLiteStorage_DuplicateTransactionID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txn := newTestTransaction(1, model.TransactionIncome, "10", time.Now(), nil)
	require.NoError(t, store.CreateTransaction(ctx, txn))

	dup := *txn
	err := store.CreateTransaction(ctx, &dup)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestSQLiteStorage_Links(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	loan := categoryID(t, store, "Loan Payment")
	income := newTestTransaction(1, model.TransactionIncome, "1000", time.Now(), nil)
	debt := newTestTransaction(1, model.TransactionExpense, "300", time.Now(), &loan)
	require.NoError(t, store.CreateTransaction(ctx, income))
	require.NoError(t, store.CreateTransaction(ctx, debt))

	link := &model.TransactionLink{
		ID:       uuid.NewString(),
		UserID:   1,
		SourceID: income.ID,
		TargetID: debt.ID,
		Type:     model.LinkDebtPayment,
		Amount:   decimal.NewFromInt(200),
	}
	require.NoError(t, store.CreateLink(ctx, link))

	src, err := store.GetLinkBalance(ctx, income.ID)
	require.NoError(t, err)
	assert.True(t, src.Available().Equal(decimal.NewFromInt(800)))

	dst, err := store.GetLinkBalance(ctx, debt.ID)
	require.NoError(t, err)
	assert.True(t, dst.Outstanding().Equal(decimal.NewFromInt(100)))

	links, err := store.ListLinks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, model.LinkDebtPayment, links[0].Type)

	n, err := store.DeleteLinksForTransaction(ctx, debt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetLink(ctx, link.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_Categories(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	owner := int64(7)
	custom := &model.Category{
		UserID:   &owner,
		Name:     "Pets",
		Type:     model.CategoryTypeExpense,
		Group:    model.GroupLifestyleExpense,
		IsActive: true,
	}
	require.NoError(t, store.CreateCategory(ctx, custom))
	assert.NotZero(t, custom.ID)

	mine, err := store.GetCategories(ctx, owner)
	require.NoError(t, err)
	others, err := store.GetCategories(ctx, 8)
	require.NoError(t, err)
	assert.Len(t, mine, len(others)+1)

	got, err := store.GetCategory(ctx, custom.ID)
	require.NoError(t, err)
	assert.False(t, got.IsGlobal())
	assert.True(t, got.VisibleTo(owner))
	assert.False(t, got.VisibleTo(8))

	dup := *custom
	err = store.CreateCategory(ctx, &dup)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	txn := newTestTransaction(1, model.TransactionIncome, "10", time.Now(), nil)
	boom := errors.New("boom")
	err := WithTx(ctx, store, func(tx service.Transaction) error {
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetTransaction(ctx, txn.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
