// Package testutil provides shared fixtures for tests that need a migrated
// SQLite store, seeded ledger data or a controllable clock.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
	"github.com/Veraticus/spice-quest/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage    *storage.SQLiteStorage
	t          *testing.T
	categories map[string]int64
}

// SetupTestDB creates a migrated database in the test's temp directory.
// The store is closed automatically when the test ends.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.AddTransaction(1, model.TransactionIncome, "5000", day, "Salary")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "quest.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cats, err := store.GetCategories(ctx, 0)
	if err != nil {
		_ = store.Close()
		t.Fatalf("failed to load categories: %v", err)
	}
	byName := make(map[string]int64, len(cats))
	for _, c := range cats {
		byName[c.Name] = c.ID
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage:    store,
		t:          t,
		categories: byName,
	}
}

// Category returns the ID of a seeded global category or fails the test.
func (db *TestDB) Category(name string) int64 {
	db.t.Helper()
	id, ok := db.categories[name]
	if !ok {
		db.t.Fatalf("category %q not seeded", name)
	}
	return id
}

// AddTransaction inserts a transaction directly into the store, recorded at
// its own date. An empty category leaves the transaction uncategorized.
func (db *TestDB) AddTransaction(userID int64, typ model.TransactionType, amount string, date time.Time, category string) *model.Transaction {
	db.t.Helper()

	txn := &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Description: fmt.Sprintf("%s %s", typ, amount),
		IsPaid:      true,
		CreatedAt:   date,
	}
	if category != "" {
		id := db.Category(category)
		txn.CategoryID = &id
	}
	if err := db.Storage.CreateTransaction(context.Background(), txn); err != nil {
		db.t.Fatalf("failed to create transaction: %v", err)
	}
	return txn
}

// AddLink allocates amount of src to dst without balance checks.
func (db *TestDB) AddLink(src, dst *model.Transaction, amount string, typ model.LinkType) *model.TransactionLink {
	db.t.Helper()

	link := &model.TransactionLink{
		ID:       uuid.NewString(),
		UserID:   src.UserID,
		SourceID: src.ID,
		TargetID: dst.ID,
		Type:     typ,
		Amount:   decimal.RequireFromString(amount),
	}
	if err := db.Storage.CreateLink(context.Background(), link); err != nil {
		db.t.Fatalf("failed to create link: %v", err)
	}
	return link
}

// AddMission stores a mission template and returns it with its ID set.
func (db *TestDB) AddMission(m *model.Mission) *model.Mission {
	db.t.Helper()
	m.IsActive = true
	if err := db.Storage.CreateMission(context.Background(), m); err != nil {
		db.t.Fatalf("failed to create mission: %v", err)
	}
	return m
}

// WithTransaction executes the given function within a database transaction.
// The transaction is automatically rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// Clock is a manually advanced service.Clock.
type Clock struct {
	now time.Time
	mu  sync.Mutex
}

// NewClock returns a clock stopped at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
