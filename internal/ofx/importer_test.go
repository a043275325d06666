package ofx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-quest/internal/classification"
	"github.com/Veraticus/spice-quest/internal/indicator"
	"github.com/Veraticus/spice-quest/internal/ledger"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
	"github.com/Veraticus/spice-quest/internal/testutil"
)

func TestImporter_SkipsDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	indicators := indicator.New(db.Storage, nil, nil, indicator.DefaultConfig())
	importer := NewImporter(db.Storage, ledger.New(db.Storage, indicators, nil, nil))

	ticks := 0
	stats, err := importer.Import(ctx, strings.NewReader(sampleBankOFX), 1, func() { ticks++ })
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Parsed: 4, Imported: 4}, stats)
	assert.Equal(t, 4, ticks)

	stats, err = importer.Import(ctx, strings.NewReader(sampleBankOFX), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Parsed: 4, Duplicates: 4}, stats)

	// The same statement belongs to a different ledger for another user.
	stats, err = importer.Import(ctx, strings.NewReader(sampleBankOFX), 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Imported)

	income, err := db.Storage.SumTransactions(ctx, 1, service.LedgerFilter{Type: service.Ptr(model.TransactionIncome)})
	require.NoError(t, err)
	assert.Equal(t, "2400", income.String())

	expense, err := db.Storage.SumTransactions(ctx, 1, service.LedgerFilter{Type: service.Ptr(model.TransactionExpense)})
	require.NoError(t, err)
	assert.Equal(t, "650.5", expense.String())
}

func TestImporter_InvalidFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	indicators := indicator.New(db.Storage, nil, nil, indicator.DefaultConfig())
	importer := NewImporter(db.Storage, ledger.New(db.Storage, indicators, nil, nil))

	_, err := importer.Import(context.Background(), strings.NewReader("not valid OFX"), 1, nil)
	assert.Error(t, err)

	count, err := db.Storage.CountTransactions(context.Background(), 1, service.LedgerFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImporter_CategorizesNewTransactions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	indicators := indicator.New(db.Storage, nil, nil, indicator.DefaultConfig())

	detector, err := classification.NewPatternDetector(classification.DefaultPatterns())
	require.NoError(t, err)
	importer := NewImporter(db.Storage, ledger.New(db.Storage, indicators, nil, nil)).
		WithCategorizer(classification.NewCategorizer(detector, db.Storage))

	stats, err := importer.Import(ctx, strings.NewReader(sampleBankOFX), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Parsed: 4, Imported: 4, Categorized: 3}, stats)

	groceries, err := db.Storage.SumTransactions(ctx, 1, service.LedgerFilter{
		CategoryID: service.Ptr(db.Category("Groceries")),
	})
	require.NoError(t, err)
	assert.Equal(t, "125", groceries.String())

	salary, err := db.Storage.SumTransactions(ctx, 1, service.LedgerFilter{
		CategoryID: service.Ptr(db.Category("Salary")),
	})
	require.NoError(t, err)
	assert.Equal(t, "2400", salary.String())
}
