package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

// Recorder stores a new ledger transaction through the mutation path.
type Recorder interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) error
}

// HashChecker reports whether a transaction hash is already in the ledger.
type HashChecker interface {
	TransactionHashExists(ctx context.Context, userID int64, hash string) (bool, error)
}

// Categorizer fills in the category of an imported transaction if it can.
type Categorizer interface {
	Categorize(ctx context.Context, txn *model.Transaction) error
}

// ImportStats summarizes one import.
type ImportStats struct {
	Parsed      int
	Imported    int
	Duplicates  int
	Categorized int
}

// Importer records parsed statement lines, skipping ones already imported.
type Importer struct {
	parser      *Parser
	hashes      HashChecker
	recorder    Recorder
	categorizer Categorizer
}

// NewImporter creates an importer.
func NewImporter(hashes HashChecker, recorder Recorder) *Importer {
	return &Importer{parser: NewParser(), hashes: hashes, recorder: recorder}
}

// WithCategorizer categorizes new transactions with c before they are
// recorded.
func (i *Importer) WithCategorizer(c Categorizer) *Importer {
	i.categorizer = c
	return i
}

var _ HashChecker = (service.Storage)(nil)

// Import parses reader and records every new transaction for userID.
// onRecord, if set, is called once per parsed transaction after it was
// handled, so callers can drive a progress display.
func (i *Importer) Import(ctx context.Context, reader io.Reader, userID int64, onRecord func()) (ImportStats, error) {
	var stats ImportStats

	transactions, err := i.parser.ParseFile(ctx, reader, userID)
	if err != nil {
		return stats, err
	}
	stats.Parsed = len(transactions)

	for idx := range transactions {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		txn := &transactions[idx]

		exists, err := i.hashes.TransactionHashExists(ctx, userID, txn.Hash)
		if err != nil {
			return stats, fmt.Errorf("failed to check for duplicate: %w", err)
		}
		if exists {
			stats.Duplicates++
		} else {
			if i.categorizer != nil {
				if err := i.categorizer.Categorize(ctx, txn); err != nil {
					return stats, fmt.Errorf("failed to categorize %q: %w", txn.Description, err)
				}
				if txn.CategoryID != nil {
					stats.Categorized++
				}
			}
			if err := i.recorder.RecordTransaction(ctx, txn); err != nil {
				return stats, fmt.Errorf("failed to record %q on %s: %w",
					txn.Description, txn.Date.Format("2006-01-02"), err)
			}
			stats.Imported++
		}
		if onRecord != nil {
			onRecord()
		}
	}

	slog.Info("Imported OFX transactions",
		"user_id", userID,
		"parsed", stats.Parsed,
		"imported", stats.Imported,
		"duplicates", stats.Duplicates,
		"categorized", stats.Categorized)
	return stats, nil
}
