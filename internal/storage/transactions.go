package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

const transactionColumns = `
	id, user_id, type, amount_cents, date, description, category_id,
	recurrence_unit, recurrence_interval, is_paid, hash,
	created_at, updated_at, deleted_at`

// CreateTransaction inserts a new transaction.
func (s *queries) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	if txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}
	ts := utcNow()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = ts
	}
	txn.UpdatedAt = ts

	recUnit, recInterval := recurrenceArgs(txn.Recurrence)
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		txn.ID,
		txn.UserID,
		string(txn.Type),
		toCents(txn.Amount),
		txn.Date.UTC(),
		txn.Description,
		int64Arg(txn.CategoryID),
		recUnit,
		recInterval,
		txn.IsPaid,
		txn.Hash,
		txn.CreatedAt.UTC(),
		txn.UpdatedAt,
	)
	return mapWriteError(err, "transaction "+txn.ID)
}

// GetTransaction returns a transaction by ID, including soft-deleted ones.
func (s *queries) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// UpdateTransaction rewrites the mutable fields of a live transaction.
// The owner is part of the WHERE clause, so a transaction can never move
// between users.
func (s *queries) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	txn.Hash = txn.GenerateHash()
	txn.UpdatedAt = utcNow()

	recUnit, recInterval := recurrenceArgs(txn.Recurrence)
	result, err := s.q.ExecContext(ctx, `
		UPDATE transactions
		SET type = ?, amount_cents = ?, date = ?, description = ?, category_id = ?,
		    recurrence_unit = ?, recurrence_interval = ?, is_paid = ?, hash = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		string(txn.Type),
		toCents(txn.Amount),
		txn.Date.UTC(),
		txn.Description,
		int64Arg(txn.CategoryID),
		recUnit,
		recInterval,
		txn.IsPaid,
		txn.Hash,
		txn.UpdatedAt,
		txn.ID,
		txn.UserID,
	)
	if err != nil {
		return mapWriteError(err, "transaction "+txn.ID)
	}
	return expectOneRow(result, "transaction "+txn.ID)
}

// SoftDeleteTransaction marks a transaction as deleted while retaining it.
func (s *queries) SoftDeleteTransaction(ctx context.Context, id string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		at.UTC(), at.UTC(), id)
	if err != nil {
		return mapWriteError(err, "transaction "+id)
	}
	return expectOneRow(result, "transaction "+id)
}

// ListTransactions returns a user's transactions ordered by date.
func (s *queries) ListTransactions(ctx context.Context, userID int64, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, filter.EndDate, filter.StartDate)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	if filter.StartDate != nil {
		query += " AND date >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		query += " AND date < ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// TransactionHashExists reports whether a live transaction with hash exists.
func (s *queries) TransactionHashExists(ctx context.Context, userID int64, hash string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = ? AND hash = ? AND deleted_at IS NULL`,
		userID, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	return count > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		txn         model.Transaction
		typ         string
		cents       int64
		categoryID  sql.NullInt64
		recUnit     sql.NullString
		recInterval sql.NullInt64
		deletedAt   sql.NullTime
	)
	if err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&typ,
		&cents,
		&txn.Date,
		&txn.Description,
		&categoryID,
		&recUnit,
		&recInterval,
		&txn.IsPaid,
		&txn.Hash,
		&txn.CreatedAt,
		&txn.UpdatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	txn.Type = model.TransactionType(typ)
	txn.Amount = fromCents(cents)
	txn.Date = txn.Date.UTC()
	txn.CategoryID = int64Ptr(categoryID)
	txn.DeletedAt = timePtr(deletedAt)
	if recUnit.Valid {
		txn.Recurrence = &model.Recurrence{Unit: recUnit.String, Interval: int(recInterval.Int64)}
	}
	return &txn, nil
}

func recurrenceArgs(r *model.Recurrence) (any, any) {
	if r == nil {
		return nil, nil
	}
	return r.Unit, r.Interval
}

func expectOneRow(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, common.ErrNotFound)
	}
	return nil
}
