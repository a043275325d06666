package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/service"
)

// buildLedgerWhere turns a LedgerFilter into a WHERE clause over
// transactions t LEFT JOIN categories c.
func buildLedgerWhere(userID int64, f service.LedgerFilter) (string, []any) {
	clauses := []string{"t.user_id = ?", "t.deleted_at IS NULL"}
	args := []any{userID}

	if f.Type != nil {
		clauses = append(clauses, "t.type = ?")
		args = append(args, string(*f.Type))
	}
	if f.Start != nil {
		clauses = append(clauses, "t.date >= ?")
		args = append(args, f.Start.UTC())
	}
	if f.End != nil {
		clauses = append(clauses, "t.date < ?")
		args = append(args, f.End.UTC())
	}
	if f.CreatedSince != nil {
		clauses = append(clauses, "t.created_at >= ?")
		args = append(args, f.CreatedSince.UTC())
	}
	if f.CreatedBefore != nil {
		clauses = append(clauses, "t.created_at < ?")
		args = append(args, f.CreatedBefore.UTC())
	}
	if f.CategoryID != nil {
		clauses = append(clauses, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if len(f.Groups) > 0 {
		clauses = append(clauses, "c.grp IN ("+placeholders(len(f.Groups))+")")
		for _, g := range f.Groups {
			args = append(args, string(g))
		}
	}
	if len(f.ExcludeGroups) > 0 {
		clauses = append(clauses, "(c.grp IS NULL OR c.grp NOT IN ("+placeholders(len(f.ExcludeGroups))+"))")
		for _, g := range f.ExcludeGroups {
			args = append(args, string(g))
		}
	}
	if f.PaidOnly {
		clauses = append(clauses, "t.is_paid = 1")
	}

	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// SumTransactions returns the exact sum of matching transaction amounts.
func (s *queries) SumTransactions(ctx context.Context, userID int64, filter service.LedgerFilter) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}

	where, args := buildLedgerWhere(userID, filter)
	query := `
		SELECT COALESCE(SUM(t.amount_cents), 0)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE ` + where

	var cents int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return fromCents(cents), nil
}

// CountTransactions returns the number of matching transactions.
func (s *queries) CountTransactions(ctx context.Context, userID int64, filter service.LedgerFilter) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	where, args := buildLedgerWhere(userID, filter)
	query := `
		SELECT COUNT(*)
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE ` + where

	var count int
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// SumLinks returns the sum of linked amounts between live transactions.
func (s *queries) SumLinks(ctx context.Context, userID int64, filter service.LinkFilter) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}

	clauses := []string{"l.user_id = ?", "src.deleted_at IS NULL", "dst.deleted_at IS NULL"}
	args := []any{userID}
	if filter.Type != nil {
		clauses = append(clauses, "l.link_type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.Start != nil {
		clauses = append(clauses, "src.date >= ?")
		args = append(args, filter.Start.UTC())
	}
	if filter.End != nil {
		clauses = append(clauses, "src.date < ?")
		args = append(args, filter.End.UTC())
	}

	query := `
		SELECT COALESCE(SUM(l.amount_cents), 0)
		FROM transaction_links l
		JOIN transactions src ON src.id = l.source_id
		JOIN transactions dst ON dst.id = l.target_id
		WHERE ` + strings.Join(clauses, " AND ")

	var cents int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum links: %w", err)
	}
	return fromCents(cents), nil
}
