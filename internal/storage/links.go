package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

// CreateLink inserts a transaction link. Balance invariants are checked by
// the caller inside the same transaction.
func (s *queries) CreateLink(ctx context.Context, link *model.TransactionLink) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLink(link); err != nil {
		return err
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = utcNow()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transaction_links (id, user_id, source_id, target_id, amount_cents, link_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.UserID, link.SourceID, link.TargetID,
		toCents(link.Amount), string(link.Type), link.CreatedAt.UTC())
	return mapWriteError(err, "link "+link.ID)
}

// GetLink returns a link by ID.
func (s *queries) GetLink(ctx context.Context, id string) (*model.TransactionLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, source_id, target_id, amount_cents, link_type, created_at
		FROM transaction_links WHERE id = ?`, id)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

// DeleteLink removes a link.
func (s *queries) DeleteLink(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `DELETE FROM transaction_links WHERE id = ?`, id)
	if err != nil {
		return mapWriteError(err, "link "+id)
	}
	return expectOneRow(result, "link "+id)
}

// DeleteLinksForTransaction removes every link touching txnID.
func (s *queries) DeleteLinksForTransaction(ctx context.Context, txnID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.q.ExecContext(ctx, `
		DELETE FROM transaction_links WHERE source_id = ? OR target_id = ?`, txnID, txnID)
	if err != nil {
		return 0, mapWriteError(err, "links of "+txnID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// GetLinkBalance returns a transaction's amount with its linked totals.
func (s *queries) GetLinkBalance(ctx context.Context, txnID string) (*model.LinkBalance, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var amount, outgoing, incoming int64
	err := s.q.QueryRowContext(ctx, `
		SELECT t.amount_cents,
		       COALESCE((SELECT SUM(amount_cents) FROM transaction_links WHERE source_id = t.id), 0),
		       COALESCE((SELECT SUM(amount_cents) FROM transaction_links WHERE target_id = t.id), 0)
		FROM transactions t WHERE t.id = ?`, txnID).Scan(&amount, &outgoing, &incoming)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", txnID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link balance: %w", err)
	}

	return &model.LinkBalance{
		Amount:   fromCents(amount),
		Outgoing: fromCents(outgoing),
		Incoming: fromCents(incoming),
	}, nil
}

// ListLinks returns all of a user's links, newest first.
func (s *queries) ListLinks(ctx context.Context, userID int64) ([]model.TransactionLink, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, user_id, source_id, target_id, amount_cents, link_type, created_at
		FROM transaction_links WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []model.TransactionLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

func scanLink(row scanner) (*model.TransactionLink, error) {
	var (
		link  model.TransactionLink
		cents int64
		typ   string
	)
	if err := row.Scan(&link.ID, &link.UserID, &link.SourceID, &link.TargetID, &cents, &typ, &link.CreatedAt); err != nil {
		return nil, err
	}
	link.Amount = fromCents(cents)
	link.Type = model.LinkType(typ)
	return &link, nil
}
