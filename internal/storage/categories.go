package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

const categoryColumns = `id, user_id, name, type, grp, is_active, created_at`

// GetCategory returns a category by ID.
func (s *queries) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

// GetCategories returns the active global categories plus those owned by userID.
func (s *queries) GetCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE is_active = 1 AND (user_id IS NULL OR user_id = ?)
		ORDER BY type, grp, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// CreateCategory inserts a category. A nil UserID creates a global category.
func (s *queries) CreateCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(category); err != nil {
		return err
	}

	category.CreatedAt = utcNow()
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, type, grp, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int64Arg(category.UserID), category.Name, string(category.Type),
		string(category.Group), category.IsActive, category.CreatedAt)
	if err != nil {
		return mapWriteError(err, "category "+category.Name)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get category ID: %w", err)
	}
	category.ID = id
	return nil
}

func scanCategory(row scanner) (*model.Category, error) {
	var (
		cat       model.Category
		userID    sql.NullInt64
		typ, grp  string
		createdAt sql.NullTime
	)
	if err := row.Scan(&cat.ID, &userID, &cat.Name, &typ, &grp, &cat.IsActive, &createdAt); err != nil {
		return nil, err
	}
	cat.UserID = int64Ptr(userID)
	cat.Type = model.CategoryType(typ)
	cat.Group = model.CategoryGroup(grp)
	if createdAt.Valid {
		cat.CreatedAt = createdAt.Time
	}
	return &cat, nil
}
