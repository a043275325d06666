package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

const awardColumns = `
	id, user_id, progress_id, mission_id, points,
	level_before, xp_before, level_after, xp_after, created_at`

// CreateAward appends an XP award. Each progress row can be awarded once;
// a second insert fails with ErrDuplicateEntry.
func (s *queries) CreateAward(ctx context.Context, award *model.XPAward) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if award == nil {
		return fmt.Errorf("%w: award", ErrNilParameter)
	}
	if err := validateString(award.ID, "award.ID"); err != nil {
		return err
	}

	if award.CreatedAt.IsZero() {
		award.CreatedAt = utcNow()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO xp_awards (`+awardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		award.ID, award.UserID, award.ProgressID, award.MissionID, award.Points,
		award.LevelBefore, award.XPBefore, award.LevelAfter, award.XPAfter, award.CreatedAt.UTC(),
	)
	return mapWriteError(err, fmt.Sprintf("award for progress %d", award.ProgressID))
}

// GetAwardByProgress returns the award recorded for a progress row.
func (s *queries) GetAwardByProgress(ctx context.Context, progressID int64) (*model.XPAward, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+awardColumns+` FROM xp_awards WHERE progress_id = ?`, progressID)
	award, err := scanAward(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("award for progress %d: %w", progressID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get award: %w", err)
	}
	return award, nil
}

// ListAwards returns the user's awards, oldest first.
func (s *queries) ListAwards(ctx context.Context, userID int64) ([]model.XPAward, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+awardColumns+` FROM xp_awards
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query awards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var awards []model.XPAward
	for rows.Next() {
		award, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		awards = append(awards, *award)
	}
	return awards, rows.Err()
}

func scanAward(row scanner) (*model.XPAward, error) {
	var a model.XPAward
	if err := row.Scan(
		&a.ID, &a.UserID, &a.ProgressID, &a.MissionID, &a.Points,
		&a.LevelBefore, &a.XPBefore, &a.LevelAfter, &a.XPAfter, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
