package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

const progressColumns = `
	p.id, p.user_id, p.mission_id, p.status, p.progress, p.baseline, p.metrics,
	p.message, p.started_at, p.completed_at, p.created_at, p.updated_at`

// CreateProgress inserts a new progress row. A second row for the same
// user and mission fails with ErrDuplicateEntry.
func (s *queries) CreateProgress(ctx context.Context, progress *model.MissionProgress) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProgress(progress); err != nil {
		return err
	}

	baseline, metrics, err := encodeProgressJSON(progress)
	if err != nil {
		return err
	}

	ts := utcNow()
	progress.CreatedAt = ts
	progress.UpdatedAt = ts
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO mission_progress (
			user_id, mission_id, status, progress, baseline, metrics,
			message, started_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		progress.UserID, progress.MissionID, string(progress.Status), progress.Progress,
		baseline, metrics, progress.Message,
		timeArg(progress.StartedAt), timeArg(progress.CompletedAt), ts, ts,
	)
	if err != nil {
		return mapWriteError(err, fmt.Sprintf("progress for mission %d", progress.MissionID))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get progress ID: %w", err)
	}
	progress.ID = id
	return nil
}

// GetProgress returns a progress row with its mission attached.
func (s *queries) GetProgress(ctx context.Context, id int64) (*model.MissionProgress, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT `+progressColumns+`, `+missionColumns+`
		FROM mission_progress p JOIN missions m ON m.id = p.mission_id
		WHERE p.id = ?`, id)
	progress, err := scanProgressWithMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progress %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return progress, nil
}

// GetProgressByMission returns the user's progress on a mission.
func (s *queries) GetProgressByMission(ctx context.Context, userID, missionID int64) (*model.MissionProgress, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `
		SELECT `+progressColumns+`, `+missionColumns+`
		FROM mission_progress p JOIN missions m ON m.id = p.mission_id
		WHERE p.user_id = ? AND p.mission_id = ?`, userID, missionID)
	progress, err := scanProgressWithMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("progress for user %d mission %d: %w", userID, missionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return progress, nil
}

// ListProgress returns the user's progress rows, optionally restricted to
// the given statuses, oldest first.
func (s *queries) ListProgress(ctx context.Context, userID int64, statuses ...model.MissionStatus) ([]model.MissionProgress, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + progressColumns + `, ` + missionColumns + `
		FROM mission_progress p JOIN missions m ON m.id = p.mission_id
		WHERE p.user_id = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		query += " AND p.status IN (" + placeholders(len(statuses)) + ")"
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY p.created_at, p.id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []model.MissionProgress
	for rows.Next() {
		progress, err := scanProgressWithMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		list = append(list, *progress)
	}
	return list, rows.Err()
}

// UpdateProgress writes progress only if the stored status still equals
// expected. A lost race yields ErrInvalidTransition; a move the state
// machine forbids yields a backward_transition invariant error.
func (s *queries) UpdateProgress(ctx context.Context, progress *model.MissionProgress, expected model.MissionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProgress(progress); err != nil {
		return err
	}
	if progress.ID == 0 {
		return fmt.Errorf("%w: missing progress ID", ErrInvalidProgress)
	}
	if expected.IsTerminal() {
		return common.NewInvariantError(common.InvariantBackwardTransition,
			"progress %d is %s and cannot change", progress.ID, expected)
	}
	if progress.Status != expected && !expected.CanTransitionTo(progress.Status) {
		return common.NewInvariantError(common.InvariantBackwardTransition,
			"progress %d cannot move from %s to %s", progress.ID, expected, progress.Status)
	}

	baseline, metrics, err := encodeProgressJSON(progress)
	if err != nil {
		return err
	}

	progress.UpdatedAt = utcNow()
	result, err := s.q.ExecContext(ctx, `
		UPDATE mission_progress
		SET status = ?, progress = ?, baseline = ?, metrics = ?, message = ?,
		    started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(progress.Status), progress.Progress, baseline, metrics, progress.Message,
		timeArg(progress.StartedAt), timeArg(progress.CompletedAt), progress.UpdatedAt,
		progress.ID, string(expected),
	)
	if err != nil {
		return mapLockError(fmt.Errorf("failed to update progress: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var current string
		err := s.q.QueryRowContext(ctx, `SELECT status FROM mission_progress WHERE id = ?`, progress.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("progress %d: %w", progress.ID, common.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read progress status: %w", err)
		}
		return fmt.Errorf("%w: progress %d is %s, expected %s",
			common.ErrInvalidTransition, progress.ID, current, expected)
	}
	return nil
}

// AssignedMissionIDs returns the IDs of every mission the user has ever
// been assigned, regardless of status.
func (s *queries) AssignedMissionIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `SELECT mission_id FROM mission_progress WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned missions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan mission ID: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// UsersWithOpenProgress returns every user with a PENDING or ACTIVE mission.
func (s *queries) UsersWithOpenProgress(ctx context.Context) ([]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM mission_progress
		WHERE status IN (?, ?)
		ORDER BY user_id`, string(model.StatusPending), string(model.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func encodeProgressJSON(p *model.MissionProgress) (any, any, error) {
	var baseline, metrics any
	if p.Baseline != nil {
		data, err := json.Marshal(p.Baseline)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal baseline: %w", err)
		}
		baseline = string(data)
	}
	if len(p.Metrics) > 0 {
		data, err := json.Marshal(p.Metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal metrics: %w", err)
		}
		metrics = string(data)
	}
	return baseline, metrics, nil
}

// scanProgressWithMission scans progressColumns followed by missionColumns.
func scanProgressWithMission(row scanner) (*model.MissionProgress, error) {
	var (
		p                      model.MissionProgress
		m                      model.Mission
		status                 string
		baseline, metrics      sql.NullString
		startedAt, completedAt sql.NullTime
		mtyp, strategy         string
		missionDecimals        [8]decimal.NullDecimal
		categoryID, goalID     sql.NullInt64
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &p.MissionID, &status, &p.Progress, &baseline, &metrics,
		&p.Message, &startedAt, &completedAt, &p.CreatedAt, &p.UpdatedAt,
		&m.ID, &m.Title, &m.Description, &mtyp, &strategy,
		&missionDecimals[0], &missionDecimals[1], &missionDecimals[2], &missionDecimals[3],
		&missionDecimals[4], &missionDecimals[5], &missionDecimals[6], &missionDecimals[7],
		&categoryID, &goalID, &m.MinTransactions, &m.MinWeeklyTransactions,
		&m.DurationDays, &m.RewardXP, &m.IsActive, &m.CreatedAt,
	); err != nil {
		return nil, err
	}

	p.Status = model.MissionStatus(status)
	p.StartedAt = timePtr(startedAt)
	p.CompletedAt = timePtr(completedAt)
	if baseline.Valid && baseline.String != "" {
		var b model.Baseline
		if err := json.Unmarshal([]byte(baseline.String), &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal baseline: %w", err)
		}
		p.Baseline = &b
	}
	if metrics.Valid && metrics.String != "" {
		if err := json.Unmarshal([]byte(metrics.String), &p.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}

	m.Type = model.MissionType(mtyp)
	m.Strategy = model.ValidationStrategy(strategy)
	m.TargetTPS = decimalPtr(missionDecimals[0])
	m.TargetRDR = decimalPtr(missionDecimals[1])
	m.MinILI = decimalPtr(missionDecimals[2])
	m.TargetReductionPct = decimalPtr(missionDecimals[3])
	m.SpendingLimit = decimalPtr(missionDecimals[4])
	m.TargetChangePct = decimalPtr(missionDecimals[5])
	m.TargetAmount = decimalPtr(missionDecimals[6])
	m.TargetGoalPct = decimalPtr(missionDecimals[7])
	m.TargetCategoryID = int64Ptr(categoryID)
	m.GoalID = int64Ptr(goalID)
	p.Mission = &m
	return &p, nil
}
