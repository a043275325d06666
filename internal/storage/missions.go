package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

const missionColumns = `
	m.id, m.title, m.description, m.mission_type, m.strategy,
	m.target_tps, m.target_rdr, m.min_ili, m.target_reduction_pct, m.spending_limit,
	m.target_change_pct, m.target_amount, m.target_goal_pct,
	m.target_category_id, m.goal_id, m.min_transactions, m.min_weekly_transactions,
	m.duration_days, m.reward_xp, m.is_active, m.created_at`

// CreateMission inserts a mission template.
func (s *queries) CreateMission(ctx context.Context, mission *model.Mission) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMission(mission); err != nil {
		return err
	}

	if mission.CreatedAt.IsZero() {
		mission.CreatedAt = utcNow()
	}
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO missions (
			title, description, mission_type, strategy,
			target_tps, target_rdr, min_ili, target_reduction_pct, spending_limit,
			target_change_pct, target_amount, target_goal_pct,
			target_category_id, goal_id, min_transactions, min_weekly_transactions,
			duration_days, reward_xp, is_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mission.Title, mission.Description, string(mission.Type), string(mission.Strategy),
		decimalArg(mission.TargetTPS), decimalArg(mission.TargetRDR), decimalArg(mission.MinILI),
		decimalArg(mission.TargetReductionPct), decimalArg(mission.SpendingLimit),
		decimalArg(mission.TargetChangePct), decimalArg(mission.TargetAmount), decimalArg(mission.TargetGoalPct),
		int64Arg(mission.TargetCategoryID), int64Arg(mission.GoalID),
		mission.MinTransactions, mission.MinWeeklyTransactions,
		mission.DurationDays, mission.RewardXP, mission.IsActive, mission.CreatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError(err, "mission "+mission.Title)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get mission ID: %w", err)
	}
	mission.ID = id
	return nil
}

// GetMission returns a mission by ID.
func (s *queries) GetMission(ctx context.Context, id int64) (*model.Mission, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions m WHERE m.id = ?`, id)
	mission, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mission %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}
	return mission, nil
}

// ListActiveMissions returns every mission that may be assigned.
func (s *queries) ListActiveMissions(ctx context.Context) ([]model.Mission, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+missionColumns+` FROM missions m
		WHERE m.is_active = 1
		ORDER BY m.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var missions []model.Mission
	for rows.Next() {
		mission, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, *mission)
	}
	return missions, rows.Err()
}

// DeactivateMission stops a mission from being assigned again. Existing
// progress is untouched.
func (s *queries) DeactivateMission(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `UPDATE missions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return mapLockError(fmt.Errorf("failed to deactivate mission: %w", err))
	}
	return expectOneRow(result, fmt.Sprintf("mission %d", id))
}

func scanMission(row scanner) (*model.Mission, error) {
	var (
		m                                      model.Mission
		typ, strategy                          string
		targetTPS, targetRDR, minILI           decimal.NullDecimal
		reductionPct, spendingLimit, changePct decimal.NullDecimal
		targetAmount, goalPct                  decimal.NullDecimal
		categoryID, goalID                     sql.NullInt64
	)
	if err := row.Scan(
		&m.ID, &m.Title, &m.Description, &typ, &strategy,
		&targetTPS, &targetRDR, &minILI, &reductionPct, &spendingLimit,
		&changePct, &targetAmount, &goalPct,
		&categoryID, &goalID, &m.MinTransactions, &m.MinWeeklyTransactions,
		&m.DurationDays, &m.RewardXP, &m.IsActive, &m.CreatedAt,
	); err != nil {
		return nil, err
	}

	m.Type = model.MissionType(typ)
	m.Strategy = model.ValidationStrategy(strategy)
	m.TargetTPS = decimalPtr(targetTPS)
	m.TargetRDR = decimalPtr(targetRDR)
	m.MinILI = decimalPtr(minILI)
	m.TargetReductionPct = decimalPtr(reductionPct)
	m.SpendingLimit = decimalPtr(spendingLimit)
	m.TargetChangePct = decimalPtr(changePct)
	m.TargetAmount = decimalPtr(targetAmount)
	m.TargetGoalPct = decimalPtr(goalPct)
	m.TargetCategoryID = int64Ptr(categoryID)
	m.GoalID = int64Ptr(goalID)
	return &m, nil
}
