package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

// CreateGoal inserts a savings goal.
func (s *queries) CreateGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if goal == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if strings.TrimSpace(goal.Name) == "" || goal.UserID == 0 {
		return fmt.Errorf("%w: missing name or user", ErrInvalidGoal)
	}
	if !goal.TargetAmount.IsPositive() || goal.CurrentAmount.IsNegative() {
		return fmt.Errorf("%w: target must be positive and current not negative", ErrInvalidGoal)
	}

	goal.CreatedAt = utcNow()
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO goals (user_id, name, target_cents, current_cents, deadline, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		goal.UserID, goal.Name, toCents(goal.TargetAmount), toCents(goal.CurrentAmount),
		timeArg(goal.Deadline), goal.CreatedAt)
	if err != nil {
		return mapWriteError(err, "goal "+goal.Name)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get goal ID: %w", err)
	}
	goal.ID = id
	return nil
}

// GetGoal returns a goal by ID.
func (s *queries) GetGoal(ctx context.Context, id int64) (*model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		g                    model.Goal
		targetCents, current int64
		deadline             sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, name, target_cents, current_cents, deadline, created_at
		FROM goals WHERE id = ?`, id).Scan(
		&g.ID, &g.UserID, &g.Name, &targetCents, &current, &deadline, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	g.TargetAmount = fromCents(targetCents)
	g.CurrentAmount = fromCents(current)
	g.Deadline = timePtr(deadline)
	return &g, nil
}

// AddGoalContribution records a deposit and adds it to the goal's balance.
func (s *queries) AddGoalContribution(ctx context.Context, contribution *model.GoalContribution) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if contribution == nil {
		return fmt.Errorf("%w: contribution", ErrNilParameter)
	}
	if !contribution.Amount.IsPositive() {
		return fmt.Errorf("%w: contribution must be positive", ErrInvalidGoal)
	}
	if contribution.Date.IsZero() {
		contribution.Date = utcNow()
	}

	cents := toCents(contribution.Amount)
	result, err := s.q.ExecContext(ctx, `
		UPDATE goals SET current_cents = current_cents + ? WHERE id = ?`,
		cents, contribution.GoalID)
	if err != nil {
		return mapLockError(fmt.Errorf("failed to update goal: %w", err))
	}
	if err := expectOneRow(result, fmt.Sprintf("goal %d", contribution.GoalID)); err != nil {
		return err
	}

	result, err = s.q.ExecContext(ctx, `
		INSERT INTO goal_contributions (goal_id, amount_cents, date, created_at)
		VALUES (?, ?, ?, ?)`,
		contribution.GoalID, cents, contribution.Date.UTC(), utcNow())
	if err != nil {
		return mapWriteError(err, "goal contribution")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get contribution ID: %w", err)
	}
	contribution.ID = id
	return nil
}

// SumGoalContributions returns the total contributed to a goal since the
// given instant.
func (s *queries) SumGoalContributions(ctx context.Context, goalID int64, since time.Time) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}

	var cents int64
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM goal_contributions
		WHERE goal_id = ? AND date >= ?`, goalID, since.UTC()).Scan(&cents)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum goal contributions: %w", err)
	}
	return fromCents(cents), nil
}
