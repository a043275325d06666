package mission

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
)

type goalProgressValidator struct {
	deps Deps
}

// NewGoalProgressValidator tracks a goal's completion percentage from its
// value at mission start towards TargetGoalPct (100 when unset).
func NewGoalProgressValidator(deps Deps) Validator {
	return &goalProgressValidator{deps: deps}
}

func (v *goalProgressValidator) read(ctx context.Context, m *model.Mission, p *model.MissionProgress) (*model.Goal, decimal.Decimal, decimal.Decimal, error) {
	if m.GoalID == nil {
		return nil, decimal.Zero, decimal.Zero, nil
	}
	goal, err := v.deps.Store.GetGoal(ctx, *m.GoalID)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, fmt.Errorf("failed to load goal %d: %w", *m.GoalID, err)
	}
	if v.deps.historical() {
		// Roll the balance back to what it was at the cutoff.
		later, err := v.deps.Store.SumGoalContributions(ctx, goal.ID, *v.deps.AsOf)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum goal contributions: %w", err)
		}
		goal.CurrentAmount = goal.CurrentAmount.Sub(later)
	}
	baseline := decOr(baselineOf(p).GoalPct, decimal.Zero)
	target := decOr(m.TargetGoalPct, hundred)
	return goal, baseline, target, nil
}

func (v *goalProgressValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	goal, baseline, target, err := v.read(ctx, m, p)
	if err != nil {
		return Result{}, err
	}
	if goal == nil {
		return Result{Message: "Mission has no goal attached"}, nil
	}

	current := goal.CompletionPct().Round(2)
	pct, done := Linear(baseline, current, target, HigherIsBetter)
	metrics := map[string]any{
		"goal_id":          goal.ID,
		"current_goal_pct": current.String(),
		"target_goal_pct":  target.String(),
	}
	msg := fmt.Sprintf("%s is %s%% complete (target %s%%)", goal.Name, current, target)
	return Result{Percentage: pct, IsComplete: done, Metrics: metrics, Message: msg}, nil
}

func (v *goalProgressValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	goal, baseline, target, err := v.read(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	if goal == nil {
		return false, "Mission has no goal attached", nil
	}
	if baseline.GreaterThanOrEqual(target) || goal.CompletionPct().GreaterThanOrEqual(target) {
		return true, fmt.Sprintf("%s reached %s%%", goal.Name, target), nil
	}
	return false, fmt.Sprintf("%s has not reached %s%%", goal.Name, target), nil
}

type goalContributionValidator struct {
	deps Deps
}

// NewGoalContributionValidator sums contributions to the goal since the
// mission started and compares them with TargetAmount. Contributions are
// placed in time by their date.
func NewGoalContributionValidator(deps Deps) Validator {
	return &goalContributionValidator{deps: deps}
}

func (v *goalContributionValidator) read(ctx context.Context, m *model.Mission, p *model.MissionProgress) (decimal.Decimal, decimal.Decimal, bool, error) {
	if m.GoalID == nil {
		return decimal.Zero, decimal.Zero, false, nil
	}
	contributed, err := v.deps.Store.SumGoalContributions(ctx, *m.GoalID, startOf(p))
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("failed to sum goal contributions: %w", err)
	}
	if v.deps.historical() {
		later, err := v.deps.Store.SumGoalContributions(ctx, *m.GoalID, *v.deps.AsOf)
		if err != nil {
			return decimal.Zero, decimal.Zero, false, fmt.Errorf("failed to sum goal contributions: %w", err)
		}
		contributed = contributed.Sub(later)
	}
	return contributed, decOr(m.TargetAmount, decimal.Zero), true, nil
}

func (v *goalContributionValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	contributed, target, ok, err := v.read(ctx, m, p)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Message: "Mission has no goal attached"}, nil
	}

	pct, done := Linear(decimal.Zero, contributed, target, HigherIsBetter)
	metrics := map[string]any{
		"contributed":   contributed.StringFixed(2),
		"target_amount": target.StringFixed(2),
	}
	msg := fmt.Sprintf("Contributed %s of %s", contributed.StringFixed(2), target.StringFixed(2))
	return Result{Percentage: pct, IsComplete: done, Metrics: metrics, Message: msg}, nil
}

func (v *goalContributionValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	contributed, target, ok, err := v.read(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, "Mission has no goal attached", nil
	}
	if contributed.GreaterThanOrEqual(target) {
		return true, "Contribution target reached", nil
	}
	return false, fmt.Sprintf("%s still to contribute", target.Sub(contributed).StringFixed(2)), nil
}
