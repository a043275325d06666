package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

// CaptureBaseline snapshots the values later progress is measured against:
// the current indicators, the live transaction count and, depending on the
// strategy, the reference category spend or the goal completion.
func CaptureBaseline(ctx context.Context, deps Deps, m *model.Mission, userID int64, start time.Time) (*model.Baseline, error) {
	summary, err := deps.Indicators.GetSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicators: %w", err)
	}

	count, err := deps.Store.CountTransactions(ctx, userID, service.LedgerFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	b := &model.Baseline{
		TPS:              summary.TPS,
		RDR:              summary.RDR,
		ILI:              summary.ILI,
		TransactionCount: count,
	}

	switch m.Strategy {
	case model.StrategyCategoryReduction:
		spend, err := ReferenceSpend(ctx, deps.Store, m, userID, start)
		if err != nil {
			return nil, err
		}
		b.CategorySpend = &spend
	case model.StrategyGoalProgress:
		if m.GoalID != nil {
			goal, err := deps.Store.GetGoal(ctx, *m.GoalID)
			if err != nil {
				return nil, fmt.Errorf("failed to load goal %d: %w", *m.GoalID, err)
			}
			pct := goal.CompletionPct().Round(2)
			b.GoalPct = &pct
		}
	}

	return b, nil
}

// Readiness estimates, in [0, 1], how much of an indicator mission's target
// the user's current summary already satisfies. Missions that are not
// judged on indicators report zero since they cannot be met instantly.
func Readiness(m *model.Mission, summary model.FinancialSummary, profile *model.Profile) decimal.Decimal {
	switch m.Strategy {
	case model.StrategyTPSImprovement:
		return closeness(summary.TPS, decOr(m.TargetTPS, profile.TargetTPS), HigherIsBetter)
	case model.StrategyRDRReduction:
		return closeness(summary.RDR, decOr(m.TargetRDR, profile.TargetRDR), LowerIsBetter)
	case model.StrategyILIBuilding:
		return closeness(summary.ILI, decOr(m.MinILI, profile.TargetILI), HigherIsBetter)
	case model.StrategyMultiCriteria:
		tps, rdr, ili := m.TargetTPS, m.TargetRDR, m.MinILI
		if tps == nil && rdr == nil && ili == nil {
			tps, rdr, ili = &profile.TargetTPS, &profile.TargetRDR, &profile.TargetILI
		}
		ready := decimal.NewFromInt(1)
		if tps != nil {
			ready = decimal.Min(ready, closeness(summary.TPS, *tps, HigherIsBetter))
		}
		if rdr != nil {
			ready = decimal.Min(ready, closeness(summary.RDR, *rdr, LowerIsBetter))
		}
		if ili != nil {
			ready = decimal.Min(ready, closeness(summary.ILI, *ili, HigherIsBetter))
		}
		return ready
	}
	return decimal.Zero
}

func closeness(current, target decimal.Decimal, dir Direction) decimal.Decimal {
	if dir.met(current, target) {
		return decimal.NewFromInt(1)
	}
	if dir == LowerIsBetter {
		if current.IsZero() {
			return decimal.NewFromInt(1)
		}
		return clamp01(target.DivRound(current, 4))
	}
	if !target.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return clamp01(current.DivRound(target, 4))
}
