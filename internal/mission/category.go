package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

var defaultReductionPct = decimal.NewFromInt(10)

// categorySpend sums EXPENSE transactions in [from, to), scoped to the
// mission's target category when it has one. A non-nil recordedBefore
// drops transactions recorded at or after it.
func categorySpend(ctx context.Context, store Store, userID int64, categoryID *int64, from, to time.Time, recordedBefore *time.Time) (decimal.Decimal, error) {
	spend, err := store.SumTransactions(ctx, userID, service.LedgerFilter{
		Type:          service.Ptr(model.TransactionExpense),
		CategoryID:    categoryID,
		Start:         &from,
		End:           &to,
		CreatedBefore: recordedBefore,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum category spend: %w", err)
	}
	return spend, nil
}

// ReferenceSpend is the spend in the DurationDays immediately before start.
func ReferenceSpend(ctx context.Context, store Store, m *model.Mission, userID int64, start time.Time) (decimal.Decimal, error) {
	return categorySpend(ctx, store, userID, m.TargetCategoryID, start.AddDate(0, 0, -m.DurationDays), start, nil)
}

type categoryReductionValidator struct {
	deps Deps
}

// NewCategoryReductionValidator compares spend since the mission started
// with the reference period before it. The comparison is only final once
// the mission period has run its course.
func NewCategoryReductionValidator(deps Deps) Validator {
	return &categoryReductionValidator{deps: deps}
}

type reductionReading struct {
	at        time.Time
	reference decimal.Decimal
	current   decimal.Decimal
	reduction decimal.Decimal
	target    decimal.Decimal
	finished  bool
}

func (v *categoryReductionValidator) read(ctx context.Context, m *model.Mission, p *model.MissionProgress) (reductionReading, error) {
	start := startOf(p)
	r := reductionReading{target: decOr(m.TargetReductionPct, defaultReductionPct)}

	if spend := baselineOf(p).CategorySpend; spend != nil {
		r.reference = *spend
	} else {
		ref, err := ReferenceSpend(ctx, v.deps.Store, m, p.UserID, start)
		if err != nil {
			return r, err
		}
		r.reference = ref
	}

	now := v.deps.now()
	current, err := categorySpend(ctx, v.deps.Store, p.UserID, m.TargetCategoryID, start, now, v.deps.AsOf)
	if err != nil {
		return r, err
	}
	r.current = current
	r.finished = finished(m, p, now)
	r.at = now

	if !r.reference.IsZero() {
		r.reduction = r.reference.Sub(current).Mul(hundred).DivRound(r.reference, 4)
	}
	return r, nil
}

func (r reductionReading) met() bool {
	return r.finished && !r.reference.IsZero() && r.reduction.GreaterThanOrEqual(r.target)
}

func (v *categoryReductionValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	r, err := v.read(ctx, m, p)
	if err != nil {
		return Result{}, err
	}

	metrics := map[string]any{
		"reference_spend": r.reference.StringFixed(2),
		"current_spend":   r.current.StringFixed(2),
		"reduction_pct":   r.reduction.Round(2).String(),
		"target_pct":      r.target.String(),
	}
	if r.reference.IsZero() {
		return Result{Metrics: metrics, Message: "No spending in the reference period to reduce"}, nil
	}

	var pct float64
	if r.target.IsPositive() {
		pct = ratioPct(r.reduction, r.target)
	} else if !r.reduction.IsNegative() {
		pct = 100
	}
	return Result{
		Percentage: paced(pct, m, p, r.at),
		IsComplete: r.met(),
		Metrics:    metrics,
		Message:    fmt.Sprintf("Spending down %s%% (target %s%%)", r.reduction.Round(1), r.target),
	}, nil
}

func (v *categoryReductionValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	r, err := v.read(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	if r.met() {
		return true, fmt.Sprintf("Spending reduced by %s%%", r.reduction.Round(1)), nil
	}
	if !r.finished {
		return false, "Mission period has not finished", nil
	}
	return false, fmt.Sprintf("Reduction %s%% is below %s%%", r.reduction.Round(1), r.target), nil
}

// MetricLimitExceeded is set in a category-limit mission's metrics once the
// cap has been broken. It keeps progress frozen on later evaluations.
const MetricLimitExceeded = "limit_exceeded"

type categoryLimitValidator struct {
	deps Deps
}

// NewCategoryLimitValidator keeps cumulative spend since start under
// SpendingLimit for the whole duration.
func NewCategoryLimitValidator(deps Deps) Validator {
	return &categoryLimitValidator{deps: deps}
}

type limitReading struct {
	spend    decimal.Decimal
	limit    decimal.Decimal
	elapsed  decimal.Decimal
	exceeded bool
}

func (v *categoryLimitValidator) read(ctx context.Context, m *model.Mission, p *model.MissionProgress) (limitReading, error) {
	now := v.deps.now()
	end := now
	if deadline := m.Deadline(startOf(p)); m.DurationDays > 0 && deadline.Before(end) {
		end = deadline
	}
	spend, err := categorySpend(ctx, v.deps.Store, p.UserID, m.TargetCategoryID, startOf(p), end, v.deps.AsOf)
	if err != nil {
		return limitReading{}, err
	}

	r := limitReading{
		spend:   spend,
		limit:   decOr(m.SpendingLimit, decimal.Zero),
		elapsed: elapsedFraction(m, p, now),
	}
	previously, _ := p.Metrics[MetricLimitExceeded].(bool)
	r.exceeded = previously || spend.GreaterThan(r.limit)
	return r, nil
}

func (v *categoryLimitValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	r, err := v.read(ctx, m, p)
	if err != nil {
		return Result{}, err
	}

	metrics := map[string]any{
		"spend":             r.spend.StringFixed(2),
		"limit":             r.limit.StringFixed(2),
		"elapsed_pct":       r.elapsed.Mul(hundred).Round(2).String(),
		MetricLimitExceeded: r.exceeded,
	}
	if r.exceeded {
		return Result{
			Metrics: metrics,
			Message: fmt.Sprintf("Spending limit of %s was exceeded", r.limit.StringFixed(2)),
		}, nil
	}

	done := r.elapsed.Equal(decimal.NewFromInt(1))
	return Result{
		Percentage: toPct(r.elapsed.Mul(hundred)),
		IsComplete: done,
		Metrics:    metrics,
		Message:    fmt.Sprintf("Spent %s of %s", r.spend.StringFixed(2), r.limit.StringFixed(2)),
	}, nil
}

func (v *categoryLimitValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	r, err := v.read(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	switch {
	case r.exceeded:
		return false, "Spending limit was exceeded", nil
	case !r.elapsed.Equal(decimal.NewFromInt(1)):
		return false, "Mission period has not finished", nil
	}
	return true, "Stayed within the spending limit", nil
}
