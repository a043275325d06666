package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

var defaultChangePct = decimal.NewFromInt(10)

// changeValidator compares a monthly flow in the last full calendar month
// before the mission started with the first full calendar month after it.
// The target month has to end before the result counts.
type changeValidator struct {
	deps   Deps
	name   string
	dir    Direction
	filter func(m *model.Mission) service.LedgerFilter
}

// NewIncomeChangeValidator wants monthly income to rise by TargetChangePct.
func NewIncomeChangeValidator(deps Deps) Validator {
	return &changeValidator{
		deps: deps,
		name: "income",
		dir:  HigherIsBetter,
		filter: func(m *model.Mission) service.LedgerFilter {
			return service.LedgerFilter{
				Type:       service.Ptr(model.TransactionIncome),
				CategoryID: m.TargetCategoryID,
			}
		},
	}
}

// NewExpenseChangeValidator wants monthly spend, in the target category or
// overall, to fall by TargetChangePct.
func NewExpenseChangeValidator(deps Deps) Validator {
	return &changeValidator{
		deps: deps,
		name: "expense",
		dir:  LowerIsBetter,
		filter: func(m *model.Mission) service.LedgerFilter {
			return service.LedgerFilter{
				Type:       service.Ptr(model.TransactionExpense),
				CategoryID: m.TargetCategoryID,
			}
		},
	}
}

// NewDepositChangeValidator wants monthly savings and investment deposits
// to rise by TargetChangePct.
func NewDepositChangeValidator(deps Deps) Validator {
	return &changeValidator{
		deps: deps,
		name: "deposit",
		dir:  HigherIsBetter,
		filter: func(m *model.Mission) service.LedgerFilter {
			f := service.LedgerFilter{Type: service.Ptr(model.TransactionIncome)}
			if m.TargetCategoryID != nil {
				f.CategoryID = m.TargetCategoryID
			} else {
				f.Groups = model.ReserveGroups
			}
			return f
		},
	}
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// TargetMonth returns the start of the first calendar month beginning at or
// after start.
func TargetMonth(start time.Time) time.Time {
	month := MonthStart(start)
	if month.Before(start) {
		month = month.AddDate(0, 1, 0)
	}
	return month
}

type changeReading struct {
	month   time.Time
	base    decimal.Decimal
	current decimal.Decimal
	change  decimal.Decimal
	target  decimal.Decimal
	actual  decimal.Decimal
	settled bool
}

func (v *changeValidator) sum(ctx context.Context, m *model.Mission, userID int64, from, to time.Time) (decimal.Decimal, error) {
	f := v.filter(m)
	f.Start = &from
	f.End = &to
	f.CreatedBefore = v.deps.AsOf
	total, err := v.deps.Store.SumTransactions(ctx, userID, f)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s: %w", v.name, err)
	}
	return total, nil
}

func (v *changeValidator) read(ctx context.Context, m *model.Mission, p *model.MissionProgress) (changeReading, error) {
	start := startOf(p)
	baseFrom := MonthStart(start).AddDate(0, -1, 0)
	r := changeReading{
		month:  TargetMonth(start),
		target: decOr(m.TargetChangePct, defaultChangePct).Abs(),
	}
	monthEnd := r.month.AddDate(0, 1, 0)
	r.settled = !v.deps.now().Before(monthEnd)

	var err error
	if r.base, err = v.sum(ctx, m, p.UserID, baseFrom, baseFrom.AddDate(0, 1, 0)); err != nil {
		return r, err
	}
	if r.current, err = v.sum(ctx, m, p.UserID, r.month, monthEnd); err != nil {
		return r, err
	}

	if r.base.IsZero() {
		return r, nil
	}
	r.change = r.current.Sub(r.base).Mul(hundred).DivRound(r.base, 4)

	rising := r.change.IsPositive()
	falling := r.change.IsNegative()
	if (v.dir == HigherIsBetter && rising) || (v.dir == LowerIsBetter && falling) {
		r.actual = r.change.Abs()
	}
	return r, nil
}

func (r changeReading) met() bool {
	return r.settled && !r.base.IsZero() && r.actual.IsPositive() && r.actual.GreaterThanOrEqual(r.target)
}

func (v *changeValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	r, err := v.read(ctx, m, p)
	if err != nil {
		return Result{}, err
	}

	metrics := map[string]any{
		"target_month":   r.month.Format("2006-01"),
		"month_settled":  r.settled,
		"baseline_month": r.base.StringFixed(2),
		"current_month":  r.current.StringFixed(2),
		"change_pct":     r.change.Round(2).String(),
		"target_pct":     r.target.String(),
	}
	if r.base.IsZero() {
		return Result{Metrics: metrics, Message: fmt.Sprintf("No %s in the baseline month to compare against", v.name)}, nil
	}
	if !r.settled {
		return Result{
			Metrics: metrics,
			Message: fmt.Sprintf("Monthly %s is compared once %s ends", v.name, r.month.Format("January 2006")),
		}, nil
	}

	pct := 100.0
	if r.target.IsPositive() {
		pct = ratioPct(r.actual, r.target)
	}
	if r.actual.IsZero() {
		pct = 0
	}
	return Result{
		Percentage: pct,
		IsComplete: r.met(),
		Metrics:    metrics,
		Message:    fmt.Sprintf("Monthly %s changed %s%% (target %s%%)", v.name, r.change.Round(1), r.target),
	}, nil
}

func (v *changeValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	r, err := v.read(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	if r.met() {
		return true, fmt.Sprintf("Monthly %s changed %s%%", v.name, r.change.Round(1)), nil
	}
	if !r.settled {
		return false, fmt.Sprintf("%s has not ended", r.month.Format("January 2006")), nil
	}
	return false, fmt.Sprintf("Monthly %s change %s%% does not meet %s%%", v.name, r.change.Round(1), r.target), nil
}
