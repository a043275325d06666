package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

const defaultMinTransactions = 10

type onboardingValidator struct {
	deps Deps
}

// NewOnboardingValidator counts transactions recorded since the mission
// started against MinTransactions.
func NewOnboardingValidator(deps Deps) Validator {
	return &onboardingValidator{deps: deps}
}

func (v *onboardingValidator) count(ctx context.Context, p *model.MissionProgress) (int, error) {
	count, err := v.deps.Store.CountTransactions(ctx, p.UserID, service.LedgerFilter{
		CreatedSince:  service.Ptr(startOf(p)),
		CreatedBefore: v.deps.AsOf,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (v *onboardingValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	count, err := v.count(ctx, p)
	if err != nil {
		return Result{}, err
	}
	return countResult(count, minTransactions(m), "transactions recorded"), nil
}

func (v *onboardingValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	count, err := v.count(ctx, p)
	if err != nil {
		return false, "", err
	}
	return validateCount(count, minTransactions(m), "transactions recorded")
}

type paymentDisciplineValidator struct {
	deps Deps
}

// NewPaymentDisciplineValidator counts transactions marked paid that are
// dated on or after the mission start.
func NewPaymentDisciplineValidator(deps Deps) Validator {
	return &paymentDisciplineValidator{deps: deps}
}

func (v *paymentDisciplineValidator) count(ctx context.Context, p *model.MissionProgress) (int, error) {
	count, err := v.deps.Store.CountTransactions(ctx, p.UserID, service.LedgerFilter{
		Start:         service.Ptr(startOf(p)),
		End:           v.deps.AsOf,
		CreatedBefore: v.deps.AsOf,
		PaidOnly:      true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count paid transactions: %w", err)
	}
	return count, nil
}

func (v *paymentDisciplineValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	count, err := v.count(ctx, p)
	if err != nil {
		return Result{}, err
	}
	return countResult(count, minTransactions(m), "payments made on time"), nil
}

func (v *paymentDisciplineValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	count, err := v.count(ctx, p)
	if err != nil {
		return false, "", err
	}
	return validateCount(count, minTransactions(m), "payments made on time")
}

func minTransactions(m *model.Mission) int {
	if m.MinTransactions > 0 {
		return m.MinTransactions
	}
	return defaultMinTransactions
}

func countResult(count, target int, what string) Result {
	return Result{
		Percentage: countPct(count, target),
		IsComplete: count >= target,
		Metrics: map[string]any{
			"count":  count,
			"target": target,
		},
		Message: fmt.Sprintf("%d of %d %s", count, target, what),
	}
}

func validateCount(count, target int, what string) (bool, string, error) {
	if count >= target {
		return true, fmt.Sprintf("%d %s", count, what), nil
	}
	return false, fmt.Sprintf("only %d of %d %s", count, target, what), nil
}

type consistencyValidator struct {
	deps Deps
}

// NewConsistencyValidator checks that every week of the mission has at
// least MinWeeklyTransactions transactions. It completes only once the
// whole duration has passed.
func NewConsistencyValidator(deps Deps) Validator {
	return &consistencyValidator{deps: deps}
}

// Weeks returns the number of week buckets a mission spans, at least one.
func Weeks(m *model.Mission) int {
	weeks := (m.DurationDays + 6) / 7
	if weeks < 1 {
		return 1
	}
	return weeks
}

func (v *consistencyValidator) weekCounts(ctx context.Context, m *model.Mission, p *model.MissionProgress) ([]int, error) {
	start := startOf(p)
	now := v.deps.now()
	counts := make([]int, Weeks(m))

	for w := range counts {
		from, to := weekBounds(start, w)
		if !from.Before(now) {
			break
		}
		if deadline := m.Deadline(start); m.DurationDays > 0 && deadline.Before(to) {
			to = deadline
		}
		count, err := v.deps.Store.CountTransactions(ctx, p.UserID, service.LedgerFilter{
			Start:         &from,
			End:           &to,
			CreatedBefore: v.deps.AsOf,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count transactions for week %d: %w", w+1, err)
		}
		counts[w] = count
	}
	return counts, nil
}

func minWeekly(m *model.Mission) int {
	if m.MinWeeklyTransactions > 0 {
		return m.MinWeeklyTransactions
	}
	return 1
}

func weeksMeeting(counts []int, minimum int) int {
	met := 0
	for _, c := range counts {
		if c >= minimum {
			met++
		}
	}
	return met
}

func (v *consistencyValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	counts, err := v.weekCounts(ctx, m, p)
	if err != nil {
		return Result{}, err
	}

	minimum := minWeekly(m)
	met := weeksMeeting(counts, minimum)
	total := len(counts)
	now := v.deps.now()
	return Result{
		Percentage: paced(countPct(met, total), m, p, now),
		IsComplete: met == total && finished(m, p, now),
		Metrics: map[string]any{
			"weekly_counts": counts,
			"weeks_met":     met,
			"total_weeks":   total,
			"min_weekly":    minimum,
		},
		Message: fmt.Sprintf("%d of %d weeks with at least %d transactions", met, total, minimum),
	}, nil
}

func (v *consistencyValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	counts, err := v.weekCounts(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	minimum := minWeekly(m)
	for i, c := range counts {
		if c < minimum {
			return false, fmt.Sprintf("week %d has %d of %d transactions", i+1, c, minimum), nil
		}
	}
	if !finished(m, p, v.deps.now()) {
		return false, "Mission period has not finished", nil
	}
	return true, "Every week met the minimum", nil
}

// weekBounds returns the half-open date range of the given zero-based week.
func weekBounds(start time.Time, week int) (time.Time, time.Time) {
	from := start.AddDate(0, 0, 7*week)
	return from, from.AddDate(0, 0, 7)
}
