package mission

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
)

// Direction says which way a tracked value should move.
type Direction int

const (
	// HigherIsBetter targets are met when current >= target.
	HigherIsBetter Direction = iota
	// LowerIsBetter targets are met when current <= target.
	LowerIsBetter
)

func (d Direction) met(value, target decimal.Decimal) bool {
	if d == LowerIsBetter {
		return value.LessThanOrEqual(target)
	}
	return value.GreaterThanOrEqual(target)
}

// Linear interpolates progress from baseline to target.
//
// A target that the baseline already satisfied reports 100 and complete
// regardless of current. Otherwise progress is the clamped fraction of the
// distance from baseline to target that current has covered, and
// completion requires current to meet the target.
func Linear(baseline, current, target decimal.Decimal, dir Direction) (float64, bool) {
	if dir.met(baseline, target) {
		return 100, true
	}

	var covered, distance decimal.Decimal
	if dir == LowerIsBetter {
		covered = baseline.Sub(current)
		distance = baseline.Sub(target)
	} else {
		covered = current.Sub(baseline)
		distance = target.Sub(baseline)
	}

	isComplete := dir.met(current, target)
	if isComplete {
		return 100, true
	}
	return ratioPct(covered, distance), false
}

// indicatorValidator tracks one indicator from the summary against a
// mission threshold. The summary only describes the present, so a mission
// judged as of its deadline cannot complete.
type indicatorValidator struct {
	deps      Deps
	name      string
	dir       Direction
	current   func(model.FinancialSummary) decimal.Decimal
	baseline  func(model.Baseline) decimal.Decimal
	threshold func(*model.Mission) *decimal.Decimal
	fallback  func(*model.Profile) decimal.Decimal
}

// NewTPSValidator tracks the savings rate upwards towards TargetTPS.
func NewTPSValidator(deps Deps) Validator {
	return &indicatorValidator{
		deps:      deps,
		name:      "tps",
		dir:       HigherIsBetter,
		current:   func(s model.FinancialSummary) decimal.Decimal { return s.TPS },
		baseline:  func(b model.Baseline) decimal.Decimal { return b.TPS },
		threshold: func(m *model.Mission) *decimal.Decimal { return m.TargetTPS },
		fallback:  func(p *model.Profile) decimal.Decimal { return p.TargetTPS },
	}
}

// NewRDRValidator tracks the debt-service ratio downwards towards TargetRDR.
func NewRDRValidator(deps Deps) Validator {
	return &indicatorValidator{
		deps:      deps,
		name:      "rdr",
		dir:       LowerIsBetter,
		current:   func(s model.FinancialSummary) decimal.Decimal { return s.RDR },
		baseline:  func(b model.Baseline) decimal.Decimal { return b.RDR },
		threshold: func(m *model.Mission) *decimal.Decimal { return m.TargetRDR },
		fallback:  func(p *model.Profile) decimal.Decimal { return p.TargetRDR },
	}
}

// NewILIValidator tracks the liquidity index upwards towards MinILI.
func NewILIValidator(deps Deps) Validator {
	return &indicatorValidator{
		deps:      deps,
		name:      "ili",
		dir:       HigherIsBetter,
		current:   func(s model.FinancialSummary) decimal.Decimal { return s.ILI },
		baseline:  func(b model.Baseline) decimal.Decimal { return b.ILI },
		threshold: func(m *model.Mission) *decimal.Decimal { return m.MinILI },
		fallback:  func(p *model.Profile) decimal.Decimal { return p.TargetILI },
	}
}

type indicatorReading struct {
	current  decimal.Decimal
	baseline decimal.Decimal
	target   decimal.Decimal
}

func (v *indicatorValidator) read(ctx context.Context, m *model.Mission, p *model.MissionProgress) (indicatorReading, error) {
	summary, err := v.deps.Indicators.GetSummary(ctx, p.UserID)
	if err != nil {
		return indicatorReading{}, fmt.Errorf("failed to get indicators: %w", err)
	}

	r := indicatorReading{
		current:  v.current(summary),
		baseline: v.baseline(baselineOf(p)),
	}
	if t := v.threshold(m); t != nil {
		r.target = *t
	} else {
		profile, err := v.deps.Store.GetOrCreateProfile(ctx, p.UserID)
		if err != nil {
			return indicatorReading{}, fmt.Errorf("failed to load profile targets: %w", err)
		}
		r.target = v.fallback(profile)
	}
	return r, nil
}

func (v *indicatorValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	r, err := v.read(ctx, m, p)
	if err != nil {
		return Result{}, err
	}

	pct, done := Linear(r.baseline, r.current, r.target, v.dir)
	metrics := map[string]any{
		"current_" + v.name:  r.current.String(),
		"baseline_" + v.name: r.baseline.String(),
		"target_" + v.name:   r.target.String(),
	}

	var msg string
	switch {
	case v.deps.historical():
		done = false
		msg = fmt.Sprintf("%s can no longer be judged after the deadline", strings.ToUpper(v.name))
	case v.dir.met(r.baseline, r.target):
		msg = fmt.Sprintf("%s target %s was already met at the start", strings.ToUpper(v.name), r.target)
	case done:
		msg = fmt.Sprintf("%s reached %s (target %s)", strings.ToUpper(v.name), r.current, r.target)
	default:
		msg = fmt.Sprintf("%s is %s, moving from %s towards %s", strings.ToUpper(v.name), r.current, r.baseline, r.target)
	}

	return Result{Percentage: pct, IsComplete: done, Metrics: metrics, Message: msg}, nil
}

func (v *indicatorValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	if v.deps.historical() {
		return false, "Indicators are only judged before the deadline", nil
	}
	r, err := v.read(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	if v.dir.met(r.baseline, r.target) || v.dir.met(r.current, r.target) {
		return true, fmt.Sprintf("%s target %s met", strings.ToUpper(v.name), r.target), nil
	}
	return false, fmt.Sprintf("%s %s does not meet target %s", strings.ToUpper(v.name), r.current, r.target), nil
}
