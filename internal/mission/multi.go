package mission

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
)

type criterion struct {
	name    string
	current decimal.Decimal
	target  decimal.Decimal
	dir     Direction
}

func (c criterion) met() bool {
	return c.dir.met(c.current, c.target)
}

type multiCriteriaValidator struct {
	deps Deps
}

// NewMultiCriteriaValidator requires every indicator threshold the mission
// sets. A mission with no thresholds is held to the profile targets.
func NewMultiCriteriaValidator(deps Deps) Validator {
	return &multiCriteriaValidator{deps: deps}
}

func (v *multiCriteriaValidator) criteria(ctx context.Context, m *model.Mission, p *model.MissionProgress) ([]criterion, error) {
	summary, err := v.deps.Indicators.GetSummary(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicators: %w", err)
	}

	tps, rdr, ili := m.TargetTPS, m.TargetRDR, m.MinILI
	if tps == nil && rdr == nil && ili == nil {
		profile, err := v.deps.Store.GetOrCreateProfile(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile targets: %w", err)
		}
		tps, rdr, ili = &profile.TargetTPS, &profile.TargetRDR, &profile.TargetILI
	}

	var out []criterion
	if tps != nil {
		out = append(out, criterion{name: "tps", current: summary.TPS, target: *tps, dir: HigherIsBetter})
	}
	if rdr != nil {
		out = append(out, criterion{name: "rdr", current: summary.RDR, target: *rdr, dir: LowerIsBetter})
	}
	if ili != nil {
		out = append(out, criterion{name: "ili", current: summary.ILI, target: *ili, dir: HigherIsBetter})
	}
	return out, nil
}

func (v *multiCriteriaValidator) CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error) {
	criteria, err := v.criteria(ctx, m, p)
	if err != nil {
		return Result{}, err
	}

	metrics := make(map[string]any, 2*len(criteria)+2)
	met := 0
	for _, c := range criteria {
		metrics["current_"+c.name] = c.current.String()
		metrics["target_"+c.name] = c.target.String()
		if c.met() {
			met++
		}
	}
	metrics["criteria_met"] = met
	metrics["criteria_total"] = len(criteria)

	result := Result{
		Percentage: countPct(met, len(criteria)),
		IsComplete: met == len(criteria),
		Metrics:    metrics,
		Message:    fmt.Sprintf("%d of %d criteria met", met, len(criteria)),
	}
	if v.deps.historical() {
		result.IsComplete = false
		result.Message = "Criteria can no longer be judged after the deadline"
	}
	return result, nil
}

func (v *multiCriteriaValidator) ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error) {
	if v.deps.historical() {
		return false, "Indicators are only judged before the deadline", nil
	}
	criteria, err := v.criteria(ctx, m, p)
	if err != nil {
		return false, "", err
	}
	var missing []string
	for _, c := range criteria {
		if !c.met() {
			missing = append(missing, strings.ToUpper(c.name))
		}
	}
	if len(missing) > 0 {
		return false, "Criteria not met: " + strings.Join(missing, ", "), nil
	}
	return true, "All criteria met", nil
}
