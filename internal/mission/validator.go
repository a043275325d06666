// Package mission evaluates mission progress. Each validation strategy has a
// small stateless validator; the Registry maps strategy tags to them.
// Validators only read; persisting results is the orchestrator's job.
package mission

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

// Result is the outcome of one progress calculation.
type Result struct {
	Metrics    map[string]any
	Message    string
	Percentage float64
	IsComplete bool
}

// Validator evaluates one mission archetype.
type Validator interface {
	// CalculateProgress returns the current percentage in [0, 100] and
	// whether the completion criteria hold. It has no side effects.
	CalculateProgress(ctx context.Context, m *model.Mission, p *model.MissionProgress) (Result, error)
	// ValidateCompletion independently confirms the completion criteria.
	ValidateCompletion(ctx context.Context, m *model.Mission, p *model.MissionProgress) (bool, string, error)
}

// Indicators supplies a user's current financial summary.
type Indicators interface {
	GetSummary(ctx context.Context, userID int64) (model.FinancialSummary, error)
}

// Store is the read access validators need.
type Store interface {
	service.Ledger
	GetOrCreateProfile(ctx context.Context, userID int64) (*model.Profile, error)
}

// Deps are the collaborators a validator reads from. The orchestrator binds
// them to its open store transaction.
type Deps struct {
	Indicators Indicators
	Store      Store
	Clock      service.Clock
	// AsOf judges the mission as it stood at that instant, normally its
	// deadline. The clock stops there and transactions recorded later are
	// ignored. Validators that can only see current indicators never
	// report completion while AsOf is set.
	AsOf *time.Time
}

func (d Deps) now() time.Time {
	if d.AsOf != nil {
		return *d.AsOf
	}
	if d.Clock == nil {
		return service.SystemClock.Now()
	}
	return d.Clock.Now()
}

func (d Deps) historical() bool {
	return d.AsOf != nil
}

var hundred = decimal.NewFromInt(100)

// startOf returns when the mission clock started. Progress that was never
// activated falls back to its creation time.
func startOf(p *model.MissionProgress) time.Time {
	if p.StartedAt != nil {
		return *p.StartedAt
	}
	return p.CreatedAt
}

// elapsedFraction is how much of the mission's duration has passed, in [0, 1].
func elapsedFraction(m *model.Mission, p *model.MissionProgress, now time.Time) decimal.Decimal {
	if m.DurationDays <= 0 {
		return decimal.NewFromInt(1)
	}
	elapsed := now.Sub(startOf(p))
	if elapsed <= 0 {
		return decimal.Zero
	}
	frac := decimal.NewFromFloat(elapsed.Seconds()).Div(decimal.NewFromFloat(m.Duration().Seconds()))
	return clamp01(frac)
}

// finished reports whether the mission's whole duration has elapsed.
func finished(m *model.Mission, p *model.MissionProgress, now time.Time) bool {
	return elapsedFraction(m, p, now).Equal(decimal.NewFromInt(1))
}

// paced caps pct at the elapsed share of the mission's duration.
func paced(pct float64, m *model.Mission, p *model.MissionProgress, now time.Time) float64 {
	return math.Min(pct, toPct(elapsedFraction(m, p, now).Mul(hundred)))
}

func clamp01(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}

// ratioPct returns min(100, max(0, n/d×100)); zero when d is zero.
func ratioPct(n, d decimal.Decimal) float64 {
	if d.IsZero() {
		return 0
	}
	return toPct(clamp01(n.DivRound(d, 8)).Mul(hundred))
}

// toPct converts a percentage to float64 rounded to two decimals.
func toPct(d decimal.Decimal) float64 {
	f := d.Round(2).InexactFloat64()
	return math.Max(0, math.Min(100, f))
}

func countPct(count, target int) float64 {
	if target <= 0 {
		return 100
	}
	return ratioPct(decimal.NewFromInt(int64(count)), decimal.NewFromInt(int64(target)))
}

func decOr(d *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if d == nil {
		return fallback
	}
	return *d
}

func baselineOf(p *model.MissionProgress) model.Baseline {
	if p.Baseline == nil {
		return model.Baseline{}
	}
	return *p.Baseline
}

func complete(metrics map[string]any, msg string) Result {
	return Result{Percentage: 100, IsComplete: true, Metrics: metrics, Message: msg}
}
