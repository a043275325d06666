package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/mission"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

// Assignment tiers, from strictest to most relaxed.
const (
	TierStrict   = "strict"
	TierRelevant = "relevant"
	TierAny      = "any"
)

// indicatorGap names an indicator the user is currently failing.
type indicatorGap string

const (
	gapTPS        indicatorGap = "tps"
	gapRDR        indicatorGap = "rdr"
	gapILI        indicatorGap = "ili"
	gapOnboarding indicatorGap = "onboarding"
)

// addresses lists which gaps each mission archetype works on.
var addresses = map[model.MissionType][]indicatorGap{
	model.MissionOnboarding:        {gapOnboarding},
	model.MissionTPSImprovement:    {gapTPS},
	model.MissionIncomeGrowth:      {gapTPS},
	model.MissionExpenseControl:    {gapTPS},
	model.MissionCategoryReduction: {gapTPS},
	model.MissionCategoryLimit:     {gapTPS},
	model.MissionRDRReduction:      {gapRDR},
	model.MissionILIBuilding:       {gapILI},
	model.MissionSavingsGrowth:     {gapILI},
	model.MissionGoal:              {gapILI},
	model.MissionAdvanced:          {gapTPS, gapRDR, gapILI},
}

type candidate struct {
	mission   model.Mission
	score     int
	readiness decimal.Decimal
}

// AssignMissions fills the user's free mission slots. Candidates are scored
// by how many failing indicators their archetype addresses; missions the
// user would complete instantly are skipped. When that leaves nothing, the
// policy relaxes to any relevant mission and then to any active mission.
// Onboarding missions, and every mission when AutoActivate is set, start
// immediately.
func (o *Orchestrator) AssignMissions(ctx context.Context, userID int64) ([]model.MissionProgress, error) {
	var (
		assigned []model.MissionProgress
		tier     string
	)
	err := o.userTx(ctx, userID, func(ctx context.Context, tx service.Transaction) error {
		assigned, tier = nil, ""

		open, err := tx.ListProgress(ctx, userID, model.StatusPending, model.StatusActive)
		if err != nil {
			return fmt.Errorf("failed to list open missions: %w", err)
		}
		slots := o.config.MaxActive - len(open)
		if slots <= 0 {
			return nil
		}

		candidates, err := o.candidates(ctx, tx, userID)
		if err != nil {
			return err
		}

		var picked []candidate
		picked, tier = selectTier(candidates, o.config.TrivialRatio)
		if len(picked) > slots {
			picked = picked[:slots]
		}

		for _, c := range picked {
			m := c.mission
			p := &model.MissionProgress{
				UserID:    userID,
				MissionID: m.ID,
				Mission:   &m,
				Status:    model.StatusPending,
				Message:   "Assigned",
			}
			if m.Type == model.MissionOnboarding || o.config.AutoActivate {
				if err := o.activate(ctx, tx, p); err != nil {
					return err
				}
			}
			if err := tx.CreateProgress(ctx, p); err != nil {
				return fmt.Errorf("failed to assign mission %d: %w", m.ID, err)
			}
			assigned = append(assigned, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range assigned {
		o.metrics.Assigned(tier)
		slog.Info("Mission assigned",
			"user_id", userID,
			"mission_id", p.MissionID,
			"progress_id", p.ID,
			"status", p.Status,
			"tier", tier)
	}
	return assigned, nil
}

// candidates returns the active missions the user has never been assigned,
// scored against the user's current indicators.
func (o *Orchestrator) candidates(ctx context.Context, tx service.Transaction, userID int64) ([]candidate, error) {
	missions, err := tx.ListActiveMissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	seen, err := tx.AssignedMissionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned missions: %w", err)
	}

	profile, err := tx.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	summary, err := o.indicators.WithStore(tx).GetSummary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get indicators: %w", err)
	}
	count, err := tx.CountTransactions(ctx, userID, service.LedgerFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	gaps := failingIndicators(summary, profile)

	var out []candidate
	for _, m := range missions {
		if seen[m.ID] {
			continue
		}
		if m.GoalID != nil {
			owned, err := ownsGoal(ctx, tx, userID, *m.GoalID)
			if err != nil {
				return nil, err
			}
			if !owned {
				continue
			}
		}

		userGaps := gaps
		if count < onboardingTarget(m) {
			userGaps = append(append([]indicatorGap{}, gaps...), gapOnboarding)
		}
		out = append(out, candidate{
			mission:   m,
			score:     relevance(m.Type, userGaps),
			readiness: mission.Readiness(&m, summary, profile),
		})
	}
	return out, nil
}

func ownsGoal(ctx context.Context, tx service.Transaction, userID, goalID int64) (bool, error) {
	goal, err := tx.GetGoal(ctx, goalID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load goal %d: %w", goalID, err)
	}
	return goal.UserID == userID, nil
}

func onboardingTarget(m model.Mission) int {
	if m.Type != model.MissionOnboarding {
		return 0
	}
	if m.MinTransactions > 0 {
		return m.MinTransactions
	}
	return 10
}

// failingIndicators lists the indicators that miss the profile's targets.
func failingIndicators(summary model.FinancialSummary, profile *model.Profile) []indicatorGap {
	var gaps []indicatorGap
	if summary.TPS.LessThan(profile.TargetTPS) {
		gaps = append(gaps, gapTPS)
	}
	if summary.RDR.GreaterThan(profile.TargetRDR) {
		gaps = append(gaps, gapRDR)
	}
	if summary.ILI.LessThan(profile.TargetILI) {
		gaps = append(gaps, gapILI)
	}
	return gaps
}

func relevance(t model.MissionType, gaps []indicatorGap) int {
	score := 0
	for _, addressed := range addresses[t] {
		for _, g := range gaps {
			if g == addressed {
				score++
			}
		}
	}
	return score
}

// selectTier applies the progressive relaxation and returns the chosen
// candidates, best first, with the tier that produced them.
func selectTier(candidates []candidate, trivialRatio float64) ([]candidate, string) {
	ratio := decimal.NewFromFloat(trivialRatio)

	var strict, relevant []candidate
	for _, c := range candidates {
		if c.score == 0 {
			continue
		}
		relevant = append(relevant, c)
		if c.readiness.LessThan(ratio) {
			strict = append(strict, c)
		}
	}

	switch {
	case len(strict) > 0:
		return ranked(strict), TierStrict
	case len(relevant) > 0:
		return ranked(relevant), TierRelevant
	default:
		return ranked(candidates), TierAny
	}
}

// ranked orders candidates by relevance, then by how much work remains,
// then by mission ID for stability.
func ranked(cs []candidate) []candidate {
	out := append([]candidate(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if !out[i].readiness.Equal(out[j].readiness) {
			return out[i].readiness.LessThan(out[j].readiness)
		}
		return out[i].mission.ID < out[j].mission.ID
	})
	return out
}
