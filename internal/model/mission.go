package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MissionType is the archetype of a mission. It drives assignment relevance.
type MissionType string

// Mission archetypes.
const (
	MissionOnboarding        MissionType = "onboarding"
	MissionTPSImprovement    MissionType = "tps_improvement"
	MissionRDRReduction      MissionType = "rdr_reduction"
	MissionILIBuilding       MissionType = "ili_building"
	MissionCategoryReduction MissionType = "category_reduction"
	MissionCategoryLimit     MissionType = "category_limit"
	MissionGoal              MissionType = "goal"
	MissionConsistency       MissionType = "consistency"
	MissionPaymentDiscipline MissionType = "payment_discipline"
	MissionAdvanced          MissionType = "advanced"
	MissionIncomeGrowth      MissionType = "income_growth"
	MissionExpenseControl    MissionType = "expense_control"
	MissionSavingsGrowth     MissionType = "savings_growth"
)

// ValidationStrategy selects the validator that evaluates a mission.
type ValidationStrategy string

// Validation strategies.
const (
	StrategyOnboardingTransactions ValidationStrategy = "onboarding_transactions"
	StrategyTPSImprovement         ValidationStrategy = "tps_improvement"
	StrategyRDRReduction           ValidationStrategy = "rdr_reduction"
	StrategyILIBuilding            ValidationStrategy = "ili_building"
	StrategyCategoryReduction      ValidationStrategy = "category_reduction"
	StrategyCategoryLimit          ValidationStrategy = "category_limit"
	StrategyGoalProgress           ValidationStrategy = "goal_progress"
	StrategyGoalContribution       ValidationStrategy = "goal_contribution"
	StrategyTransactionConsistency ValidationStrategy = "transaction_consistency"
	StrategyPaymentDiscipline      ValidationStrategy = "payment_discipline"
	StrategyMultiCriteria          ValidationStrategy = "multi_criteria"
	StrategyIncomeChange           ValidationStrategy = "income_change"
	StrategyExpenseChange          ValidationStrategy = "expense_change"
	StrategyDepositChange          ValidationStrategy = "deposit_change"
)

// Mission is a challenge template. Thresholds that do not apply to the
// mission's archetype are left nil or zero.
type Mission struct {
	CreatedAt             time.Time
	TargetTPS             *decimal.Decimal
	TargetRDR             *decimal.Decimal
	MinILI                *decimal.Decimal
	TargetReductionPct    *decimal.Decimal
	SpendingLimit         *decimal.Decimal
	TargetChangePct       *decimal.Decimal
	TargetAmount          *decimal.Decimal
	TargetGoalPct         *decimal.Decimal
	TargetCategoryID      *int64
	GoalID                *int64
	Title                 string
	Description           string
	Type                  MissionType
	Strategy              ValidationStrategy
	ID                    int64
	MinTransactions       int
	MinWeeklyTransactions int
	DurationDays          int
	RewardXP              int
	IsActive              bool
}

// Duration returns the mission length as a time.Duration.
func (m *Mission) Duration() time.Duration {
	return time.Duration(m.DurationDays) * 24 * time.Hour
}

// Deadline returns the instant after which an unfinished mission fails.
func (m *Mission) Deadline(startedAt time.Time) time.Time {
	return startedAt.Add(m.Duration())
}

// Dec is a small helper for building optional thresholds.
func Dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}
