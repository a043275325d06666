package mission

import "github.com/Veraticus/spice-quest/internal/model"

// DefaultCatalog returns the built-in sample missions installed by
// `quest missions seed`. Category and goal missions are left out because
// they reference user data.
func DefaultCatalog() []model.Mission {
	return []model.Mission{
		{
			Title:           "First steps",
			Description:     "Record your first 10 transactions.",
			Type:            model.MissionOnboarding,
			Strategy:        model.StrategyOnboardingTransactions,
			MinTransactions: 10,
			DurationDays:    14,
			RewardXP:        50,
		},
		{
			Title:        "Save a fifth",
			Description:  "Lift your savings rate to 20%.",
			Type:         model.MissionTPSImprovement,
			Strategy:     model.StrategyTPSImprovement,
			TargetTPS:    model.Dec(20),
			DurationDays: 30,
			RewardXP:     150,
		},
		{
			Title:        "Lighten the load",
			Description:  "Bring debt service down to 30% of income.",
			Type:         model.MissionRDRReduction,
			Strategy:     model.StrategyRDRReduction,
			TargetRDR:    model.Dec(30),
			DurationDays: 60,
			RewardXP:     200,
		},
		{
			Title:        "Rainy day fund",
			Description:  "Build reserves covering three months of essentials.",
			Type:         model.MissionILIBuilding,
			Strategy:     model.StrategyILIBuilding,
			MinILI:       model.Dec(3),
			DurationDays: 90,
			RewardXP:     250,
		},
		{
			Title:                 "Steady tracker",
			Description:           "Log at least three transactions every week for four weeks.",
			Type:                  model.MissionConsistency,
			Strategy:              model.StrategyTransactionConsistency,
			MinWeeklyTransactions: 3,
			DurationDays:          28,
			RewardXP:              100,
		},
		{
			Title:           "On time",
			Description:     "Mark 8 bills as paid.",
			Type:            model.MissionPaymentDiscipline,
			Strategy:        model.StrategyPaymentDiscipline,
			MinTransactions: 8,
			DurationDays:    30,
			RewardXP:        80,
		},
		{
			Title:         "Monthly budget",
			Description:   "Keep total spending under 2000 for 30 days.",
			Type:          model.MissionCategoryLimit,
			Strategy:      model.StrategyCategoryLimit,
			SpendingLimit: model.Dec(2000),
			DurationDays:  30,
			RewardXP:      120,
		},
		{
			Title:           "Earn more",
			Description:     "Earn 5% more next month than you did last month.",
			Type:            model.MissionIncomeGrowth,
			Strategy:        model.StrategyIncomeChange,
			TargetChangePct: model.Dec(5),
			DurationDays:    62,
			RewardXP:        150,
		},
		{
			Title:           "Trim the fat",
			Description:     "Spend 10% less next month than you did last month.",
			Type:            model.MissionExpenseControl,
			Strategy:        model.StrategyExpenseChange,
			TargetChangePct: model.Dec(10),
			DurationDays:    62,
			RewardXP:        150,
		},
		{
			Title:           "Pay yourself first",
			Description:     "Deposit 15% more into savings next month than last month.",
			Type:            model.MissionSavingsGrowth,
			Strategy:        model.StrategyDepositChange,
			TargetChangePct: model.Dec(15),
			DurationDays:    62,
			RewardXP:        150,
		},
		{
			Title:        "Balanced books",
			Description:  "Meet your savings, debt and liquidity targets at the same time.",
			Type:         model.MissionAdvanced,
			Strategy:     model.StrategyMultiCriteria,
			DurationDays: 90,
			RewardXP:     400,
		},
	}
}
