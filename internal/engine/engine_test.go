package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/indicator"
	"github.com/Veraticus/spice-quest/internal/metrics"
	"github.com/Veraticus/spice-quest/internal/mission"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/reward"
	"github.com/Veraticus/spice-quest/internal/testutil"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fixture struct {
	db    *testutil.TestDB
	clock *testutil.Clock
	orch  *Orchestrator
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	clock := testutil.NewClock(testNow)
	collector := metrics.NewCollector("test")

	indicators := indicator.New(db.Storage, clock, collector, indicator.DefaultConfig())
	rewards := reward.New(db.Storage, collector, reward.DefaultConfig())
	orch := New(db.Storage, indicators, mission.NewRegistry(), rewards, clock, collector, config)

	return &fixture{db: db, clock: clock, orch: orch}
}

func autoActivate() Config {
	cfg := DefaultConfig()
	cfg.AutoActivate = true
	return cfg
}

func missionIDs(list []model.MissionProgress) []int64 {
	ids := make([]int64, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.MissionID)
	}
	return ids
}

func TestAssignMissions_NewUserGetsMissions(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	catalog := mission.DefaultCatalog()
	for i := range catalog {
		f.db.AddMission(&catalog[i])
	}

	assigned, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assigned, 3)

	// Multi-criteria addresses both failing indicators; onboarding and the
	// savings-rate mission follow in catalog order.
	assert.Equal(t, []int64{catalog[10].ID, catalog[0].ID, catalog[1].ID}, missionIDs(assigned))

	byMission := make(map[int64]model.MissionProgress)
	for _, p := range assigned {
		byMission[p.MissionID] = p
	}
	onboarding := byMission[catalog[0].ID]
	assert.Equal(t, model.StatusActive, onboarding.Status)
	require.NotNil(t, onboarding.StartedAt)
	assert.True(t, onboarding.StartedAt.Equal(testNow))
	require.NotNil(t, onboarding.Baseline)
	assert.Equal(t, 0, onboarding.Baseline.TransactionCount)

	assert.Equal(t, model.StatusPending, byMission[catalog[1].ID].Status)
	assert.Nil(t, byMission[catalog[1].ID].StartedAt)

	// No free slots left.
	again, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, again)

	open, err := f.orch.ListProgress(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, open, 3)
}

func TestAssignMissions_SkipsTrivialMissions(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	// TPS 12 misses the default target of 15.
	f.db.AddTransaction(1, model.TransactionIncome, "1000", testNow.Add(-day), "Salary")
	f.db.AddTransaction(1, model.TransactionExpense, "880", testNow.Add(-day), "Groceries")

	easy := f.db.AddMission(&model.Mission{
		Title: "Save a tenth", Type: model.MissionTPSImprovement, Strategy: model.StrategyTPSImprovement,
		TargetTPS: model.Dec(10), DurationDays: 30, RewardXP: 50,
	})
	hard := f.db.AddMission(&model.Mission{
		Title: "Save a fifth", Type: model.MissionTPSImprovement, Strategy: model.StrategyTPSImprovement,
		TargetTPS: model.Dec(20), DurationDays: 30, RewardXP: 150,
	})

	assigned, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{hard.ID}, missionIDs(assigned))
	assert.NotContains(t, missionIDs(assigned), easy.ID)
}

func TestAssignMissions_RelaxesWhenNothingQualifies(t *testing.T) {
	ctx := context.Background()

	t.Run("relevant but trivial", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		f.db.AddTransaction(1, model.TransactionIncome, "1000", testNow.Add(-day), "Salary")
		f.db.AddTransaction(1, model.TransactionExpense, "880", testNow.Add(-day), "Groceries")

		easy := f.db.AddMission(&model.Mission{
			Title: "Save a tenth", Type: model.MissionTPSImprovement, Strategy: model.StrategyTPSImprovement,
			TargetTPS: model.Dec(10), DurationDays: 30, RewardXP: 50,
		})

		assigned, err := f.orch.AssignMissions(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{easy.ID}, missionIDs(assigned))
	})

	t.Run("nothing relevant", func(t *testing.T) {
		f := newFixture(t, DefaultConfig())
		debt := f.db.AddMission(&model.Mission{
			Title: "Lighten the load", Type: model.MissionRDRReduction, Strategy: model.StrategyRDRReduction,
			TargetRDR: model.Dec(30), DurationDays: 30, RewardXP: 50,
		})

		assigned, err := f.orch.AssignMissions(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{debt.ID}, missionIDs(assigned))
	})
}

func TestAssignMissions_IgnoresOtherUsersGoals(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	goal := &model.Goal{UserID: 2, Name: "Car", TargetAmount: decimal.NewFromInt(5000), CurrentAmount: decimal.Zero}
	require.NoError(t, f.db.Storage.CreateGoal(ctx, goal))
	f.db.AddMission(&model.Mission{
		Title: "Fund the car", Type: model.MissionGoal, Strategy: model.StrategyGoalContribution,
		GoalID: &goal.ID, TargetAmount: model.Dec(500), DurationDays: 30, RewardXP: 50,
	})

	assigned, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, assigned)

	assigned, err = f.orch.AssignMissions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
}

func TestStartAndSkipMission(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.db.AddTransaction(1, model.TransactionIncome, "1000", testNow.Add(-day), "Salary")
	f.db.AddTransaction(1, model.TransactionExpense, "900", testNow.Add(-day), "Groceries")
	m := f.db.AddMission(&model.Mission{
		Title: "Save a fifth", Type: model.MissionTPSImprovement, Strategy: model.StrategyTPSImprovement,
		TargetTPS: model.Dec(20), DurationDays: 30, RewardXP: 150,
	})

	_, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)

	started, err := f.orch.StartMission(ctx, 1, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, started.Status)
	require.NotNil(t, started.Baseline)
	assert.Equal(t, "10", started.Baseline.TPS.String())
	assert.Equal(t, 2, started.Baseline.TransactionCount)

	_, err = f.orch.StartMission(ctx, 1, m.ID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	skipped, err := f.orch.SkipMission(ctx, 1, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, skipped.Status)

	for _, op := range []func(context.Context, int64, int64) (*model.MissionProgress, error){
		f.orch.StartMission,
		f.orch.SkipMission,
	} {
		_, err = op(ctx, 1, m.ID)
		name, ok := common.InvariantOf(err)
		require.True(t, ok, "got %v", err)
		assert.Equal(t, common.InvariantBackwardTransition, name)
	}

	awards, err := f.db.Storage.ListAwards(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, awards)
}

func TestEvaluateUser_CompletesAndRewardsOnce(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	m := f.db.AddMission(&model.Mission{
		Title: "First steps", Type: model.MissionOnboarding, Strategy: model.StrategyOnboardingTransactions,
		MinTransactions: 3, DurationDays: 14, RewardXP: 175,
	})
	assigned, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, model.StatusActive, assigned[0].Status)

	f.db.AddTransaction(1, model.TransactionExpense, "10", testNow, "Groceries")
	evaluated, err := f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.InDelta(t, 33.33, evaluated[0].Progress, 0.001)
	assert.Equal(t, model.StatusActive, evaluated[0].Status)

	f.db.AddTransaction(1, model.TransactionExpense, "10", testNow, "Groceries")
	f.db.AddTransaction(1, model.TransactionExpense, "10", testNow, "Groceries")
	evaluated, err = f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, model.StatusCompleted, evaluated[0].Status)
	assert.InDelta(t, 100.0, evaluated[0].Progress, 0)
	require.NotNil(t, evaluated[0].CompletedAt)

	evaluated, err = f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, evaluated)

	refreshed, err := f.orch.RefreshMission(ctx, 1, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, refreshed.Status)

	awards, err := f.db.Storage.ListAwards(ctx, 1)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, 175, awards[0].Points)

	profile, err := f.db.Storage.GetOrCreateProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.Level)
	assert.Equal(t, 25, profile.XP)
}

func TestEvaluateUser_FailsAfterDeadline(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.db.AddTransaction(1, model.TransactionIncome, "1000", testNow.Add(-day), "Salary")
	f.db.AddTransaction(1, model.TransactionExpense, "900", testNow.Add(-day), "Groceries")
	m := f.db.AddMission(&model.Mission{
		Title: "Save half", Type: model.MissionTPSImprovement, Strategy: model.StrategyTPSImprovement,
		TargetTPS: model.Dec(50), DurationDays: 30, RewardXP: 150,
	})
	_, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	_, err = f.orch.StartMission(ctx, 1, m.ID)
	require.NoError(t, err)

	f.clock.Advance(29 * day)
	evaluated, err := f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, model.StatusActive, evaluated[0].Status)

	f.clock.Advance(2 * day)
	evaluated, err = f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, model.StatusFailed, evaluated[0].Status)
	assert.Contains(t, evaluated[0].Message, "Deadline passed")

	awards, err := f.db.Storage.ListAwards(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, awards)
}

func TestEvaluateUser_IgnoresFactsRecordedAfterDeadline(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.db.AddMission(&model.Mission{
		Title: "First steps", Type: model.MissionOnboarding, Strategy: model.StrategyOnboardingTransactions,
		MinTransactions: 3, DurationDays: 14, RewardXP: 175,
	})
	assigned, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, model.StatusActive, assigned[0].Status)

	f.clock.Advance(30 * day)
	for i := 0; i < 3; i++ {
		f.db.AddTransaction(1, model.TransactionExpense, "10", f.clock.Now(), "Groceries")
	}

	evaluated, err := f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, model.StatusFailed, evaluated[0].Status)
	assert.Contains(t, evaluated[0].Message, "Deadline passed")
	assert.Nil(t, evaluated[0].CompletedAt)

	awards, err := f.db.Storage.ListAwards(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, awards)

	profile, err := f.db.Storage.GetOrCreateProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Level)
	assert.Equal(t, 0, profile.XP)
}

func TestEvaluateUser_LateEvaluationCountsFactsRecordedInTime(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.db.AddMission(&model.Mission{
		Title: "First steps", Type: model.MissionOnboarding, Strategy: model.StrategyOnboardingTransactions,
		MinTransactions: 3, DurationDays: 14, RewardXP: 175,
	})
	_, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)

	// Recorded inside the window but never evaluated until well after it.
	for i := 1; i <= 3; i++ {
		f.db.AddTransaction(1, model.TransactionExpense, "10", testNow.Add(time.Duration(i)*day), "Groceries")
	}
	f.clock.Advance(30 * day)

	evaluated, err := f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, model.StatusCompleted, evaluated[0].Status)

	awards, err := f.db.Storage.ListAwards(ctx, 1)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, 175, awards[0].Points)
}

func TestEvaluateUser_CategoryLimit(t *testing.T) {
	t.Run("within limit completes at the deadline", func(t *testing.T) {
		f := newFixture(t, autoActivate())
		ctx := context.Background()
		dining := f.db.Category("Dining Out")
		f.db.AddMission(&model.Mission{
			Title: "Eat in", Type: model.MissionCategoryLimit, Strategy: model.StrategyCategoryLimit,
			TargetCategoryID: &dining, SpendingLimit: model.Dec(500), DurationDays: 30, RewardXP: 120,
		})
		_, err := f.orch.AssignMissions(ctx, 1)
		require.NoError(t, err)

		f.db.AddTransaction(1, model.TransactionExpense, "200", testNow.Add(day), "Dining Out")
		f.clock.Advance(31 * day)

		evaluated, err := f.orch.EvaluateUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, evaluated, 1)
		assert.Equal(t, model.StatusCompleted, evaluated[0].Status)

		awards, err := f.db.Storage.ListAwards(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, awards, 1)
	})

	t.Run("exceeding freezes progress and fails", func(t *testing.T) {
		f := newFixture(t, autoActivate())
		ctx := context.Background()
		dining := f.db.Category("Dining Out")
		f.db.AddMission(&model.Mission{
			Title: "Eat in", Type: model.MissionCategoryLimit, Strategy: model.StrategyCategoryLimit,
			TargetCategoryID: &dining, SpendingLimit: model.Dec(500), DurationDays: 30, RewardXP: 120,
		})
		_, err := f.orch.AssignMissions(ctx, 1)
		require.NoError(t, err)

		f.db.AddTransaction(1, model.TransactionExpense, "600", testNow.Add(2*day), "Dining Out")
		f.clock.Advance(10 * day)

		evaluated, err := f.orch.EvaluateUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, evaluated, 1)
		assert.Equal(t, model.StatusActive, evaluated[0].Status)
		assert.InDelta(t, 0.0, evaluated[0].Progress, 0)
		assert.Equal(t, true, evaluated[0].Metrics[mission.MetricLimitExceeded])

		f.clock.Advance(21 * day)
		evaluated, err = f.orch.EvaluateUser(ctx, 1)
		require.NoError(t, err)
		require.Len(t, evaluated, 1)
		assert.Equal(t, model.StatusFailed, evaluated[0].Status)
		assert.InDelta(t, 0.0, evaluated[0].Progress, 0)

		awards, err := f.db.Storage.ListAwards(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, awards)
	})
}

func TestEvaluateUser_UnknownStrategyFallsBack(t *testing.T) {
	f := newFixture(t, autoActivate())
	ctx := context.Background()

	f.db.AddMission(&model.Mission{
		Title: "Legacy", Type: model.MissionAdvanced, Strategy: "retired_strategy",
		DurationDays: 30, RewardXP: 10,
	})
	_, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)

	evaluated, err := f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	// Only RDR meets the default targets with an empty ledger.
	assert.InDelta(t, 33.33, evaluated[0].Progress, 0.001)
	assert.Equal(t, model.StatusActive, evaluated[0].Status)
}

func TestOnTransactionMutated_SeesFreshIndicators(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	m := f.db.AddMission(&model.Mission{
		Title: "Save a fifth", Type: model.MissionTPSImprovement, Strategy: model.StrategyTPSImprovement,
		TargetTPS: model.Dec(20), DurationDays: 30, RewardXP: 100,
	})
	_, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	started, err := f.orch.StartMission(ctx, 1, m.ID)
	require.NoError(t, err)
	assert.True(t, started.Baseline.TPS.IsZero())

	f.db.AddTransaction(1, model.TransactionIncome, "1000", testNow.Add(-day), "Salary")
	f.db.AddTransaction(1, model.TransactionExpense, "500", testNow.Add(-day), "Groceries")

	// The cached snapshot from activation is still fresh.
	evaluated, err := f.orch.EvaluateUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, evaluated, 1)
	assert.Equal(t, model.StatusActive, evaluated[0].Status)

	require.NoError(t, f.orch.OnTransactionMutated(ctx, 1))

	p, err := f.db.Storage.GetProgressByMission(ctx, 1, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, p.Status)
	assert.Equal(t, "50", p.Metrics["current_tps"])

	profile, err := f.db.Storage.GetOrCreateProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, profile.XP)

	open, err := f.orch.ListProgress(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestConcurrentEvaluationRewardsOnce(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	m := f.db.AddMission(&model.Mission{
		Title: "First step", Type: model.MissionOnboarding, Strategy: model.StrategyOnboardingTransactions,
		MinTransactions: 1, DurationDays: 14, RewardXP: 60,
	})
	_, err := f.orch.AssignMissions(ctx, 1)
	require.NoError(t, err)
	f.db.AddTransaction(1, model.TransactionExpense, "10", testNow, "Groceries")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.orch.EvaluateUser(ctx, 1)
			} else {
				_, err = f.orch.RefreshMission(ctx, 1, m.ID)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	awards, err := f.db.Storage.ListAwards(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, awards, 1)

	profile, err := f.db.Storage.GetOrCreateProfile(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 60, profile.XP)
}

func TestSweepAll(t *testing.T) {
	f := newFixture(t, autoActivate())
	ctx := context.Background()

	f.db.AddMission(&model.Mission{
		Title: "Save half", Type: model.MissionTPSImprovement, Strategy: model.StrategyTPSImprovement,
		TargetTPS: model.Dec(50), DurationDays: 7, RewardXP: 100,
	})
	for _, user := range []int64{1, 2} {
		assigned, err := f.orch.AssignMissions(ctx, user)
		require.NoError(t, err)
		require.Len(t, assigned, 1)
	}

	f.clock.Advance(8 * day)
	stats, err := f.orch.SweepAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepStats{Users: 2, Failed: 2}, stats)

	stats, err = f.orch.SweepAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepStats{}, stats)
}
