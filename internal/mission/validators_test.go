package mission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/testutil"
)

type staticIndicators struct {
	summary model.FinancialSummary
}

func (s staticIndicators) GetSummary(context.Context, int64) (model.FinancialSummary, error) {
	return s.summary, nil
}

var missionStart = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func activeProgress(userID int64, start time.Time, baseline *model.Baseline) *model.MissionProgress {
	return &model.MissionProgress{
		UserID:    userID,
		Status:    model.StatusActive,
		StartedAt: &start,
		CreatedAt: start,
		Baseline:  baseline,
	}
}

func newDeps(db *testutil.TestDB, clock *testutil.Clock, summary model.FinancialSummary) Deps {
	return Deps{
		Indicators: staticIndicators{summary: summary},
		Store:      db.Storage,
		Clock:      clock,
	}
}

func TestTPSValidator_HalfwayToTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := newDeps(db, testutil.NewClock(missionStart), model.FinancialSummary{TPS: d("15")})

	m := &model.Mission{Strategy: model.StrategyTPSImprovement, TargetTPS: model.Dec(20)}
	p := activeProgress(1, missionStart, &model.Baseline{TPS: d("10")})

	v := NewTPSValidator(deps)
	result, err := v.CalculateProgress(context.Background(), m, p)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)
	assert.Equal(t, "15", result.Metrics["current_tps"])

	ok, _, err := v.ValidateCompletion(context.Background(), m, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndicatorValidators_BaselineAlreadyMet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := testutil.NewClock(missionStart)

	tests := []struct {
		name     string
		factory  Factory
		mission  *model.Mission
		baseline *model.Baseline
		summary  model.FinancialSummary
	}{
		{
			name:     "tps",
			factory:  NewTPSValidator,
			mission:  &model.Mission{TargetTPS: model.Dec(20)},
			baseline: &model.Baseline{TPS: d("25")},
			summary:  model.FinancialSummary{TPS: d("-5")},
		},
		{
			name:     "rdr",
			factory:  NewRDRValidator,
			mission:  &model.Mission{TargetRDR: model.Dec(30)},
			baseline: &model.Baseline{RDR: d("12")},
			summary:  model.FinancialSummary{RDR: d("80")},
		},
		{
			name:     "ili",
			factory:  NewILIValidator,
			mission:  &model.Mission{MinILI: model.Dec(3)},
			baseline: &model.Baseline{ILI: d("3")},
			summary:  model.FinancialSummary{ILI: d("0")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.factory(newDeps(db, clock, tt.summary))
			p := activeProgress(1, missionStart, tt.baseline)

			result, err := v.CalculateProgress(context.Background(), tt.mission, p)
			require.NoError(t, err)
			assert.InDelta(t, 100.0, result.Percentage, 0)
			assert.True(t, result.IsComplete)

			ok, _, err := v.ValidateCompletion(context.Background(), tt.mission, p)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestIndicatorValidator_FallsBackToProfileTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := newDeps(db, testutil.NewClock(missionStart), model.FinancialSummary{RDR: d("40")})

	v := NewRDRValidator(deps)
	result, err := v.CalculateProgress(context.Background(), &model.Mission{}, activeProgress(1, missionStart, &model.Baseline{RDR: d("45")}))
	require.NoError(t, err)
	// From 45 towards the default 35: 5 of 10 covered.
	assert.InDelta(t, 50.0, result.Percentage, 0)
	assert.Equal(t, "35", result.Metrics["target_rdr"])
}

func TestOnboardingValidator_CountsTransactionsSinceStart(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	start := time.Now().UTC().Add(-time.Hour)

	// Recorded before the mission started.
	for i := 0; i < 3; i++ {
		txn := &model.Transaction{
			ID:        uuid.NewString(),
			UserID:    1,
			Type:      model.TransactionExpense,
			Amount:    d("10"),
			Date:      start.Add(-48 * time.Hour),
			CreatedAt: start.Add(-24 * time.Hour),
		}
		require.NoError(t, db.Storage.CreateTransaction(ctx, txn))
	}
	for i := 0; i < 12; i++ {
		db.AddTransaction(1, model.TransactionExpense, "5", start, "Groceries")
	}

	m := &model.Mission{Strategy: model.StrategyOnboardingTransactions, MinTransactions: 10}
	p := activeProgress(1, start, nil)
	v := NewOnboardingValidator(newDeps(db, testutil.NewClock(time.Now()), model.FinancialSummary{}))

	result, err := v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Percentage, 0)
	assert.True(t, result.IsComplete)
	assert.Equal(t, 12, result.Metrics["count"])

	ok, _, err := v.ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.True(t, ok)

	m.MinTransactions = 24
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)
}

func TestCategoryLimitValidator_ExceedingFreezesProgress(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart.AddDate(0, 0, 10))
	dining := db.Category("Dining Out")

	m := &model.Mission{
		Strategy:         model.StrategyCategoryLimit,
		TargetCategoryID: &dining,
		SpendingLimit:    model.Dec(500),
		DurationDays:     30,
	}
	p := activeProgress(1, missionStart, &model.Baseline{})
	v := NewCategoryLimitValidator(newDeps(db, clock, model.FinancialSummary{}))

	db.AddTransaction(1, model.TransactionExpense, "200", missionStart.AddDate(0, 0, 2), "Dining Out")
	// Other categories do not count against the cap.
	db.AddTransaction(1, model.TransactionExpense, "900", missionStart.AddDate(0, 0, 2), "Housing")

	result, err := v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 33.33, result.Percentage, 0.001)
	assert.False(t, result.IsComplete)
	assert.Equal(t, false, result.Metrics[MetricLimitExceeded])

	db.AddTransaction(1, model.TransactionExpense, "400", missionStart.AddDate(0, 0, 5), "Dining Out")

	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)
	assert.Equal(t, true, result.Metrics[MetricLimitExceeded])
	p.Metrics = result.Metrics

	clock.Set(missionStart.AddDate(0, 0, 31))
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)

	ok, _, err := v.ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCategoryLimitValidator_CompletesAfterDuration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart.AddDate(0, 0, 30))

	m := &model.Mission{Strategy: model.StrategyCategoryLimit, SpendingLimit: model.Dec(500), DurationDays: 30}
	p := activeProgress(1, missionStart, &model.Baseline{})
	v := NewCategoryLimitValidator(newDeps(db, clock, model.FinancialSummary{}))

	db.AddTransaction(1, model.TransactionExpense, "499.99", missionStart.AddDate(0, 0, 3), "Shopping")
	// Spend after the mission ended is outside its window.
	db.AddTransaction(1, model.TransactionExpense, "100", missionStart.AddDate(0, 0, 30), "Shopping")

	result, err := v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Percentage, 0)
	assert.True(t, result.IsComplete)

	ok, _, err := v.ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCategoryReductionValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart.AddDate(0, 0, 20))
	dining := db.Category("Dining Out")

	db.AddTransaction(1, model.TransactionExpense, "1000", missionStart.AddDate(0, 0, -10), "Dining Out")
	// Older than the reference period.
	db.AddTransaction(1, model.TransactionExpense, "5000", missionStart.AddDate(0, 0, -45), "Dining Out")
	db.AddTransaction(1, model.TransactionExpense, "700", missionStart.AddDate(0, 0, 5), "Dining Out")

	m := &model.Mission{
		Strategy:           model.StrategyCategoryReduction,
		TargetCategoryID:   &dining,
		TargetReductionPct: model.Dec(60),
		DurationDays:       30,
	}
	deps := newDeps(db, clock, model.FinancialSummary{})

	baseline, err := CaptureBaseline(ctx, deps, m, 1, missionStart)
	require.NoError(t, err)
	require.NotNil(t, baseline.CategorySpend)
	assert.Equal(t, "1000.00", baseline.CategorySpend.StringFixed(2))
	assert.Equal(t, 3, baseline.TransactionCount)

	p := activeProgress(1, missionStart, baseline)
	v := NewCategoryReductionValidator(deps)

	result, err := v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)

	// Already 30% down, but only two thirds of the period has passed.
	m.TargetReductionPct = model.Dec(20)
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 66.67, result.Percentage, 0.001)
	assert.False(t, result.IsComplete)

	ok, msg, err := v.ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "not finished")

	clock.Set(missionStart.AddDate(0, 0, 30))
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Percentage, 0)
	assert.True(t, result.IsComplete)
}

func TestCategoryReductionValidator_NoReferenceSpend(t *testing.T) {
	db := testutil.SetupTestDB(t)
	m := &model.Mission{Strategy: model.StrategyCategoryReduction, DurationDays: 30}
	p := activeProgress(1, missionStart, &model.Baseline{CategorySpend: model.Dec(0)})

	v := NewCategoryReductionValidator(newDeps(db, testutil.NewClock(missionStart.AddDate(0, 0, 1)), model.FinancialSummary{}))
	result, err := v.CalculateProgress(context.Background(), m, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)
}

func TestConsistencyValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart.AddDate(0, 0, 22))

	week := func(w, day int) time.Time { return missionStart.AddDate(0, 0, 7*w+day) }
	db.AddTransaction(1, model.TransactionExpense, "1", week(0, 1), "Groceries")
	db.AddTransaction(1, model.TransactionExpense, "1", week(0, 6), "Groceries")
	db.AddTransaction(1, model.TransactionExpense, "1", week(1, 0), "Groceries")
	db.AddTransaction(1, model.TransactionIncome, "1", week(2, 2), "Salary")
	db.AddTransaction(1, model.TransactionExpense, "1", week(2, 3), "Groceries")

	m := &model.Mission{Strategy: model.StrategyTransactionConsistency, MinWeeklyTransactions: 2, DurationDays: 21}
	p := activeProgress(1, missionStart, &model.Baseline{})
	v := NewConsistencyValidator(newDeps(db, clock, model.FinancialSummary{}))

	result, err := v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 66.67, result.Percentage, 0.001)
	assert.False(t, result.IsComplete)
	assert.Equal(t, []int{2, 1, 2}, result.Metrics["weekly_counts"])

	ok, msg, err := v.ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "week 2")

	db.AddTransaction(1, model.TransactionExpense, "1", week(1, 4), "Groceries")
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.True(t, result.IsComplete)
}

func TestPaymentDisciplineValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		db.AddTransaction(1, model.TransactionExpense, "50", missionStart.AddDate(0, 0, i), "Utilities")
	}
	// Paid before the mission started.
	db.AddTransaction(1, model.TransactionExpense, "50", missionStart.AddDate(0, 0, -1), "Utilities")
	unpaid := &model.Transaction{
		ID:     uuid.NewString(),
		UserID: 1,
		Type:   model.TransactionExpense,
		Amount: d("50"),
		Date:   missionStart.AddDate(0, 0, 2),
	}
	require.NoError(t, db.Storage.CreateTransaction(ctx, unpaid))

	m := &model.Mission{Strategy: model.StrategyPaymentDiscipline, MinTransactions: 4}
	v := NewPaymentDisciplineValidator(newDeps(db, testutil.NewClock(missionStart.AddDate(0, 0, 5)), model.FinancialSummary{}))

	result, err := v.CalculateProgress(ctx, m, activeProgress(1, missionStart, nil))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)
}

func TestMultiCriteriaValidator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart)

	summary := model.FinancialSummary{TPS: d("20"), RDR: d("40"), ILI: d("7")}
	v := NewMultiCriteriaValidator(newDeps(db, clock, summary))

	// No thresholds on the mission: profile targets 15 / 35 / 6 apply.
	result, err := v.CalculateProgress(ctx, &model.Mission{}, activeProgress(1, missionStart, nil))
	require.NoError(t, err)
	assert.InDelta(t, 66.67, result.Percentage, 0.001)
	assert.False(t, result.IsComplete)
	assert.Equal(t, 2, result.Metrics["criteria_met"])

	ok, msg, err := v.ValidateCompletion(ctx, &model.Mission{}, activeProgress(1, missionStart, nil))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "RDR")

	// Only the thresholds the mission sets are checked.
	m := &model.Mission{TargetTPS: model.Dec(18), MinILI: model.Dec(5)}
	result, err = v.CalculateProgress(ctx, m, activeProgress(1, missionStart, nil))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.Percentage, 0)
	assert.True(t, result.IsComplete)
}

func TestChangeValidators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	// Started mid-March: February is compared with April once April ends.
	clock := testutil.NewClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)

	db.AddTransaction(1, model.TransactionIncome, "1000", feb, "Salary")
	db.AddTransaction(1, model.TransactionIncome, "1100", apr, "Salary")
	db.AddTransaction(1, model.TransactionExpense, "1000", feb, "Groceries")
	db.AddTransaction(1, model.TransactionExpense, "950", apr, "Groceries")
	db.AddTransaction(1, model.TransactionIncome, "200", feb, "Savings Deposit")
	db.AddTransaction(1, model.TransactionIncome, "150", apr, "Savings Deposit")

	deps := newDeps(db, clock, model.FinancialSummary{})
	p := activeProgress(1, missionStart, &model.Baseline{})

	tests := []struct {
		name         string
		factory      Factory
		category     string
		target       float64
		wantPct      float64
		wantComplete bool
	}{
		{"salary up 10 of 5", NewIncomeChangeValidator, "Salary", 5, 100, true},
		{"salary up 10 of 20", NewIncomeChangeValidator, "Salary", 20, 50, false},
		{"all income up 4.17 of 10", NewIncomeChangeValidator, "", 10, 41.67, false},
		{"expense down 5 of 10", NewExpenseChangeValidator, "", 10, 50, false},
		{"expense down 5 of 5", NewExpenseChangeValidator, "", 5, 100, true},
		{"deposits fell", NewDepositChangeValidator, "", 10, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &model.Mission{TargetChangePct: model.Dec(tt.target)}
			if tt.category != "" {
				id := db.Category(tt.category)
				m.TargetCategoryID = &id
			}
			v := tt.factory(deps)

			result, err := v.CalculateProgress(ctx, m, p)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantPct, result.Percentage, 0.001)
			assert.Equal(t, tt.wantComplete, result.IsComplete)

			ok, _, err := v.ValidateCompletion(ctx, m, p)
			require.NoError(t, err)
			assert.Equal(t, tt.wantComplete, ok)
		})
	}
}

func TestExpenseChangeValidator_WaitsForTargetMonth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart)

	db.AddTransaction(1, model.TransactionExpense, "1000", time.Date(2024, 2, 12, 0, 0, 0, 0, time.UTC), "Groceries")
	db.AddTransaction(1, model.TransactionExpense, "400", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "Groceries")

	m := &model.Mission{Strategy: model.StrategyExpenseChange, TargetChangePct: model.Dec(20), DurationDays: 62}
	p := activeProgress(1, missionStart, &model.Baseline{})
	v := NewExpenseChangeValidator(newDeps(db, clock, model.FinancialSummary{}))

	// A half-finished March looks like a 60% drop but is not the target month.
	result, err := v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, result.Percentage, 0)
	assert.False(t, result.IsComplete)
	assert.Equal(t, "2024-04", result.Metrics["target_month"])
	assert.Equal(t, "0.00", result.Metrics["current_month"])

	db.AddTransaction(1, model.TransactionExpense, "300", time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC), "Groceries")
	clock.Set(time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC))
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, result.IsComplete)
	assert.Equal(t, false, result.Metrics["month_settled"])

	ok, msg, err := v.ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "April 2024")

	db.AddTransaction(1, model.TransactionExpense, "500", time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC), "Groceries")
	clock.Set(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.True(t, result.IsComplete)
	assert.Equal(t, "-20", result.Metrics["change_pct"])
}

func TestTargetMonth(t *testing.T) {
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), TargetMonth(missionStart))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), TargetMonth(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), TargetMonth(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)))
}

func TestConsistencyValidator_WaitsForFullDuration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart.AddDate(0, 0, 1))

	db.AddTransaction(1, model.TransactionExpense, "1", missionStart.Add(time.Hour), "Groceries")

	m := &model.Mission{Strategy: model.StrategyTransactionConsistency, MinWeeklyTransactions: 1, DurationDays: 7}
	p := activeProgress(1, missionStart, &model.Baseline{})
	v := NewConsistencyValidator(newDeps(db, clock, model.FinancialSummary{}))

	result, err := v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metrics["weeks_met"])
	assert.InDelta(t, 14.29, result.Percentage, 0.001)
	assert.False(t, result.IsComplete)

	ok, _, err := v.ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.Set(missionStart.AddDate(0, 0, 7))
	result, err = v.CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.True(t, result.IsComplete)
	assert.InDelta(t, 100.0, result.Percentage, 0)
}

func TestValidators_AsOfIgnoresLaterRecords(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	deadline := missionStart.AddDate(0, 0, 14)

	record := func(date, recorded time.Time, paid bool) {
		txn := &model.Transaction{
			ID: uuid.NewString(), UserID: 1, Type: model.TransactionExpense, Amount: d("10"),
			Date: date, CreatedAt: recorded, IsPaid: paid,
		}
		require.NoError(t, db.Storage.CreateTransaction(ctx, txn))
	}
	record(missionStart.AddDate(0, 0, 1), missionStart.AddDate(0, 0, 1), true)
	// Backdated into the mission but entered after the deadline.
	record(missionStart.AddDate(0, 0, 2), deadline.AddDate(0, 0, 3), true)
	record(deadline.AddDate(0, 0, 2), deadline.AddDate(0, 0, 2), true)

	deps := newDeps(db, testutil.NewClock(deadline.AddDate(0, 0, 5)), model.FinancialSummary{})
	deps.AsOf = &deadline
	p := activeProgress(1, missionStart, &model.Baseline{})

	m := &model.Mission{Strategy: model.StrategyOnboardingTransactions, MinTransactions: 2, DurationDays: 14}
	result, err := NewOnboardingValidator(deps).CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metrics["count"])
	assert.False(t, result.IsComplete)

	m = &model.Mission{Strategy: model.StrategyPaymentDiscipline, MinTransactions: 2, DurationDays: 14}
	result, err = NewPaymentDisciplineValidator(deps).CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Metrics["count"])

	// Indicators only describe the present.
	deps.Indicators = staticIndicators{summary: model.FinancialSummary{TPS: d("40")}}
	m = &model.Mission{Strategy: model.StrategyTPSImprovement, TargetTPS: model.Dec(20), DurationDays: 14}
	result, err = NewTPSValidator(deps).CalculateProgress(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, result.IsComplete)
	ok, _, err := NewTPSValidator(deps).ValidateCompletion(ctx, m, p)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGoalValidators(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	clock := testutil.NewClock(missionStart.AddDate(0, 0, 10))

	goal := &model.Goal{UserID: 1, Name: "Bike", TargetAmount: d("1000"), CurrentAmount: d("200")}
	require.NoError(t, db.Storage.CreateGoal(ctx, goal))
	require.NoError(t, db.Storage.AddGoalContribution(ctx, &model.GoalContribution{
		GoalID: goal.ID, Amount: d("100"), Date: missionStart.AddDate(0, 0, -3),
	}))
	require.NoError(t, db.Storage.AddGoalContribution(ctx, &model.GoalContribution{
		GoalID: goal.ID, Amount: d("250"), Date: missionStart.AddDate(0, 0, 2),
	}))
	deps := newDeps(db, clock, model.FinancialSummary{})

	t.Run("contribution", func(t *testing.T) {
		m := &model.Mission{GoalID: &goal.ID, TargetAmount: model.Dec(500)}
		result, err := NewGoalContributionValidator(deps).CalculateProgress(ctx, m, activeProgress(1, missionStart, nil))
		require.NoError(t, err)
		assert.InDelta(t, 50.0, result.Percentage, 0)
		assert.False(t, result.IsComplete)
	})

	t.Run("progress", func(t *testing.T) {
		// 550 of 1000 now, 30% at the start, aiming for 80%.
		m := &model.Mission{Strategy: model.StrategyGoalProgress, GoalID: &goal.ID, TargetGoalPct: model.Dec(80)}
		result, err := NewGoalProgressValidator(deps).CalculateProgress(ctx, m, activeProgress(1, missionStart, &model.Baseline{GoalPct: model.Dec(30)}))
		require.NoError(t, err)
		assert.InDelta(t, 50.0, result.Percentage, 0)
		assert.False(t, result.IsComplete)
	})

	t.Run("no goal attached", func(t *testing.T) {
		result, err := NewGoalProgressValidator(deps).CalculateProgress(ctx, &model.Mission{}, activeProgress(1, missionStart, nil))
		require.NoError(t, err)
		assert.InDelta(t, 0.0, result.Percentage, 0)
		assert.False(t, result.IsComplete)
	})
}

func TestRegistry_UnknownStrategyFallsBack(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.Strategies(), 14)
	assert.True(t, r.Has(model.StrategyDepositChange))
	assert.False(t, r.Has("made_up"))

	v := r.Validator("made_up", Deps{})
	assert.IsType(t, &multiCriteriaValidator{}, v)

	v = r.Validator(model.StrategyCategoryLimit, Deps{})
	assert.IsType(t, &categoryLimitValidator{}, v)
}

func TestDefaultCatalog_UsesRegisteredStrategies(t *testing.T) {
	r := NewRegistry()
	for _, m := range DefaultCatalog() {
		assert.True(t, r.Has(m.Strategy), m.Title)
		assert.Positive(t, m.RewardXP, m.Title)
		assert.Positive(t, m.DurationDays, m.Title)
	}
}
