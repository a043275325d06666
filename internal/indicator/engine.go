// Package indicator computes a user's financial health indicators (TPS, RDR
// and ILI) from ledger aggregates and owns the profile snapshot cache.
package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/metrics"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

var hundred = decimal.NewFromInt(100)

// Config holds configuration options for the indicator engine.
type Config struct {
	// Freshness is how long a cached snapshot is returned verbatim.
	Freshness time.Duration
	// WindowDays bounds income, expense and debt totals to the trailing
	// window. Zero uses the full history.
	WindowDays int
	// EssentialDays is the trailing period averaged into a monthly
	// essential expense figure.
	EssentialDays int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Freshness:     5 * time.Minute,
		WindowDays:    0,
		EssentialDays: 90,
	}
}

// Engine computes and caches indicator summaries.
type Engine struct {
	store   service.Storage
	clock   service.Clock
	metrics *metrics.Collector
	config  Config
}

// New creates an indicator engine. A nil clock uses the system clock and a
// nil collector disables metrics.
func New(store service.Storage, clock service.Clock, collector *metrics.Collector, config Config) *Engine {
	if clock == nil {
		clock = service.SystemClock
	}
	defaults := DefaultConfig()
	if config.Freshness <= 0 {
		config.Freshness = defaults.Freshness
	}
	if config.EssentialDays <= 0 {
		config.EssentialDays = defaults.EssentialDays
	}
	return &Engine{
		store:   store,
		clock:   clock,
		metrics: collector,
		config:  config,
	}
}

// WithStore returns a copy of the engine bound to store, typically an open
// transaction, so reads and cache writes join that transaction.
func (e *Engine) WithStore(store service.Storage) *Engine {
	bound := *e
	bound.store = store
	return &bound
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.config
}

// GetSummary returns the user's indicators. A fresh cached snapshot is
// returned as stored; otherwise the indicators are recomputed from the
// ledger and written back to the profile.
func (e *Engine) GetSummary(ctx context.Context, userID int64) (model.FinancialSummary, error) {
	profile, err := e.store.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return model.FinancialSummary{}, fmt.Errorf("failed to load profile: %w", err)
	}

	now := e.clock.Now()
	if profile.Cache.IsFresh(now, e.config.Freshness) {
		e.metrics.CacheHit()
		slog.Debug("Indicator cache hit", "user_id", userID, "computed_at", profile.Cache.ComputedAt)
		return profile.Cache.Summary, nil
	}

	e.metrics.CacheMiss()
	start := time.Now()
	summary, err := e.Compute(ctx, userID)
	if err != nil {
		return model.FinancialSummary{}, err
	}
	e.metrics.ObserveRecompute(time.Since(start))

	snapshot := model.IndicatorSnapshot{ComputedAt: now, Summary: summary}
	if err := e.store.SaveIndicatorCache(ctx, userID, snapshot); err != nil {
		return model.FinancialSummary{}, fmt.Errorf("failed to save indicator cache: %w", err)
	}

	slog.Debug("Indicator cache recomputed",
		"user_id", userID,
		"tps", summary.TPS.String(),
		"rdr", summary.RDR.String(),
		"ili", summary.ILI.String())

	return summary, nil
}

// Invalidate clears the user's cached snapshot so the next GetSummary
// recomputes. Callers mutating the ledger invoke it inside the same store
// transaction as the mutation.
func (e *Engine) Invalidate(ctx context.Context, userID int64) error {
	if err := e.store.InvalidateIndicatorCache(ctx, userID); err != nil {
		return fmt.Errorf("failed to invalidate indicator cache: %w", err)
	}
	e.metrics.Invalidated()
	return nil
}

// Compute derives the indicators from the ledger without touching the cache.
func (e *Engine) Compute(ctx context.Context, userID int64) (model.FinancialSummary, error) {
	totals, err := e.totals(ctx, userID)
	if err != nil {
		return model.FinancialSummary{}, err
	}
	return totals.summary(), nil
}

// ledgerTotals are the raw aggregates the indicators are derived from.
type ledgerTotals struct {
	income           decimal.Decimal
	expense          decimal.Decimal
	debtPayments     decimal.Decimal
	reserve          decimal.Decimal
	essentialMonthly decimal.Decimal
}

func (e *Engine) totals(ctx context.Context, userID int64) (ledgerTotals, error) {
	var t ledgerTotals
	now := e.clock.Now()

	var windowStart *time.Time
	if e.config.WindowDays > 0 {
		windowStart = service.Ptr(now.AddDate(0, 0, -e.config.WindowDays))
	}

	var err error
	t.income, err = e.store.SumTransactions(ctx, userID, service.LedgerFilter{
		Type:  service.Ptr(model.TransactionIncome),
		Start: windowStart,
	})
	if err != nil {
		return t, fmt.Errorf("failed to sum income: %w", err)
	}

	// Debt-group expenses are recognized only through debt-payment links.
	t.expense, err = e.store.SumTransactions(ctx, userID, service.LedgerFilter{
		Type:          service.Ptr(model.TransactionExpense),
		Start:         windowStart,
		ExcludeGroups: []model.CategoryGroup{model.GroupDebt},
	})
	if err != nil {
		return t, fmt.Errorf("failed to sum expenses: %w", err)
	}

	t.debtPayments, err = e.store.SumLinks(ctx, userID, service.LinkFilter{
		Type:  service.Ptr(model.LinkDebtPayment),
		Start: windowStart,
	})
	if err != nil {
		return t, fmt.Errorf("failed to sum debt payments: %w", err)
	}

	deposits, err := e.store.SumTransactions(ctx, userID, service.LedgerFilter{
		Type:   service.Ptr(model.TransactionIncome),
		Groups: model.ReserveGroups,
	})
	if err != nil {
		return t, fmt.Errorf("failed to sum reserve deposits: %w", err)
	}
	withdrawals, err := e.store.SumTransactions(ctx, userID, service.LedgerFilter{
		Type:   service.Ptr(model.TransactionExpense),
		Groups: model.ReserveGroups,
	})
	if err != nil {
		return t, fmt.Errorf("failed to sum reserve withdrawals: %w", err)
	}
	t.reserve = deposits.Sub(withdrawals)

	essential, err := e.store.SumTransactions(ctx, userID, service.LedgerFilter{
		Type:   service.Ptr(model.TransactionExpense),
		Start:  service.Ptr(now.AddDate(0, 0, -e.config.EssentialDays)),
		Groups: []model.CategoryGroup{model.GroupEssentialExpense},
	})
	if err != nil {
		return t, fmt.Errorf("failed to sum essential expenses: %w", err)
	}
	months := decimal.NewFromInt(int64(e.config.EssentialDays)).Div(decimal.NewFromInt(30))
	t.essentialMonthly = SafeDiv(essential, months)

	return t, nil
}

func (t ledgerTotals) summary() model.FinancialSummary {
	return model.FinancialSummary{
		TPS:          Percent(t.income.Sub(t.expense).Sub(t.debtPayments), t.income).Round(2),
		RDR:          Percent(t.debtPayments, t.income).Round(2),
		ILI:          SafeDiv(t.reserve, t.essentialMonthly).Round(1),
		TotalIncome:  t.income.Round(2),
		TotalExpense: t.expense.Round(2),
		TotalDebt:    t.debtPayments.Round(2),
	}
}

// SafeDiv returns n/d, or zero when d is zero.
func SafeDiv(n, d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return n.DivRound(d, 8)
}

// Percent returns n/d×100, or zero when d is zero.
func Percent(n, d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	return n.Mul(hundred).DivRound(d, 8)
}
