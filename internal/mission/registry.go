package mission

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/Veraticus/spice-quest/internal/model"
)

// Factory builds a validator bound to deps.
type Factory func(deps Deps) Validator

// FallbackStrategy is used for unknown strategy tags.
const FallbackStrategy = model.StrategyMultiCriteria

// Registry maps validation strategy tags to validator factories.
type Registry struct {
	factories map[model.ValidationStrategy]Factory
	mu        sync.RWMutex
}

// NewRegistry returns a registry with every built-in strategy registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[model.ValidationStrategy]Factory)}

	r.Register(model.StrategyOnboardingTransactions, NewOnboardingValidator)
	r.Register(model.StrategyTPSImprovement, NewTPSValidator)
	r.Register(model.StrategyRDRReduction, NewRDRValidator)
	r.Register(model.StrategyILIBuilding, NewILIValidator)
	r.Register(model.StrategyCategoryReduction, NewCategoryReductionValidator)
	r.Register(model.StrategyCategoryLimit, NewCategoryLimitValidator)
	r.Register(model.StrategyGoalProgress, NewGoalProgressValidator)
	r.Register(model.StrategyGoalContribution, NewGoalContributionValidator)
	r.Register(model.StrategyTransactionConsistency, NewConsistencyValidator)
	r.Register(model.StrategyPaymentDiscipline, NewPaymentDisciplineValidator)
	r.Register(model.StrategyMultiCriteria, NewMultiCriteriaValidator)
	r.Register(model.StrategyIncomeChange, NewIncomeChangeValidator)
	r.Register(model.StrategyExpenseChange, NewExpenseChangeValidator)
	r.Register(model.StrategyDepositChange, NewDepositChangeValidator)

	return r
}

// Register adds or replaces the factory for strategy.
func (r *Registry) Register(strategy model.ValidationStrategy, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strategy] = factory
}

// Has reports whether strategy has a registered validator.
func (r *Registry) Has(strategy model.ValidationStrategy) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strategy]
	return ok
}

// Validator returns the validator for strategy. Unknown strategies get the
// multi-criteria validator and a warning instead of an error.
func (r *Registry) Validator(strategy model.ValidationStrategy, deps Deps) Validator {
	r.mu.RLock()
	factory, ok := r.factories[strategy]
	if !ok {
		factory = r.factories[FallbackStrategy]
	}
	r.mu.RUnlock()

	if !ok {
		slog.Warn("Unknown validation strategy, using multi-criteria",
			"strategy", strategy,
			"fallback", FallbackStrategy)
	}
	return factory(deps)
}

// Strategies lists the registered strategy tags in sorted order.
func (r *Registry) Strategies() []model.ValidationStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ValidationStrategy, 0, len(r.factories))
	for s := range r.factories {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
