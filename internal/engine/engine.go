// Package engine implements the mission orchestrator: it assigns missions to
// users, activates them, re-evaluates active missions and drives their state
// machine, handing completed missions to the reward engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/indicator"
	"github.com/Veraticus/spice-quest/internal/metrics"
	"github.com/Veraticus/spice-quest/internal/mission"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/reward"
	"github.com/Veraticus/spice-quest/internal/service"
	"github.com/Veraticus/spice-quest/internal/storage"
)

// Config holds configuration options for the orchestrator.
type Config struct {
	// MaxActive caps the number of non-terminal missions per user.
	MaxActive int
	// TrivialRatio excludes candidates the user already satisfies to at
	// least this fraction.
	TrivialRatio float64
	// AutoActivate starts every assigned mission immediately instead of
	// only onboarding missions.
	AutoActivate bool
	// LockTimeout bounds each attempt to take the user's lock.
	LockTimeout time.Duration
	// MaxAttempts is how often a timed out unit of work is retried.
	MaxAttempts int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxActive:    3,
		TrivialRatio: 0.95,
		LockTimeout:  5 * time.Second,
		MaxAttempts:  3,
	}
}

// Orchestrator owns the mission lifecycle.
type Orchestrator struct {
	store      service.Storage
	indicators *indicator.Engine
	registry   *mission.Registry
	rewards    *reward.Engine
	clock      service.Clock
	metrics    *metrics.Collector
	config     Config
}

var _ service.MutationHook = (*Orchestrator)(nil)

// New creates an orchestrator with the given dependencies. A nil clock uses
// the system clock and a nil collector disables metrics.
func New(store service.Storage, indicators *indicator.Engine, registry *mission.Registry, rewards *reward.Engine,
	clock service.Clock, collector *metrics.Collector, config Config) *Orchestrator {
	if clock == nil {
		clock = service.SystemClock
	}
	defaults := DefaultConfig()
	if config.MaxActive <= 0 {
		config.MaxActive = defaults.MaxActive
	}
	if config.TrivialRatio <= 0 || config.TrivialRatio > 1 {
		config.TrivialRatio = defaults.TrivialRatio
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = defaults.LockTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	return &Orchestrator{
		store:      store,
		indicators: indicators,
		registry:   registry,
		rewards:    rewards,
		clock:      clock,
		metrics:    collector,
		config:     config,
	}
}

// userTx runs fn in a store transaction holding the user's profile lock.
// Lock timeouts roll back and retry the whole unit.
func (o *Orchestrator) userTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx service.Transaction) error) error {
	return common.WithRetry(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.config.LockTimeout)
		defer cancel()

		return storage.WithTx(attemptCtx, o.store, func(tx service.Transaction) error {
			if _, err := tx.LockProfile(attemptCtx, userID); err != nil {
				return fmt.Errorf("failed to lock user %d: %w", userID, err)
			}
			return fn(attemptCtx, tx)
		})
	}, service.RetryOptions{
		MaxAttempts:  o.config.MaxAttempts,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	})
}

// deps binds validator dependencies to an open transaction.
func (o *Orchestrator) deps(tx service.Transaction) mission.Deps {
	return mission.Deps{
		Indicators: o.indicators.WithStore(tx),
		Store:      tx,
		Clock:      o.clock,
	}
}

// StartMission moves a PENDING mission to ACTIVE and captures its baseline.
func (o *Orchestrator) StartMission(ctx context.Context, userID, missionID int64) (*model.MissionProgress, error) {
	var started *model.MissionProgress
	err := o.userTx(ctx, userID, func(ctx context.Context, tx service.Transaction) error {
		p, err := tx.GetProgressByMission(ctx, userID, missionID)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		if err := checkTransition(p, model.StatusActive); err != nil {
			return err
		}
		if err := o.activate(ctx, tx, p); err != nil {
			return err
		}
		if err := tx.UpdateProgress(ctx, p, model.StatusPending); err != nil {
			return fmt.Errorf("failed to start mission: %w", err)
		}
		started = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.metrics.Transitioned(string(model.StatusPending), string(model.StatusActive))
	slog.Info("Mission started", "user_id", userID, "mission_id", missionID, "progress_id", started.ID)
	return started, nil
}

// activate stamps the start time and captures the baseline on p.
func (o *Orchestrator) activate(ctx context.Context, tx service.Transaction, p *model.MissionProgress) error {
	now := o.clock.Now()
	baseline, err := mission.CaptureBaseline(ctx, o.deps(tx), p.Mission, p.UserID, now)
	if err != nil {
		return fmt.Errorf("failed to capture baseline: %w", err)
	}
	p.Status = model.StatusActive
	p.StartedAt = &now
	p.Baseline = baseline
	p.Message = "Mission started"
	return nil
}

// SkipMission abandons a PENDING or ACTIVE mission. It becomes FAILED and
// is never rewarded.
func (o *Orchestrator) SkipMission(ctx context.Context, userID, missionID int64) (*model.MissionProgress, error) {
	var skipped *model.MissionProgress
	var from model.MissionStatus
	err := o.userTx(ctx, userID, func(ctx context.Context, tx service.Transaction) error {
		p, err := tx.GetProgressByMission(ctx, userID, missionID)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		if err := checkTransition(p, model.StatusFailed); err != nil {
			return err
		}
		from = p.Status
		p.Status = model.StatusFailed
		p.Message = "Skipped"
		if err := tx.UpdateProgress(ctx, p, from); err != nil {
			return fmt.Errorf("failed to skip mission: %w", err)
		}
		skipped = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.metrics.Transitioned(string(from), string(model.StatusFailed))
	slog.Info("Mission skipped", "user_id", userID, "mission_id", missionID, "from", from)
	return skipped, nil
}

// checkTransition rejects moves the state machine forbids. Leaving a
// terminal state is an invariant violation; anything else is reported as an
// invalid transition.
func checkTransition(p *model.MissionProgress, next model.MissionStatus) error {
	if p.Status.CanTransitionTo(next) {
		return nil
	}
	if p.Status.IsTerminal() {
		return common.NewInvariantError(common.InvariantBackwardTransition,
			"progress %d is %s and cannot become %s", p.ID, p.Status, next)
	}
	return fmt.Errorf("%w: progress %d is %s, cannot become %s",
		common.ErrInvalidTransition, p.ID, p.Status, next)
}

// EvaluateUser re-evaluates every ACTIVE mission of the user under the
// user's lock, persisting progress and completing or failing missions.
// Rewards for completed missions are applied in the same transaction.
func (o *Orchestrator) EvaluateUser(ctx context.Context, userID int64) ([]model.MissionProgress, error) {
	var (
		evaluated []model.MissionProgress
		moves     []transition
	)
	err := o.userTx(ctx, userID, func(ctx context.Context, tx service.Transaction) error {
		evaluated, moves = nil, nil

		active, err := tx.ListProgress(ctx, userID, model.StatusActive)
		if err != nil {
			return fmt.Errorf("failed to list active missions: %w", err)
		}
		for i := range active {
			p := &active[i]
			move, err := o.evaluate(ctx, tx, p)
			if err != nil {
				return err
			}
			if move != nil {
				moves = append(moves, *move)
			}
			evaluated = append(evaluated, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.report(moves)
	return evaluated, nil
}

// RefreshMission re-evaluates one mission outside the batch cycle. Missions
// that are not ACTIVE are returned unchanged.
func (o *Orchestrator) RefreshMission(ctx context.Context, userID, missionID int64) (*model.MissionProgress, error) {
	var (
		refreshed *model.MissionProgress
		moves     []transition
	)
	err := o.userTx(ctx, userID, func(ctx context.Context, tx service.Transaction) error {
		moves = nil

		p, err := tx.GetProgressByMission(ctx, userID, missionID)
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}
		refreshed = p
		if p.Status != model.StatusActive {
			return nil
		}
		move, err := o.evaluate(ctx, tx, p)
		if err != nil {
			return err
		}
		if move != nil {
			moves = append(moves, *move)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.report(moves)
	return refreshed, nil
}

type transition struct {
	progress *model.MissionProgress
	award    *model.XPAward
	from     model.MissionStatus
}

// evaluate computes p's progress and applies the resulting state change.
// It returns the transition taken, if any.
func (o *Orchestrator) evaluate(ctx context.Context, tx service.Transaction, p *model.MissionProgress) (*transition, error) {
	m := p.Mission
	if m == nil {
		var err error
		if m, err = tx.GetMission(ctx, p.MissionID); err != nil {
			return nil, fmt.Errorf("failed to load mission %d: %w", p.MissionID, err)
		}
		p.Mission = m
	}

	now := o.clock.Now()
	deps := o.deps(tx)
	var (
		deadline time.Time
		overdue  bool
	)
	if m.DurationDays > 0 {
		if d, started := p.Deadline(m); started && now.After(d) {
			// Past the deadline only facts recorded in time can complete it.
			deadline, overdue = d, true
			deps.AsOf = &deadline
		}
	}
	v := o.registry.Validator(m.Strategy, deps)

	result, err := v.CalculateProgress(ctx, m, p)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate progress %d: %w", p.ID, err)
	}

	from := p.Status
	p.Progress = result.Percentage
	p.Metrics = result.Metrics
	p.Message = result.Message

	outcome := "progress"
	if result.IsComplete {
		ok, msg, err := v.ValidateCompletion(ctx, m, p)
		if err != nil {
			return nil, fmt.Errorf("failed to validate completion of progress %d: %w", p.ID, err)
		}
		if ok {
			p.Status = model.StatusCompleted
			p.Progress = 100
			p.CompletedAt = &now
			p.Message = msg
			outcome = "completed"
		} else {
			slog.Warn("Progress reported complete but validation disagreed",
				"progress_id", p.ID,
				"strategy", m.Strategy,
				"reason", msg)
		}
	}

	if p.Status == model.StatusActive && overdue {
		p.Status = model.StatusFailed
		p.Message = fmt.Sprintf("Deadline passed at %s", deadline.Format(time.RFC3339))
		outcome = "failed"
	}

	if err := tx.UpdateProgress(ctx, p, from); err != nil {
		return nil, fmt.Errorf("failed to save progress %d: %w", p.ID, err)
	}
	o.metrics.Evaluated(string(m.Strategy), outcome)

	if p.Status == from {
		return nil, nil
	}

	move := &transition{progress: p, from: from}
	if p.Status == model.StatusCompleted {
		award, err := o.rewards.ApplyRewardTx(ctx, tx, p.ID)
		if err != nil && !errors.Is(err, common.ErrAlreadyRewarded) {
			return nil, fmt.Errorf("failed to reward progress %d: %w", p.ID, err)
		}
		move.award = award
	}
	return move, nil
}

// report emits logs and metrics for committed transitions.
func (o *Orchestrator) report(moves []transition) {
	for _, mv := range moves {
		o.metrics.Transitioned(string(mv.from), string(mv.progress.Status))
		attrs := []any{
			"user_id", mv.progress.UserID,
			"mission_id", mv.progress.MissionID,
			"progress_id", mv.progress.ID,
			"status", mv.progress.Status,
		}
		if mv.award != nil {
			attrs = append(attrs, "xp", mv.award.Points, "level", mv.award.LevelAfter)
		}
		slog.Info("Mission "+statusVerb(mv.progress.Status), attrs...)
	}
}

func statusVerb(s model.MissionStatus) string {
	if s == model.StatusCompleted {
		return "completed"
	}
	return "failed"
}

// OnTransactionMutated reacts to a durable change in the user's ledger:
// the indicator cache is cleared, active missions are re-evaluated and
// free mission slots are refilled, in that order.
func (o *Orchestrator) OnTransactionMutated(ctx context.Context, userID int64) error {
	if err := o.indicators.Invalidate(ctx, userID); err != nil {
		return err
	}
	if _, err := o.EvaluateUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to re-evaluate missions: %w", err)
	}
	if _, err := o.AssignMissions(ctx, userID); err != nil {
		return fmt.Errorf("failed to assign missions: %w", err)
	}
	return nil
}

// ListProgress returns the user's non-terminal missions with their latest
// metrics.
func (o *Orchestrator) ListProgress(ctx context.Context, userID int64) ([]model.MissionProgress, error) {
	list, err := o.store.ListProgress(ctx, userID, model.StatusPending, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return list, nil
}

// SweepStats summarizes one SweepAll run.
type SweepStats struct {
	Users     int
	Completed int
	Failed    int
	Errors    int
}

// SweepAll evaluates every user with non-terminal missions. A failure for
// one user is logged and does not stop the sweep.
func (o *Orchestrator) SweepAll(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	users, err := o.store.UsersWithOpenProgress(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list users: %w", err)
	}

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Users++

		evaluated, err := o.EvaluateUser(ctx, userID)
		if err != nil {
			stats.Errors++
			common.LogError(err, "Mission sweep failed for user", common.Fields{"user_id": userID})
			continue
		}
		for _, p := range evaluated {
			switch p.Status {
			case model.StatusCompleted:
				stats.Completed++
			case model.StatusFailed:
				stats.Failed++
			}
		}
	}

	slog.Info("Mission sweep finished",
		"users", stats.Users,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"errors", stats.Errors)
	return stats, nil
}
