// Package reward credits mission XP to user profiles exactly once per
// completed mission and rolls levels over.
package reward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/metrics"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
	"github.com/Veraticus/spice-quest/internal/storage"
)

// Result labels reported to metrics.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultRejected  = "rejected"
	resultError     = "error"
)

// Threshold returns the XP needed to advance from level to level+1.
func Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	return 150 + (level-1)*50
}

// AddXP credits points to a profile at (level, xp) and returns the new
// level and XP, rolling over as many levels as the points cover.
func AddXP(level, xp, points int) (int, int) {
	if level < 1 {
		level = 1
	}
	if points > 0 {
		xp += points
	}
	for xp >= Threshold(level) {
		xp -= Threshold(level)
		level++
	}
	return level, xp
}

// Config holds configuration options for the reward engine.
type Config struct {
	// LockTimeout bounds how long one attempt waits for the profile lock.
	LockTimeout time.Duration
	// MaxAttempts is how often a timed out attempt is retried.
	MaxAttempts int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LockTimeout: 5 * time.Second,
		MaxAttempts: 3,
	}
}

// Engine applies rewards.
type Engine struct {
	store   service.Storage
	metrics *metrics.Collector
	config  Config
}

// New creates a reward engine. Zero config values are replaced by defaults.
func New(store service.Storage, collector *metrics.Collector, config Config) *Engine {
	defaults := DefaultConfig()
	if config.LockTimeout <= 0 {
		config.LockTimeout = defaults.LockTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	return &Engine{store: store, metrics: collector, config: config}
}

// ApplyReward credits the XP of a completed mission progress in its own
// store transaction. The profile lock wait is bounded by LockTimeout; a
// timeout rolls the attempt back and retries the whole unit.
//
// A progress row that already has an award yields ErrAlreadyRewarded and
// leaves the profile untouched.
func (e *Engine) ApplyReward(ctx context.Context, progressID int64) (*model.XPAward, error) {
	var award *model.XPAward

	err := common.WithRetry(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, e.config.LockTimeout)
		defer cancel()

		return storage.WithTx(attemptCtx, e.store, func(tx service.Transaction) error {
			a, err := e.apply(attemptCtx, tx, progressID)
			if err != nil {
				return err
			}
			award = a
			return nil
		})
	}, service.RetryOptions{
		MaxAttempts:  e.config.MaxAttempts,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	})

	e.record(award, err)
	if err != nil {
		return nil, err
	}
	return award, nil
}

// ApplyRewardTx credits the XP inside an already open store transaction,
// which must hold the user's profile lock or be able to take it. The caller
// commits or rolls back.
func (e *Engine) ApplyRewardTx(ctx context.Context, tx service.Storage, progressID int64) (*model.XPAward, error) {
	award, err := e.apply(ctx, tx, progressID)
	e.record(award, err)
	return award, err
}

func (e *Engine) apply(ctx context.Context, tx service.Storage, progressID int64) (*model.XPAward, error) {
	progress, err := tx.GetProgress(ctx, progressID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress %d: %w", progressID, err)
	}

	profile, err := tx.LockProfile(ctx, progress.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile %d: %w", progress.UserID, err)
	}

	if progress.Status != model.StatusCompleted {
		return nil, fmt.Errorf("%w: progress %d is %s", common.ErrNotRewardable, progressID, progress.Status)
	}

	if _, err := tx.GetAwardByProgress(ctx, progressID); err == nil {
		return nil, fmt.Errorf("%w: progress %d", common.ErrAlreadyRewarded, progressID)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing award: %w", err)
	}

	mission := progress.Mission
	if mission == nil {
		if mission, err = tx.GetMission(ctx, progress.MissionID); err != nil {
			return nil, fmt.Errorf("failed to load mission %d: %w", progress.MissionID, err)
		}
	}

	points := mission.RewardXP
	level, xp := AddXP(profile.Level, profile.XP, points)

	if err := tx.UpdateProfileLevel(ctx, profile.UserID, level, xp); err != nil {
		return nil, fmt.Errorf("failed to update profile level: %w", err)
	}

	award := &model.XPAward{
		ID:          uuid.NewString(),
		UserID:      profile.UserID,
		ProgressID:  progress.ID,
		MissionID:   progress.MissionID,
		Points:      points,
		LevelBefore: profile.Level,
		XPBefore:    profile.XP,
		LevelAfter:  level,
		XPAfter:     xp,
	}
	if err := tx.CreateAward(ctx, award); err != nil {
		if errors.Is(err, common.ErrDuplicateEntry) {
			return nil, fmt.Errorf("%w: progress %d", common.ErrAlreadyRewarded, progressID)
		}
		return nil, fmt.Errorf("failed to record award: %w", err)
	}

	slog.Info("Applied mission reward",
		"user_id", profile.UserID,
		"progress_id", progress.ID,
		"mission_id", progress.MissionID,
		"points", points,
		"level", level,
		"xp", xp)

	return award, nil
}

func (e *Engine) record(award *model.XPAward, err error) {
	switch {
	case err == nil && award != nil:
		e.metrics.Rewarded(resultApplied, award.Points)
	case errors.Is(err, common.ErrAlreadyRewarded):
		e.metrics.Rewarded(resultDuplicate, 0)
	case errors.Is(err, common.ErrNotRewardable):
		e.metrics.Rewarded(resultRejected, 0)
	case err != nil:
		e.metrics.Rewarded(resultError, 0)
	}
}
