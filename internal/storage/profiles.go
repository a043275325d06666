package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
)

const profileColumns = `
	user_id, level, xp, target_tps, target_rdr, target_ili,
	cache_tps, cache_rdr, cache_ili, cache_income, cache_expense, cache_debt,
	cache_updated_at, created_at, updated_at`

// GetOrCreateProfile returns the user's profile, creating a level 1 profile
// with default targets on first use.
func (s *queries) GetOrCreateProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return nil, err
	}
	return s.getProfile(ctx, userID)
}

// LockProfile marks the profile row as written by the current transaction
// and returns its state. On a transaction opened with BEGIN IMMEDIATE the
// write lock is already held, so the returned state cannot change until
// commit.
func (s *queries) LockProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return nil, err
	}

	if _, err := s.q.ExecContext(ctx, `UPDATE profiles SET locked_at = ? WHERE user_id = ?`, utcNow(), userID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, lockTimeout(err)
		}
		return nil, mapLockError(fmt.Errorf("failed to lock profile %d: %w", userID, err))
	}
	return s.getProfile(ctx, userID)
}

// SaveIndicatorCache stores a computed snapshot in a single statement.
func (s *queries) SaveIndicatorCache(ctx context.Context, userID int64, snapshot model.IndicatorSnapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return err
	}

	sum := snapshot.Summary
	_, err := s.q.ExecContext(ctx, `
		UPDATE profiles
		SET cache_tps = ?, cache_rdr = ?, cache_ili = ?,
		    cache_income = ?, cache_expense = ?, cache_debt = ?,
		    cache_updated_at = ?, updated_at = ?
		WHERE user_id = ?`,
		sum.TPS.String(), sum.RDR.String(), sum.ILI.String(),
		sum.TotalIncome.String(), sum.TotalExpense.String(), sum.TotalDebt.String(),
		snapshot.ComputedAt.UTC(), utcNow(), userID)
	if err != nil {
		return mapLockError(fmt.Errorf("failed to save indicator cache: %w", err))
	}
	return nil
}

// InvalidateIndicatorCache marks the user's cached snapshot as stale.
func (s *queries) InvalidateIndicatorCache(ctx context.Context, userID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `UPDATE profiles SET cache_updated_at = NULL WHERE user_id = ?`, userID)
	if err != nil {
		return mapLockError(fmt.Errorf("failed to invalidate indicator cache: %w", err))
	}
	return nil
}

// UpdateProfileLevel writes the user's level and XP.
func (s *queries) UpdateProfileLevel(ctx context.Context, userID int64, level, xp int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if level < 1 || xp < 0 {
		return fmt.Errorf("%w: level %d xp %d", ErrNilParameter, level, xp)
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE profiles SET level = ?, xp = ?, updated_at = ? WHERE user_id = ?`,
		level, xp, utcNow(), userID)
	if err != nil {
		return mapLockError(fmt.Errorf("failed to update profile level: %w", err))
	}
	return expectOneRow(result, fmt.Sprintf("profile %d", userID))
}

// UpdateProfileTargets changes the user's indicator targets.
func (s *queries) UpdateProfileTargets(ctx context.Context, userID int64, tps, rdr, ili decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := s.ensureProfile(ctx, userID); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx, `
		UPDATE profiles SET target_tps = ?, target_rdr = ?, target_ili = ?, updated_at = ?
		WHERE user_id = ?`,
		tps.String(), rdr.String(), ili.String(), utcNow(), userID)
	if err != nil {
		return mapLockError(fmt.Errorf("failed to update profile targets: %w", err))
	}
	return nil
}

func (s *queries) ensureProfile(ctx context.Context, userID int64) error {
	if userID == 0 {
		return fmt.Errorf("%w: user ID", ErrNilParameter)
	}
	p := model.NewProfile(userID)
	ts := utcNow()
	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO profiles (user_id, level, xp, target_tps, target_rdr, target_ili, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Level, p.XP, p.TargetTPS.String(), p.TargetRDR.String(), p.TargetILI.String(), ts, ts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return lockTimeout(err)
		}
		return mapLockError(fmt.Errorf("failed to create profile: %w", err))
	}
	return nil
}

func (s *queries) getProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	var (
		p                                    model.Profile
		targetTPS, targetRDR, targetILI      decimal.Decimal
		cacheTPS, cacheRDR, cacheILI         decimal.NullDecimal
		cacheIncome, cacheExpense, cacheDebt decimal.NullDecimal
		cacheUpdatedAt                       sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID).Scan(
		&p.UserID, &p.Level, &p.XP, &targetTPS, &targetRDR, &targetILI,
		&cacheTPS, &cacheRDR, &cacheILI, &cacheIncome, &cacheExpense, &cacheDebt,
		&cacheUpdatedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %d: %w", userID, common.ErrNotFound)
	}
	if err != nil {
		return nil, mapLockError(fmt.Errorf("failed to get profile: %w", err))
	}

	p.TargetTPS, p.TargetRDR, p.TargetILI = targetTPS, targetRDR, targetILI
	if cacheUpdatedAt.Valid {
		p.Cache = &model.IndicatorSnapshot{
			ComputedAt: cacheUpdatedAt.Time.UTC(),
			Summary: model.FinancialSummary{
				TPS:          cacheTPS.Decimal,
				RDR:          cacheRDR.Decimal,
				ILI:          cacheILI.Decimal,
				TotalIncome:  cacheIncome.Decimal,
				TotalExpense: cacheExpense.Decimal,
				TotalDebt:    cacheDebt.Decimal,
			},
		}
	}
	return &p, nil
}
