package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default indicator targets for a freshly created profile.
var (
	DefaultTargetTPS = decimal.NewFromInt(15)
	DefaultTargetRDR = decimal.NewFromInt(35)
	DefaultTargetILI = decimal.NewFromInt(6)
)

// Profile is the per-user financial profile: gamification state,
// indicator targets and the cached indicator snapshot.
type Profile struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Cache     *IndicatorSnapshot
	TargetTPS decimal.Decimal
	TargetRDR decimal.Decimal
	TargetILI decimal.Decimal
	UserID    int64
	Level     int
	XP        int
}

// NewProfile returns a level 1 profile with default targets.
func NewProfile(userID int64) *Profile {
	return &Profile{
		UserID:    userID,
		Level:     1,
		TargetTPS: DefaultTargetTPS,
		TargetRDR: DefaultTargetRDR,
		TargetILI: DefaultTargetILI,
	}
}

// IndicatorSnapshot is the cached result of an indicator computation.
type IndicatorSnapshot struct {
	ComputedAt time.Time
	Summary    FinancialSummary
}

// IsFresh reports whether the snapshot is younger than window at now.
func (s *IndicatorSnapshot) IsFresh(now time.Time, window time.Duration) bool {
	if s == nil || s.ComputedAt.IsZero() {
		return false
	}
	return now.Sub(s.ComputedAt) < window
}
