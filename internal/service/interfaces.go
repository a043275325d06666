// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/model"
)

// LedgerFilter narrows an aggregate query over a user's transactions.
// Nil fields do not filter. Date bounds are half-open: Start <= date < End.
// CreatedSince and CreatedBefore bound when the transaction was recorded.
// Soft-deleted transactions never match.
type LedgerFilter struct {
	Type          *model.TransactionType
	Start         *time.Time
	End           *time.Time
	CreatedSince  *time.Time
	CreatedBefore *time.Time
	CategoryID    *int64
	Groups        []model.CategoryGroup
	ExcludeGroups []model.CategoryGroup
	PaidOnly      bool
}

// LinkFilter narrows an aggregate query over a user's transaction links.
// Date bounds apply to the source transaction's date.
type LinkFilter struct {
	Type  *model.LinkType
	Start *time.Time
	End   *time.Time
}

// TransactionFilter defines listing options for transaction queries.
type TransactionFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	Limit          int
	Offset         int
	IncludeDeleted bool
}

// Ledger is the read-only aggregate interface over a user's transactions.
// Absent matches yield zero, never an error.
type Ledger interface {
	SumTransactions(ctx context.Context, userID int64, filter LedgerFilter) (decimal.Decimal, error)
	CountTransactions(ctx context.Context, userID int64, filter LedgerFilter) (int, error)
	SumLinks(ctx context.Context, userID int64, filter LinkFilter) (decimal.Decimal, error)
	GetGoal(ctx context.Context, id int64) (*model.Goal, error)
	SumGoalContributions(ctx context.Context, goalID int64, since time.Time) (decimal.Decimal, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Ledger

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *model.Transaction) error
	SoftDeleteTransaction(ctx context.Context, id string, at time.Time) error
	ListTransactions(ctx context.Context, userID int64, filter TransactionFilter) ([]model.Transaction, error)
	TransactionHashExists(ctx context.Context, userID int64, hash string) (bool, error)

	// Link operations
	CreateLink(ctx context.Context, link *model.TransactionLink) error
	GetLink(ctx context.Context, id string) (*model.TransactionLink, error)
	DeleteLink(ctx context.Context, id string) error
	DeleteLinksForTransaction(ctx context.Context, txnID string) (int, error)
	GetLinkBalance(ctx context.Context, txnID string) (*model.LinkBalance, error)
	ListLinks(ctx context.Context, userID int64) ([]model.TransactionLink, error)

	// Category operations
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	GetCategories(ctx context.Context, userID int64) ([]model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error

	// Profile operations
	GetOrCreateProfile(ctx context.Context, userID int64) (*model.Profile, error)
	LockProfile(ctx context.Context, userID int64) (*model.Profile, error)
	SaveIndicatorCache(ctx context.Context, userID int64, snapshot model.IndicatorSnapshot) error
	InvalidateIndicatorCache(ctx context.Context, userID int64) error
	UpdateProfileLevel(ctx context.Context, userID int64, level, xp int) error
	UpdateProfileTargets(ctx context.Context, userID int64, tps, rdr, ili decimal.Decimal) error

	// Mission operations
	CreateMission(ctx context.Context, mission *model.Mission) error
	GetMission(ctx context.Context, id int64) (*model.Mission, error)
	ListActiveMissions(ctx context.Context) ([]model.Mission, error)
	DeactivateMission(ctx context.Context, id int64) error

	// Mission progress operations
	CreateProgress(ctx context.Context, progress *model.MissionProgress) error
	GetProgress(ctx context.Context, id int64) (*model.MissionProgress, error)
	GetProgressByMission(ctx context.Context, userID, missionID int64) (*model.MissionProgress, error)
	ListProgress(ctx context.Context, userID int64, statuses ...model.MissionStatus) ([]model.MissionProgress, error)
	UpdateProgress(ctx context.Context, progress *model.MissionProgress, expected model.MissionStatus) error
	AssignedMissionIDs(ctx context.Context, userID int64) (map[int64]bool, error)
	UsersWithOpenProgress(ctx context.Context) ([]int64, error)

	// Award operations
	CreateAward(ctx context.Context, award *model.XPAward) error
	GetAwardByProgress(ctx context.Context, progressID int64) (*model.XPAward, error)
	ListAwards(ctx context.Context, userID int64) ([]model.XPAward, error)

	// Goal operations
	CreateGoal(ctx context.Context, goal *model.Goal) error
	AddGoalContribution(ctx context.Context, contribution *model.GoalContribution) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// MutationHook is notified after a user's ledger changed durably.
type MutationHook interface {
	OnTransactionMutated(ctx context.Context, userID int64) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock returns the wall clock in UTC.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Ptr returns a pointer to v. It keeps filter literals short.
func Ptr[T any](v T) *T {
	return &v
}
