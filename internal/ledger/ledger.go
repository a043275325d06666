// Package ledger is the only write path for a user's transactions, links and
// goal contributions. Every mutation is checked against the ledger
// invariants, clears the user's indicator cache in the same store
// transaction, and notifies the mutation hook once committed.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/indicator"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
	"github.com/Veraticus/spice-quest/internal/storage"
)

// Service applies ledger mutations.
type Service struct {
	store      service.Storage
	indicators *indicator.Engine
	hook       service.MutationHook
	clock      service.Clock
}

// New creates a ledger service. A nil hook skips post-commit notification
// and a nil clock uses the system clock.
func New(store service.Storage, indicators *indicator.Engine, hook service.MutationHook, clock service.Clock) *Service {
	if clock == nil {
		clock = service.SystemClock
	}
	return &Service{
		store:      store,
		indicators: indicators,
		hook:       hook,
		clock:      clock,
	}
}

// mutate runs fn in a store transaction, invalidates the user's indicator
// cache inside it and notifies the hook after commit.
func (s *Service) mutate(ctx context.Context, userID int64, op string, fn func(tx service.Transaction) error) error {
	err := common.WithRetry(ctx, func() error {
		return storage.WithTx(ctx, s.store, func(tx service.Transaction) error {
			if err := fn(tx); err != nil {
				return err
			}
			return s.indicators.WithStore(tx).Invalidate(ctx, userID)
		})
	}, service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	})
	if err != nil {
		return err
	}

	slog.Debug("Ledger mutated", "user_id", userID, "op", op)

	// The mutation is durable at this point; a failing hook only delays
	// mission evaluation until the next sweep.
	if s.hook != nil {
		if err := s.hook.OnTransactionMutated(ctx, userID); err != nil {
			common.LogError(err, "Mutation hook failed", common.Fields{"user_id": userID, "op": op})
		}
	}
	return nil
}

// RecordTransaction stores a new transaction. A missing ID is generated and
// a missing date defaults to today.
func (s *Service) RecordTransaction(ctx context.Context, txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", storage.ErrNilParameter)
	}
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Date.IsZero() {
		txn.Date = s.clock.Now()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = s.clock.Now()
	}
	if err := checkAmount(txn.Amount); err != nil {
		return err
	}

	return s.mutate(ctx, txn.UserID, "record", func(tx service.Transaction) error {
		if err := checkCategory(ctx, tx, txn); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		return nil
	})
}

// UpdateTransaction corrects a live transaction. The owner cannot change and
// the amount cannot drop below what is already linked.
func (s *Service) UpdateTransaction(ctx context.Context, txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", storage.ErrNilParameter)
	}
	if err := checkAmount(txn.Amount); err != nil {
		return err
	}

	return s.mutate(ctx, txn.UserID, "update", func(tx service.Transaction) error {
		existing, err := liveTransaction(ctx, tx, txn.ID)
		if err != nil {
			return err
		}
		if existing.UserID != txn.UserID {
			return common.NewInvariantError(common.InvariantOwnerChanged,
				"transaction %s belongs to user %d", txn.ID, existing.UserID)
		}
		if err := checkCategory(ctx, tx, txn); err != nil {
			return err
		}

		balance, err := tx.GetLinkBalance(ctx, txn.ID)
		if err != nil {
			return fmt.Errorf("failed to load link balance: %w", err)
		}
		linked := decimal.Max(balance.Outgoing, balance.Incoming)
		if txn.Amount.LessThan(linked) {
			return common.NewInvariantError(common.InvariantLinkedAmountShrink,
				"amount %s is below linked total %s", txn.Amount.StringFixed(2), linked.StringFixed(2))
		}

		txn.CreatedAt = existing.CreatedAt
		if err := tx.UpdateTransaction(ctx, txn); err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		return nil
	})
}

// DeleteTransaction soft-deletes a transaction and removes every link that
// touches it.
func (s *Service) DeleteTransaction(ctx context.Context, userID int64, id string) error {
	return s.mutate(ctx, userID, "delete", func(tx service.Transaction) error {
		txn, err := ownedTransaction(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		removed, err := tx.DeleteLinksForTransaction(ctx, txn.ID)
		if err != nil {
			return fmt.Errorf("failed to remove links: %w", err)
		}
		if err := tx.SoftDeleteTransaction(ctx, txn.ID, s.clock.Now()); err != nil {
			return fmt.Errorf("failed to delete transaction: %w", err)
		}
		if removed > 0 {
			slog.Info("Removed links of deleted transaction", "transaction_id", txn.ID, "links", removed)
		}
		return nil
	})
}

// LinkTransactions allocates amount of source to target. The amount may not
// exceed the source's unallocated remainder nor the target's outstanding
// remainder.
func (s *Service) LinkTransactions(ctx context.Context, userID int64, sourceID, targetID string,
	amount decimal.Decimal, typ model.LinkType) (*model.TransactionLink, error) {
	if sourceID == targetID {
		return nil, common.NewInvariantError(common.InvariantLinkSelf, "transaction %s", sourceID)
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q", storage.ErrInvalidLink, typ)
	}

	link := &model.TransactionLink{
		ID:       uuid.NewString(),
		UserID:   userID,
		SourceID: sourceID,
		TargetID: targetID,
		Type:     typ,
		Amount:   amount,
	}
	err := s.mutate(ctx, userID, "link", func(tx service.Transaction) error {
		for _, id := range []string{sourceID, targetID} {
			if _, err := ownedTransaction(ctx, tx, userID, id); err != nil {
				return err
			}
		}

		source, err := tx.GetLinkBalance(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("failed to load source balance: %w", err)
		}
		if amount.GreaterThan(source.Available()) {
			return common.NewInvariantError(common.InvariantLinkSourceAvailable,
				"%s requested, %s available", amount.StringFixed(2), source.Available().StringFixed(2))
		}
		target, err := tx.GetLinkBalance(ctx, targetID)
		if err != nil {
			return fmt.Errorf("failed to load target balance: %w", err)
		}
		if amount.GreaterThan(target.Outstanding()) {
			return common.NewInvariantError(common.InvariantLinkTargetOutstanding,
				"%s requested, %s outstanding", amount.StringFixed(2), target.Outstanding().StringFixed(2))
		}

		if err := tx.CreateLink(ctx, link); err != nil {
			return fmt.Errorf("failed to create link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Unlink deletes a link owned by the user.
func (s *Service) Unlink(ctx context.Context, userID int64, linkID string) error {
	return s.mutate(ctx, userID, "unlink", func(tx service.Transaction) error {
		link, err := tx.GetLink(ctx, linkID)
		if err != nil {
			return err
		}
		if link.UserID != userID {
			return fmt.Errorf("link %s: %w", linkID, common.ErrNotFound)
		}
		return tx.DeleteLink(ctx, linkID)
	})
}

// AddGoalContribution deposits amount towards one of the user's goals.
func (s *Service) AddGoalContribution(ctx context.Context, userID, goalID int64,
	amount decimal.Decimal, date time.Time) (*model.GoalContribution, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.clock.Now()
	}

	contribution := &model.GoalContribution{GoalID: goalID, Amount: amount, Date: date}
	err := s.mutate(ctx, userID, "contribute", func(tx service.Transaction) error {
		goal, err := tx.GetGoal(ctx, goalID)
		if err != nil {
			return err
		}
		if goal.UserID != userID {
			return fmt.Errorf("goal %d: %w", goalID, common.ErrNotFound)
		}
		if err := tx.AddGoalContribution(ctx, contribution); err != nil {
			return fmt.Errorf("failed to add contribution: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contribution, nil
}

// checkAmount enforces positive amounts with at most cent precision.
func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return common.NewInvariantError(common.InvariantPositiveAmount, "got %s", amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return common.NewInvariantError(common.InvariantAmountPrecision, "%s has more than two decimals", amount)
	}
	return nil
}

// checkCategory verifies the transaction's category is visible to its owner
// and matches its direction.
func checkCategory(ctx context.Context, tx service.Storage, txn *model.Transaction) error {
	if txn.CategoryID == nil {
		return nil
	}
	category, err := tx.GetCategory(ctx, *txn.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to load category %d: %w", *txn.CategoryID, err)
	}
	if !category.VisibleTo(txn.UserID) {
		return common.NewInvariantError(common.InvariantCategoryVisibility,
			"category %d is not visible to user %d", category.ID, txn.UserID)
	}
	if string(category.Type) != string(txn.Type) {
		return common.NewInvariantError(common.InvariantCategoryMismatch,
			"%s transaction in %s category %q", txn.Type, category.Type, category.Name)
	}
	return nil
}

func liveTransaction(ctx context.Context, tx service.Storage, id string) (*model.Transaction, error) {
	txn, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.IsDeleted() {
		return nil, common.NewInvariantError(common.InvariantDeletedTransaction, "transaction %s", id)
	}
	return txn, nil
}

// ownedTransaction loads a live transaction and hides other users' rows.
func ownedTransaction(ctx context.Context, tx service.Storage, userID int64, id string) (*model.Transaction, error) {
	txn, err := liveTransaction(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return txn, nil
}
