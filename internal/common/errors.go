// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Mutation boundary errors.
	ErrInvariantViolation = errors.New("invariant violation")
	ErrInvalidTransition  = errors.New("invalid mission state transition")

	// Reward errors.
	ErrLockTimeout     = errors.New("timed out acquiring profile lock")
	ErrAlreadyRewarded = errors.New("reward already applied")
	ErrNotRewardable   = errors.New("mission progress is not rewardable")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Invariant names reported by InvariantError.
const (
	InvariantPositiveAmount        = "positive_amount"
	InvariantAmountPrecision       = "amount_precision"
	InvariantOwnerChanged          = "transaction_owner_changed"
	InvariantCategoryMismatch      = "category_type_mismatch"
	InvariantCategoryVisibility    = "category_not_visible"
	InvariantLinkSelf              = "link_source_equals_target"
	InvariantLinkSourceAvailable   = "link_exceeds_source_available"
	InvariantLinkTargetOutstanding = "link_exceeds_target_outstanding"
	InvariantLinkedAmountShrink    = "amount_below_linked_total"
	InvariantDeletedTransaction    = "transaction_deleted"
	InvariantBackwardTransition    = "backward_transition"
)

// InvariantError is a rejection at the mutation boundary naming the
// invariant that would have been broken.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrInvariantViolation, e.Invariant)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvariantViolation, e.Invariant, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// NewInvariantError creates an invariant rejection.
func NewInvariantError(invariant, format string, args ...any) error {
	return &InvariantError{
		Invariant: invariant,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// InvariantOf returns the invariant name carried by err, if any.
func InvariantOf(err error) (string, bool) {
	var invErr *InvariantError
	if errors.As(err, &invErr) {
		return invErr.Invariant, true
	}
	return "", false
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrLockTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
