// Package storage provides the data persistence layer for the quest application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-quest/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidLink        = errors.New("invalid transaction link")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidMission     = errors.New("invalid mission")
	ErrInvalidProgress    = errors.New("invalid mission progress")
	ErrInvalidGoal        = errors.New("invalid goal")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction's shape.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == 0 {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if !txn.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, txn.Type)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if !txn.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	return nil
}

// validateLink validates a transaction link's shape.
func validateLink(link *model.TransactionLink) error {
	if link == nil {
		return fmt.Errorf("%w: link", ErrNilParameter)
	}
	if link.ID == "" || link.SourceID == "" || link.TargetID == "" {
		return fmt.Errorf("%w: missing identifier", ErrInvalidLink)
	}
	if !link.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidLink, link.Type)
	}
	if !link.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidLink)
	}
	return nil
}

func validateCategory(cat *model.Category) error {
	if cat == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if strings.TrimSpace(cat.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCategory)
	}
	if cat.Type != model.CategoryTypeIncome && cat.Type != model.CategoryTypeExpense {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidCategory, cat.Type)
	}
	if !cat.Group.IsValid() {
		return fmt.Errorf("%w: unknown group %q", ErrInvalidCategory, cat.Group)
	}
	return nil
}

func validateMission(m *model.Mission) error {
	if m == nil {
		return fmt.Errorf("%w: mission", ErrNilParameter)
	}
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidMission)
	}
	if m.Type == "" || m.Strategy == "" {
		return fmt.Errorf("%w: missing type or strategy", ErrInvalidMission)
	}
	if m.DurationDays < 0 || m.RewardXP < 0 {
		return fmt.Errorf("%w: duration and reward must not be negative", ErrInvalidMission)
	}
	return nil
}

func validateProgress(p *model.MissionProgress) error {
	if p == nil {
		return fmt.Errorf("%w: progress", ErrNilParameter)
	}
	if p.UserID == 0 || p.MissionID == 0 {
		return fmt.Errorf("%w: missing user or mission", ErrInvalidProgress)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProgress, p.Status)
	}
	if p.Progress < 0 || p.Progress > 100 {
		return fmt.Errorf("%w: progress %.2f outside [0,100]", ErrInvalidProgress, p.Progress)
	}
	return nil
}
