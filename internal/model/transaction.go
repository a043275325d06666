// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType indicates which way money moved.
type TransactionType string

const (
	// TransactionIncome is money flowing in.
	TransactionIncome TransactionType = "INCOME"
	// TransactionExpense is money flowing out.
	TransactionExpense TransactionType = "EXPENSE"
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Recurrence describes how often a transaction repeats.
type Recurrence struct {
	Unit     string // day, week, month or year
	Interval int
}

// Transaction represents a single financial fact in a user's ledger.
// Amount is always positive; the sign is implied by Type.
type Transaction struct {
	Date        time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
	CategoryID  *int64
	Recurrence  *Recurrence
	ID          string
	Description string
	Hash        string
	Type        TransactionType
	Amount      decimal.Decimal
	UserID      int64
	IsPaid      bool
}

// IsDeleted reports whether the transaction has been soft-deleted.
func (t *Transaction) IsDeleted() bool {
	return t.DeletedAt != nil
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%d:%s:%s:%s:%s",
		t.UserID,
		t.Date.Format("2006-01-02"),
		t.Type,
		t.Amount.StringFixed(2),
		t.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
