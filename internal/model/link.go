package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LinkType describes why part of one transaction was allocated to another.
type LinkType string

const (
	// LinkDebtPayment marks income that services a debt.
	LinkDebtPayment LinkType = "debt_payment"
	// LinkTransfer marks a movement between the user's own accounts.
	LinkTransfer LinkType = "transfer"
	// LinkSavingsAllocation marks income set aside for savings.
	LinkSavingsAllocation LinkType = "savings_allocation"
)

// IsValid reports whether l is a known link type.
func (l LinkType) IsValid() bool {
	switch l {
	case LinkDebtPayment, LinkTransfer, LinkSavingsAllocation:
		return true
	}
	return false
}

// TransactionLink records that Amount of the source transaction was
// allocated to the target transaction. Links are never mutated, only deleted.
type TransactionLink struct {
	CreatedAt time.Time
	ID        string
	SourceID  string
	TargetID  string
	Type      LinkType
	Amount    decimal.Decimal
	UserID    int64
}

// LinkBalance summarizes how much of a transaction is already linked.
type LinkBalance struct {
	Amount   decimal.Decimal
	Outgoing decimal.Decimal // sum of links where the transaction is the source
	Incoming decimal.Decimal // sum of links where the transaction is the target
}

// Available is the unallocated remainder when used as a link source.
func (b LinkBalance) Available() decimal.Decimal {
	return b.Amount.Sub(b.Outgoing)
}

// Outstanding is the remainder still open when used as a link target.
func (b LinkBalance) Outstanding() decimal.Decimal {
	return b.Amount.Sub(b.Incoming)
}
