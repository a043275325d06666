package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal is a savings target that goal missions track.
type Goal struct {
	CreatedAt     time.Time
	Deadline      *time.Time
	Name          string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	ID            int64
	UserID        int64
}

// CompletionPct returns CurrentAmount as a percentage of TargetAmount.
func (g *Goal) CompletionPct() decimal.Decimal {
	if g.TargetAmount.IsZero() {
		return decimal.Zero
	}
	return g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100))
}

// GoalContribution is one deposit towards a goal.
type GoalContribution struct {
	Date   time.Time
	Amount decimal.Decimal
	ID     int64
	GoalID int64
}
