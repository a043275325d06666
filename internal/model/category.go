package model

import "time"

// CategoryType indicates whether a category is for income or expense.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "INCOME"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "EXPENSE"
)

// CategoryGroup is the semantic bucket that decides which indicator a
// transaction contributes to.
type CategoryGroup string

// Category groups.
const (
	GroupEssentialExpense CategoryGroup = "essential_expense"
	GroupLifestyleExpense CategoryGroup = "lifestyle_expense"
	GroupSavings          CategoryGroup = "savings"
	GroupInvestment       CategoryGroup = "investment"
	GroupDebt             CategoryGroup = "debt"
	GroupIncome           CategoryGroup = "income"
	GroupOther            CategoryGroup = "other"
)

// ReserveGroups are the groups that make up the liquid reserve bucket.
var ReserveGroups = []CategoryGroup{GroupSavings, GroupInvestment}

// IsValid reports whether g is a known group.
func (g CategoryGroup) IsValid() bool {
	switch g {
	case GroupEssentialExpense, GroupLifestyleExpense, GroupSavings,
		GroupInvestment, GroupDebt, GroupIncome, GroupOther:
		return true
	}
	return false
}

// Category classifies transactions. A nil UserID marks a global category.
type Category struct {
	CreatedAt time.Time
	UserID    *int64
	Name      string
	Type      CategoryType
	Group     CategoryGroup
	ID        int64
	IsActive  bool
}

// IsGlobal reports whether the category is shared by all users.
func (c *Category) IsGlobal() bool {
	return c.UserID == nil
}

// VisibleTo reports whether the category may be used by userID.
func (c *Category) VisibleTo(userID int64) bool {
	return c.UserID == nil || *c.UserID == userID
}
