package classification

import "github.com/Veraticus/spice-quest/internal/model"

// DefaultPatterns returns patterns for the seeded global categories.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Income
		{
			Name:     "Direct Deposit",
			Category: "Salary",
			Type:     model.TransactionIncome,
			Regex:    `\b(DIRECTDEP|DIRECT\s*DEP|DIR\s*DEP|PAYROLL|SALARY|WAGES)\b`,
			Priority: 100,
		},
		{
			Name:     "Interest and Dividends",
			Category: "Other Income",
			Type:     model.TransactionIncome,
			Regex:    `\b(INTEREST|INT\s*EARNED|DIVIDEND)\b`,
			Priority: 95,
		},
		{
			Name:     "Refund",
			Category: "Other Income",
			Type:     model.TransactionIncome,
			Regex:    `\b(REFUND|REIMB|REIMBURSEMENT|CASHBACK|CASH\s*BACK|TAX\s*REF|IRS\s*TREAS)\b`,
			Priority: 90,
		},

		// Debt service
		{
			Name:     "Loan Payment",
			Category: "Loan Payment",
			Type:     model.TransactionExpense,
			Regex:    `\b(LOAN\s*PMT|LOAN\s*PAYMENT|MORTGAGE|STUDENT\s*LOAN|AUTO\s*LOAN)\b`,
			Priority: 90,
		},
		{
			Name:     "Credit Card Payment",
			Category: "Credit Card Payment",
			Type:     model.TransactionExpense,
			Regex:    `\b(CC\s*PAYMENT|CREDIT\s*CARD\s*PAY|CARD\s*PAYMENT|PMT\s*TO\s*CARD)\b`,
			Priority: 85,
		},

		// Essentials
		{
			Name:     "Rent",
			Category: "Housing",
			Type:     model.TransactionExpense,
			Regex:    `\b(RENT|LANDLORD|PROPERTY\s*MGMT|HOA)\b`,
			Priority: 70,
		},
		{
			Name:     "Groceries",
			Category: "Groceries",
			Type:     model.TransactionExpense,
			Regex:    `\b(GROCERY|GROCERIES|SUPERMARKET|WHOLE\s*FOODS|TRADER\s*JOE|SAFEWAY|KROGER|ALDI|COSTCO)\b`,
			Priority: 60,
		},
		{
			Name:     "Utilities",
			Category: "Utilities",
			Type:     model.TransactionExpense,
			Regex:    `\b(ELECTRIC|POWER\s*CO|WATER\s*DEPT|GAS\s*CO|UTILITY|UTILITIES|COMCAST|XFINITY|VERIZON|T-MOBILE)\b`,
			Priority: 60,
		},
		{
			Name:     "Transportation",
			Category: "Transportation",
			Type:     model.TransactionExpense,
			Regex:    `\b(UBER|LYFT|SHELL|CHEVRON|EXXON|FUEL|TRANSIT|PARKING|TOLL)\b`,
			Priority: 55,
		},
		{
			Name:     "Health",
			Category: "Health",
			Type:     model.TransactionExpense,
			Regex:    `\b(PHARMACY|CVS|WALGREENS|DENTAL|MEDICAL|CLINIC|HOSPITAL)\b`,
			Priority: 55,
		},

		// Lifestyle
		{
			Name:     "Dining",
			Category: "Dining Out",
			Type:     model.TransactionExpense,
			Regex:    `\b(RESTAURANT|CAFE|COFFEE|STARBUCKS|DOORDASH|GRUBHUB|UBER\s*EATS|PIZZA)\b`,
			Priority: 58,
		},
		{
			Name:     "Streaming and Events",
			Category: "Entertainment",
			Type:     model.TransactionExpense,
			Regex:    `\b(NETFLIX|SPOTIFY|HULU|DISNEY|CINEMA|THEATER|TICKETMASTER|STEAM)\b`,
			Priority: 50,
		},
		{
			Name:     "Retail",
			Category: "Shopping",
			Type:     model.TransactionExpense,
			Regex:    `\b(AMAZON|AMZN|TARGET|WALMART|BEST\s*BUY|ETSY|EBAY)\b`,
			Priority: 40,
		},
	}
}
