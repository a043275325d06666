package model

import "github.com/shopspring/decimal"

// FinancialSummary is the value object produced by the indicator engine.
type FinancialSummary struct {
	TPS          decimal.Decimal `json:"tps"`
	RDR          decimal.Decimal `json:"rdr"`
	ILI          decimal.Decimal `json:"ili"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	TotalDebt    decimal.Decimal `json:"total_debt"`
}

// Severity is an advisory health level for an indicator.
type Severity string

// Severity levels.
const (
	SeverityHealthy   Severity = "healthy"
	SeverityAttention Severity = "attention"
	SeverityCritical  Severity = "critical"
)

var (
	rdrHealthyLimit   = decimal.NewFromInt(35)
	rdrAttentionLimit = decimal.NewFromInt(42)
)

// RDRSeverity classifies a debt-service ratio. Advisory only.
func RDRSeverity(rdr decimal.Decimal) Severity {
	switch {
	case rdr.LessThanOrEqual(rdrHealthyLimit):
		return SeverityHealthy
	case rdr.LessThanOrEqual(rdrAttentionLimit):
		return SeverityAttention
	default:
		return SeverityCritical
	}
}
