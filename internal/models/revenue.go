package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RevenueRow is one aggregated journal bucket.
type RevenueRow struct {
	Kind      PaymentKind     `db:"kind" json:"kind"`
	EntryType EntryType       `db:"entry_type" json:"entry_type"`
	Total     decimal.Decimal `db:"total" json:"total"`
	Entries   int             `db:"entries" json:"entries"`
}

// RevenueSummary is income, refunds and expenses derived from the journal for a period.
type RevenueSummary struct {
	BranchID string          `json:"branch_id,omitempty"`
	From     time.Time       `json:"from"`
	To       time.Time       `json:"to"`
	Income   decimal.Decimal `json:"income"`
	Refunds  decimal.Decimal `json:"refunds"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
	ByKind   []RevenueRow    `json:"by_kind"`
	Cached   bool            `json:"cached"`
}

// Summarize folds aggregated rows into totals.
func (s *RevenueSummary) Summarize(rows []RevenueRow) {
	s.Income, s.Refunds, s.Expenses = decimal.Zero, decimal.Zero, decimal.Zero
	s.ByKind = rows
	for _, row := range rows {
		switch row.EntryType {
		case EntryTypePayment:
			s.Income = s.Income.Add(row.Total)
		case EntryTypeRefund:
			s.Refunds = s.Refunds.Add(row.Total)
		case EntryTypeExpense:
			s.Expenses = s.Expenses.Add(row.Total)
		}
	}
	s.Net = s.Income.Sub(s.Refunds).Sub(s.Expenses)
}
