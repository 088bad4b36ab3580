// Package reports aggregates approved transactions into the figures shown on
// the dashboard and in exported ledgers.
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sas-finance/service_layer/internal/domain"
)

// Summary is the headline view of the books. Only approved transactions count.
type Summary struct {
	Income                decimal.Decimal
	Expense               decimal.Decimal
	Balance               decimal.Decimal
	Approved              int
	PendingReimbursements int
}

// CategoryTotal sums approved amounts of one category.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// MonthTotal sums approved inflows and outflows of one "YYYY-MM" month.
type MonthTotal struct {
	Month   string
	Income  decimal.Decimal
	Expense decimal.Decimal
}

func Summarize(txs []domain.Transaction, reqs []domain.ReimbursementRequest) Summary {
	var s Summary
	for _, tx := range txs {
		if tx.Status != domain.TransactionApproved {
			continue
		}
		s.Approved++
		switch tx.Direction {
		case domain.Inflow:
			s.Income = s.Income.Add(tx.Amount)
		case domain.Outflow:
			s.Expense = s.Expense.Add(tx.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)
	for _, r := range reqs {
		if r.Status == domain.ReimbursementPending {
			s.PendingReimbursements++
		}
	}
	return s
}

// ByCategory returns per-category totals in order of first appearance.
func ByCategory(txs []domain.Transaction) []CategoryTotal {
	index := make(map[string]int)
	out := make([]CategoryTotal, 0)
	for _, tx := range txs {
		if tx.Status != domain.TransactionApproved {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, CategoryTotal{Category: tx.Category})
		}
		out[i].Total = out[i].Total.Add(tx.Amount)
	}
	return out
}

// Monthly returns per-month totals in chronological order. Transactions
// without a usable date are left out.
func Monthly(txs []domain.Transaction) []MonthTotal {
	byMonth := make(map[string]*MonthTotal)
	for _, tx := range txs {
		if tx.Status != domain.TransactionApproved {
			continue
		}
		month, ok := monthOf(tx.Date)
		if !ok {
			continue
		}
		m, ok := byMonth[month]
		if !ok {
			m = &MonthTotal{Month: month}
			byMonth[month] = m
		}
		if tx.Direction == domain.Inflow {
			m.Income = m.Income.Add(tx.Amount)
		} else {
			m.Expense = m.Expense.Add(tx.Amount)
		}
	}

	out := make([]MonthTotal, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// InMonth keeps the transactions dated in month ("YYYY-MM").
func InMonth(txs []domain.Transaction, month string) []domain.Transaction {
	out := make([]domain.Transaction, 0)
	for _, tx := range txs {
		if m, ok := monthOf(tx.Date); ok && m == month {
			out = append(out, tx)
		}
	}
	return out
}

// monthOf extracts "YYYY-MM" from an ISO date or timestamp.
func monthOf(date string) (string, bool) {
	if len(date) < 7 || date[4] != '-' {
		return "", false
	}
	for i, c := range date[:7] {
		if i == 4 {
			continue
		}
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return date[:7], true
}
