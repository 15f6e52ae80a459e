package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/GMosna/ContabilApp/internal/core"
)

// ByCategory folds the amounts of one kind per category, largest first.
// Ties are broken by category id so the order is deterministic.
func ByCategory(txs []core.Transaction, kind core.Kind) []core.CategoryAmount {
	sums := map[core.CategoryID]core.Money{}
	for _, tx := range txs {
		if tx.Kind != kind {
			continue
		}
		sums[tx.Category] = sums[tx.Category].Add(tx.Amount)
	}

	out := make([]core.CategoryAmount, 0, len(sums))
	for id, amount := range sums {
		out = append(out, core.CategoryAmount{Category: id, Name: core.CategoryLabel(id), Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// NameCategories replaces slug labels with the names the backend knows.
func NameCategories(list []core.CategoryAmount, categories []core.Category) []core.CategoryAmount {
	names := make(map[core.CategoryID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	for i := range list {
		if n, ok := names[list[i].Category]; ok && n != "" {
			list[i].Name = n
		}
	}
	return list
}

// ByMonth sums income and expense per "YYYY-MM", oldest month first.
func ByMonth(txs []core.Transaction) []core.MonthAmount {
	idx := map[string]int{}
	var out []core.MonthAmount
	for _, tx := range txs {
		key := tx.Date.MonthKey()
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, core.MonthAmount{Month: key})
		}
		if tx.Kind == core.Income {
			out[i].Income = out[i].Income.Add(tx.Amount)
		} else if tx.Kind == core.Expense {
			out[i].Expense = out[i].Expense.Add(tx.Amount)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Totals sums income and expense.
func Totals(txs []core.Transaction) core.Totals {
	var t core.Totals
	for _, tx := range txs {
		switch tx.Kind {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Net = t.Income.Sub(t.Expense)
	return t
}

// InMonth keeps the transactions dated in the given year and month.
func InMonth(txs []core.Transaction, year int, month time.Month) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if tx.Date.Year() == year && tx.Date.Month() == month {
			out = append(out, tx)
		}
	}
	return out
}

// Latest returns the most recent transaction of kind. On equal dates the
// earliest in the list wins.
func Latest(txs []core.Transaction, kind core.Kind) (core.Transaction, bool) {
	var best core.Transaction
	found := false
	for _, tx := range txs {
		if tx.Kind != kind {
			continue
		}
		if !found || tx.Date.After(best.Date.Time) {
			best = tx
			found = true
		}
	}
	return best, found
}

// TransactionFilter mirrors the filters of the transactions page.
// Zero fields do not filter.
type TransactionFilter struct {
	Search   string
	Kind     core.Kind
	Category core.CategoryID
	Month    string // "YYYY-MM"
}

// Filter returns the matching transactions, newest first.
func Filter(txs []core.Transaction, f TransactionFilter) []core.Transaction {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if search != "" && !strings.Contains(strings.ToLower(tx.Description), search) {
			continue
		}
		if f.Kind != "" && tx.Kind != f.Kind {
			continue
		}
		if f.Category != "" && tx.Category != f.Category {
			continue
		}
		if f.Month != "" && !strings.HasPrefix(tx.Date.String(), f.Month) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out
}
