package ledger

import "github.com/GMosna/ContabilApp/internal/core"

// Reconciliation is the adjusted balance of every loaded account.
type Reconciliation struct {
	Balances map[core.AccountID]core.Money
	Total    core.Money
	// Income and Expense sum the transactions that contributed.
	Income  core.Money
	Expense core.Money
	// Skipped counts cash transactions and those pointing at accounts not loaded.
	Skipped int
}

// Balance returns the adjusted balance of id.
func (r Reconciliation) Balance(id core.AccountID) (core.Money, bool) {
	m, ok := r.Balances[id]
	return m, ok
}

// Reconcile starts from each account's stored balance and adds the signed
// amount of every transaction that references one of those accounts.
// Transaction identifiers are assumed unique.
func Reconcile(accounts []core.Account, txs []core.Transaction) Reconciliation {
	r := Reconciliation{Balances: make(map[core.AccountID]core.Money, len(accounts))}
	for _, a := range accounts {
		r.Balances[a.ID] = a.Balance
	}

	for _, tx := range txs {
		id, ok := tx.Account.ID()
		if !ok {
			r.Skipped++
			continue
		}
		bal, known := r.Balances[id]
		if !known {
			r.Skipped++
			continue
		}
		r.Balances[id] = bal.Add(tx.SignedAmount())
		if tx.Kind == core.Income {
			r.Income = r.Income.Add(tx.Amount)
		} else {
			r.Expense = r.Expense.Add(tx.Amount)
		}
	}

	for _, bal := range r.Balances {
		r.Total = r.Total.Add(bal)
	}
	return r
}

// Apply returns a copy of accounts with their balances replaced by the reconciled ones.
func (r Reconciliation) Apply(accounts []core.Account) []core.Account {
	out := make([]core.Account, len(accounts))
	for i, a := range accounts {
		if bal, ok := r.Balances[a.ID]; ok {
			a.Balance = bal
		}
		out[i] = a
	}
	return out
}
