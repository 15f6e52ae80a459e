package services

import (
	"slices"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
	"github.com/GMosna/ContabilApp/internal/state"
)

// Projection is the confirmed data with the not-yet-replayed outbox laid on top.
type Projection struct {
	Accounts     []core.Account
	Transactions []core.Transaction
	// Queued is the reconciliation of the transactions created offline over
	// the balances left by every other pending change.
	Queued  ledger.Reconciliation
	Pending int
}

// Project replays pending outbox items over confirmed accounts and
// transactions, oldest first. Edits, deletes and clear-all go through the
// mutation effects; creates are folded together and reconciled last, since
// they only ever add to balances.
func Project(accounts []core.Account, txs []core.Transaction, pending []state.OutboxItem) Projection {
	balances := ledger.NewBalances(accounts)
	list := slices.Clone(txs)
	var created []core.Transaction

	indexOf := func(in []core.Transaction, id core.TransactionID) int {
		return slices.IndexFunc(in, func(t core.Transaction) bool { return t.ID == id })
	}

	for _, item := range pending {
		switch item.Operation {
		case state.OpCreate:
			tx := item.Transaction
			tx.ID = item.TransactionID
			created = append(created, tx)

		case state.OpUpdate:
			tx := item.Transaction
			tx.ID = item.TransactionID
			if i := indexOf(created, tx.ID); i >= 0 {
				created[i] = tx
				continue
			}
			if i := indexOf(list, tx.ID); i >= 0 {
				balances.ApplyEdit(list[i], tx)
				list[i] = tx
			}

		case state.OpDelete:
			if i := indexOf(created, item.TransactionID); i >= 0 {
				created = slices.Delete(created, i, i+1)
				continue
			}
			if i := indexOf(list, item.TransactionID); i >= 0 {
				balances.ApplyDelete(list[i])
				list = slices.Delete(list, i, i+1)
			}

		case state.OpClearAll:
			balances = ledger.NewBalances(ledger.Unwind(balances.Accounts(), list))
			list = nil
			created = nil
		}
	}

	base := balances.Accounts()
	queued := ledger.Reconcile(base, created)
	return Projection{
		Accounts:     queued.Apply(base),
		Transactions: append(list, created...),
		Queued:       queued,
		Pending:      len(pending),
	}
}
