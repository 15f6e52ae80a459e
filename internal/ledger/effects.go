package ledger

import "github.com/GMosna/ContabilApp/internal/core"

// Outcome describes what an effect did to the account set.
type Outcome int

const (
	// Applied means the referenced account balance changed.
	Applied Outcome = iota
	// NoAccount means the transaction is a cash transaction.
	NoAccount
	// Skipped means the referenced account is not loaded; nothing changed.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NoAccount:
		return "cash"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Balances is an in-memory account set that transaction effects are applied to.
type Balances struct {
	accounts []core.Account
	byID     map[core.AccountID]int
}

// NewBalances copies accounts; the caller's slice is never modified.
func NewBalances(accounts []core.Account) *Balances {
	b := &Balances{
		accounts: make([]core.Account, len(accounts)),
		byID:     make(map[core.AccountID]int, len(accounts)),
	}
	copy(b.accounts, accounts)
	for i, a := range b.accounts {
		b.byID[a.ID] = i
	}
	return b
}

// Get returns the current balance of id.
func (b *Balances) Get(id core.AccountID) (core.Money, bool) {
	i, ok := b.byID[id]
	if !ok {
		return core.Money{}, false
	}
	return b.accounts[i].Balance, true
}

// Accounts returns a copy of the accounts with their adjusted balances.
func (b *Balances) Accounts() []core.Account {
	out := make([]core.Account, len(b.accounts))
	copy(out, b.accounts)
	return out
}

func (b *Balances) adjust(ref core.AccountRef, delta core.Money) Outcome {
	id, ok := ref.ID()
	if !ok {
		return NoAccount
	}
	i, known := b.byID[id]
	if !known {
		return Skipped
	}
	b.accounts[i].Balance = b.accounts[i].Balance.Add(delta)
	return Applied
}

// ApplyCreate adds +amount for income and -amount for expense to the referenced account.
func (b *Balances) ApplyCreate(tx core.Transaction) Outcome {
	return b.adjust(tx.Account, tx.SignedAmount())
}

// ApplyDelete is the exact inverse of ApplyCreate.
func (b *Balances) ApplyDelete(tx core.Transaction) Outcome {
	return b.adjust(tx.Account, tx.SignedAmount().Neg())
}

// ApplyEdit fully reverts old on its account and then fully applies updated on
// its account. Both phases always run, even when only the description changed,
// so amount, kind and account changes compose without partial adjustments.
func (b *Balances) ApplyEdit(old, updated core.Transaction) (revert, apply Outcome) {
	revert = b.ApplyDelete(old)
	apply = b.ApplyCreate(updated)
	return revert, apply
}

// Unwind removes the effect of every transaction from the account balances,
// as when all transactions are cleared at once.
func Unwind(accounts []core.Account, txs []core.Transaction) []core.Account {
	b := NewBalances(accounts)
	for _, tx := range txs {
		b.ApplyDelete(tx)
	}
	return b.Accounts()
}
