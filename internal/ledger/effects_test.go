package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GMosna/ContabilApp/internal/core"
)

func balance(t *testing.T, b *Balances, id core.AccountID) core.Money {
	t.Helper()
	m, ok := b.Get(id)
	require.True(t, ok, "account %s not loaded", id)
	return m
}

func TestCreateThenDeleteRestoresBalance(t *testing.T) {
	b := NewBalances(accounts())
	food := tx("1", core.Expense, "150.50", core.RefTo("1"))

	assert.Equal(t, Applied, b.ApplyCreate(food))
	assertMoney(t, "849.50", balance(t, b, "1"))

	assert.Equal(t, Applied, b.ApplyDelete(food))
	assertMoney(t, "1000.00", balance(t, b, "1"))
}

func TestCashNeverTouchesBalances(t *testing.T) {
	b := NewBalances(accounts())
	cash := tx("1", core.Expense, "99.99", core.Cash)

	assert.Equal(t, NoAccount, b.ApplyCreate(cash))
	edited := cash
	edited.Amount = money("10")
	edited.Kind = core.Income
	revert, apply := b.ApplyEdit(cash, edited)
	assert.Equal(t, NoAccount, revert)
	assert.Equal(t, NoAccount, apply)
	assert.Equal(t, NoAccount, b.ApplyDelete(edited))

	assertMoney(t, "1000.00", balance(t, b, "1"))
	assertMoney(t, "250.00", balance(t, b, "2"))
}

func TestEditDescriptionOnlyKeepsBalance(t *testing.T) {
	b := NewBalances(accounts())
	orig := tx("1", core.Expense, "40", core.RefTo("1"))
	b.ApplyCreate(orig)

	renamed := orig
	renamed.Description = "renamed"
	b.ApplyEdit(orig, renamed)

	assertMoney(t, "960.00", balance(t, b, "1"))
}

func TestEditMovesEffectBetweenAccounts(t *testing.T) {
	b := NewBalances(accounts())
	orig := tx("1", core.Income, "100", core.RefTo("1"))
	b.ApplyCreate(orig)
	assertMoney(t, "1100", balance(t, b, "1"))

	moved := orig
	moved.Account = core.RefTo("2")
	revert, apply := b.ApplyEdit(orig, moved)

	assert.Equal(t, Applied, revert)
	assert.Equal(t, Applied, apply)
	assertMoney(t, "1000", balance(t, b, "1"))
	assertMoney(t, "350", balance(t, b, "2"))
}

func TestEditChangesAmountKindAndAccountAtOnce(t *testing.T) {
	b := NewBalances(accounts())
	orig := tx("1", core.Income, "100", core.RefTo("1"))
	b.ApplyCreate(orig)

	updated := orig
	updated.Amount = money("30")
	updated.Kind = core.Expense
	updated.Account = core.RefTo("2")
	b.ApplyEdit(orig, updated)

	assertMoney(t, "1000", balance(t, b, "1"))
	assertMoney(t, "220", balance(t, b, "2"))
}

func TestEditFromCashToAccount(t *testing.T) {
	b := NewBalances(accounts())
	orig := tx("1", core.Expense, "20", core.Cash)

	updated := orig
	updated.Account = core.RefTo("2")
	revert, apply := b.ApplyEdit(orig, updated)

	assert.Equal(t, NoAccount, revert)
	assert.Equal(t, Applied, apply)
	assertMoney(t, "230", balance(t, b, "2"))
}

func TestUnknownAccountIsSkipped(t *testing.T) {
	b := NewBalances(accounts())
	ghost := tx("1", core.Expense, "20", core.RefTo("404"))

	assert.Equal(t, Skipped, b.ApplyCreate(ghost))
	assert.Equal(t, Skipped, b.ApplyDelete(ghost))
	assert.Equal(t, "skipped", Skipped.String())
	assertMoney(t, "1000", balance(t, b, "1"))
}

func TestBalancesCopiesInput(t *testing.T) {
	accs := accounts()
	b := NewBalances(accs)
	b.ApplyCreate(tx("1", core.Expense, "1", core.RefTo("1")))

	assertMoney(t, "1000.00", accs[0].Balance)
	out := b.Accounts()
	assertMoney(t, "999", out[0].Balance)
	out[0].Balance = money("0")
	assertMoney(t, "999", balance(t, b, "1"))
}

func TestUnwind(t *testing.T) {
	accs := []core.Account{
		{ID: "1", Balance: money("849.50")},
		{ID: "2", Balance: money("300")},
	}
	txs := []core.Transaction{
		tx("1", core.Expense, "150.50", core.RefTo("1")),
		tx("2", core.Income, "50", core.RefTo("2")),
		tx("3", core.Income, "70", core.Cash),
	}
	out := Unwind(accs, txs)
	assertMoney(t, "1000", out[0].Balance)
	assertMoney(t, "250", out[1].Balance)
}
