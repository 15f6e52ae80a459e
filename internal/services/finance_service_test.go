package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
	"github.com/GMosna/ContabilApp/internal/state"
	"github.com/GMosna/ContabilApp/internal/state/memory"
)

func accountBalance(t *testing.T, d Dashboard, id core.AccountID) AccountBalance {
	t.Helper()
	for _, a := range d.Accounts {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("account %s not on dashboard", id)
	return AccountBalance{}
}

func TestLogin_PersistsSession(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	sess, err := fx.persist.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-ana@example.com", sess.Token)
	assert.True(t, fx.svc.Store().LoggedIn())

	require.NoError(t, fx.svc.Logout(ctx))
	assert.False(t, fx.svc.Store().LoggedIn())
	_, err = fx.persist.LoadSession(ctx)
	assert.ErrorIs(t, err, state.ErrNoSession)
}

func TestLogin_RequiresEmailAndPassword(t *testing.T) {
	svc := NewFinanceService(newFakeBackend(), state.NewStore(), memory.New(), Options{})

	_, err := svc.Login(context.Background(), " ", "")

	v, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields(), "email")
	assert.Contains(t, v.Fields(), "password")
}

func TestRegister_Validation(t *testing.T) {
	svc := NewFinanceService(newFakeBackend(), state.NewStore(), memory.New(), Options{})

	_, err := svc.Register(context.Background(), api.RegisterInput{
		Name:     "Ana",
		Email:    "not-an-email",
		Password: "x",
		CPF:      "111.111.111-11",
	})

	v, ok := core.AsValidation(err)
	require.True(t, ok)
	fields := v.Fields()
	assert.Equal(t, ErrInvalidEmail.Error(), fields["email"])
	assert.Equal(t, core.ErrInvalidCPF.Error(), fields["cpf"])
	assert.Contains(t, fields, "dateOfBirth")
	assert.NotContains(t, fields, "name")
}

func TestDashboard_Summaries(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return now }

	for _, tx := range []core.Transaction{
		income("Salário", 500000, core.RefTo("1")),
		expense("Mercado", 20000, core.RefTo("1")),
		expense("Feira", 5000, core.Cash),
	} {
		_, err := fx.svc.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}

	d, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)

	assert.False(t, d.Stale)
	assert.Equal(t, 0, d.Pending)
	assert.True(t, accountBalance(t, d, "1").Balance.Equal(core.Cents(580000)))
	assert.Equal(t, "Nubank", accountBalance(t, d, "1").BankLabel)
	assert.True(t, d.TotalBalance.Equal(core.Cents(630000)))
	assert.True(t, d.Totals.Income.Equal(core.Cents(500000)))
	assert.True(t, d.Totals.Expense.Equal(core.Cents(25000)))
	assert.True(t, d.CurrentMonth.Net.Equal(core.Cents(475000)))
	require.Len(t, d.ExpenseByCategory, 1)
	assert.Equal(t, "Alimentação", d.ExpenseByCategory[0].Name)
	require.NotNil(t, d.LastIncome)
	assert.Equal(t, "Salário", d.LastIncome.Description)
}

func TestCreateTransaction_SendsTypeAndUser(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	loads := fx.backend.accountLoads

	res, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 1000, core.RefTo("2")))
	require.NoError(t, err)

	assert.False(t, res.Queued)
	assert.Equal(t, core.TransactionID("tx-1"), res.Transaction.ID)
	require.Len(t, fx.backend.created, 1)
	assert.Equal(t, core.TransactionTypeID("20"), fx.backend.created[0].TypeID)
	assert.Equal(t, core.UserID("7"), fx.backend.created[0].UserID)
	assert.Greater(t, fx.backend.accountLoads, loads, "a mutation is followed by a refetch")

	snap := fx.svc.Store().Snapshot()
	require.Len(t, snap.Transactions, 1)
	assert.True(t, snap.Accounts[1].Balance.Equal(core.Cents(49000)))
}

func TestCreateTransaction_InvalidNeverReachesBackend(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.CreateTransaction(context.Background(), core.Transaction{Kind: core.Expense})

	_, ok := core.AsValidation(err)
	assert.True(t, ok)
	assert.Empty(t, fx.backend.created)
	assert.Empty(t, fx.publisher.msgs)
}

func TestCreateTransaction_QueuedWhileBackendDown(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	_, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)

	fx.backend.setDown(true)
	res, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 1000, core.RefTo("1")))
	require.NoError(t, err)

	assert.True(t, res.Queued)
	assert.True(t, res.Transaction.ID.IsLocal())
	require.Len(t, fx.publisher.msgs, 1)
	assert.Equal(t, string(state.OpCreate), fx.publisher.msgs[0].operation)

	d, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.True(t, d.Stale)
	assert.Equal(t, 1, d.Pending)
	acc := accountBalance(t, d, "1")
	assert.True(t, acc.Balance.Equal(core.Cents(99000)), "queued expense is projected")
	assert.True(t, acc.Confirmed.Equal(core.Cents(100000)))
}

func TestCreateTransaction_UnavailableWithoutOfflineMode(t *testing.T) {
	backend := newFakeBackend()
	svc := NewFinanceService(backend, state.NewStore(), memory.New(), Options{})
	ctx := context.Background()
	_, err := svc.Login(ctx, "ana@example.com", "secret")
	require.NoError(t, err)

	backend.setDown(true)
	_, err = svc.CreateTransaction(ctx, expense("Mercado", 1000, core.Cash))
	assert.ErrorIs(t, err, api.ErrUnavailable)

	_, err = svc.Dashboard(ctx)
	assert.ErrorIs(t, err, api.ErrUnavailable)
}

func TestUnauthorizedEndsSession(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	fx.backend.mu.Lock()
	fx.backend.unauthorized = true
	fx.backend.mu.Unlock()

	_, err := fx.svc.Dashboard(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.False(t, fx.svc.Store().LoggedIn())
	_, err = fx.persist.LoadSession(ctx)
	assert.ErrorIs(t, err, state.ErrNoSession)
}

func TestDashboard_RequiresSession(t *testing.T) {
	svc := NewFinanceService(newFakeBackend(), state.NewStore(), memory.New(), Options{})

	_, err := svc.Dashboard(context.Background())

	assert.ErrorIs(t, err, state.ErrNoSession)
}

func TestDashboard_FallsBackToPersistedSnapshot(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	_, err := fx.svc.CreateTransaction(ctx, income("Salário", 1000, core.RefTo("2")))
	require.NoError(t, err)

	// A fresh process sharing the same persistence.
	restarted := NewFinanceService(fx.backend, state.NewStore(), fx.persist, Options{Offline: true})
	require.NoError(t, restarted.Restore(ctx))
	fx.backend.setDown(true)

	d, err := restarted.Dashboard(ctx)
	require.NoError(t, err)
	assert.True(t, d.Stale)
	assert.True(t, accountBalance(t, d, "2").Balance.Equal(core.Cents(51000)))
}

func TestUpdateTransaction_LocalIDIsAlwaysQueued(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	tx := expense("Mercado", 1000, core.RefTo("1"))
	tx.ID = "local-123"
	res, err := fx.svc.UpdateTransaction(ctx, tx)
	require.NoError(t, err)

	assert.True(t, res.Queued)
	assert.Empty(t, fx.backend.updated)
}

func TestDeleteTransaction_Online(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	res, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 1000, core.RefTo("1")))
	require.NoError(t, err)

	del, err := fx.svc.DeleteTransaction(ctx, res.Transaction.ID)
	require.NoError(t, err)

	assert.False(t, del.Queued)
	assert.Equal(t, "Mercado", del.Transaction.Description)
	assert.Empty(t, fx.svc.Store().Snapshot().Transactions)
	assert.True(t, fx.svc.Store().Snapshot().Accounts[0].Balance.Equal(core.Cents(100000)))
}

func TestClearTransactions_QueuedOffline(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	_, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 1000, core.RefTo("1")))
	require.NoError(t, err)

	fx.backend.setDown(true)
	res, err := fx.svc.ClearTransactions(ctx)
	require.NoError(t, err)
	assert.True(t, res.Queued)

	list, err := fx.svc.Transactions(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Transactions)
	assert.True(t, list.Accounts[0].Balance.Equal(core.Cents(100000)))
}

func TestUpdateTransaction_QueuesBehindPendingEdit(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	res, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 10000, core.RefTo("1")))
	require.NoError(t, err)
	tx := res.Transaction

	fx.backend.setDown(true)
	tx.Amount = core.Cents(20000)
	offline, err := fx.svc.UpdateTransaction(ctx, tx)
	require.NoError(t, err)
	require.True(t, offline.Queued)

	fx.backend.setDown(false)
	tx.Amount = core.Cents(30000)
	online, err := fx.svc.UpdateTransaction(ctx, tx)
	require.NoError(t, err)
	assert.True(t, online.Queued, "a newer edit must not overtake the queued one")
	assert.Empty(t, fx.backend.updated)

	d, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Pending)
	acc := accountBalance(t, d, "1")
	assert.True(t, acc.Balance.Equal(core.Cents(70000)), "got %s", acc.Balance.StringFixed(2))
	assert.True(t, acc.Confirmed.Equal(core.Cents(90000)))

	processor := NewOutboxProcessor(fx.persist, fx.svc, &fakeExporter{}, DefaultOutboxProcessorConfig())
	require.Equal(t, 2, processor.ProcessBatch(ctx))

	require.Len(t, fx.backend.updated, 2)
	assert.True(t, fx.backend.updated[0].Transaction.Amount.Equal(core.Cents(20000)))
	assert.True(t, fx.backend.updated[1].Transaction.Amount.Equal(core.Cents(30000)))
	require.Len(t, fx.backend.txs, 1)
	assert.True(t, fx.backend.txs[0].Amount.Equal(core.Cents(30000)))

	d, err = fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Pending)
	assert.True(t, accountBalance(t, d, "1").Confirmed.Equal(core.Cents(70000)))
}

func TestDeleteTransaction_QueuesBehindPendingEdit(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	res, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 10000, core.RefTo("1")))
	require.NoError(t, err)

	fx.backend.setDown(true)
	edited := res.Transaction
	edited.Description = "Mercado do mês"
	_, err = fx.svc.UpdateTransaction(ctx, edited)
	require.NoError(t, err)
	fx.backend.setDown(false)

	del, err := fx.svc.DeleteTransaction(ctx, res.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, del.Queued)
	assert.Empty(t, fx.backend.deleted)
}

func TestUpdateTransaction_OtherPendingItemsDoNotBlock(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	first, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 10000, core.RefTo("1")))
	require.NoError(t, err)
	second, err := fx.svc.CreateTransaction(ctx, expense("Padaria", 1000, core.RefTo("1")))
	require.NoError(t, err)

	fx.backend.setDown(true)
	edited := first.Transaction
	edited.Amount = core.Cents(12000)
	_, err = fx.svc.UpdateTransaction(ctx, edited)
	require.NoError(t, err)
	fx.backend.setDown(false)

	other := second.Transaction
	other.Amount = core.Cents(1500)
	res, err := fx.svc.UpdateTransaction(ctx, other)
	require.NoError(t, err)
	assert.False(t, res.Queued)
	require.Len(t, fx.backend.updated, 1)
	assert.Equal(t, second.Transaction.ID, fx.backend.updated[0].Transaction.ID)
}

func TestCreateTransaction_QueuesBehindPendingClearAll(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	_, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 10000, core.RefTo("1")))
	require.NoError(t, err)

	fx.backend.setDown(true)
	_, err = fx.svc.ClearTransactions(ctx)
	require.NoError(t, err)
	fx.backend.setDown(false)

	res, err := fx.svc.CreateTransaction(ctx, income("Salário", 500000, core.RefTo("2")))
	require.NoError(t, err)
	assert.True(t, res.Queued, "the clear-all would remove a transaction created before it replays")
	require.Len(t, fx.backend.created, 1)

	processor := NewOutboxProcessor(fx.persist, fx.svc, &fakeExporter{}, DefaultOutboxProcessorConfig())
	require.Equal(t, 2, processor.ProcessBatch(ctx))

	require.Len(t, fx.backend.txs, 1)
	assert.Equal(t, "Salário", fx.backend.txs[0].Description)
	assert.Equal(t, 1, fx.backend.cleared)
}

func TestClearTransactions_QueuesBehindAnyPendingItem(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	queueOffline(t, fx, expense("Mercado", 10000, core.RefTo("1")))

	res, err := fx.svc.ClearTransactions(ctx)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Zero(t, fx.backend.cleared)
}

func TestLoad_ConfirmedComesFromProjectedSnapshot(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	_, err := fx.svc.Load(ctx)
	require.NoError(t, err)
	queueOffline(t, fx, expense("Mercado", 1000, core.RefTo("1")))
	fx.backend.setDown(true)

	v, err := fx.svc.Load(ctx)
	require.NoError(t, err)

	require.Len(t, v.Confirmed, 2)
	assert.Equal(t, fx.svc.Store().Version(), v.Version)
	assert.True(t, v.Confirmed[0].Balance.Equal(core.Cents(100000)))
	assert.True(t, v.Accounts[0].Balance.Equal(core.Cents(99000)))
}

func TestDepositRequiresPositiveAmount(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Deposit(ctx, "1", core.Cents(0))
	v, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields(), "value")

	a, err := fx.svc.Withdraw(ctx, "1", core.Cents(2500))
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(core.Cents(97500)))
}

func TestCreateAccount_Validation(t *testing.T) {
	fx := newFixture()
	fx.svc.now = func() time.Time { return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) }

	_, err := fx.svc.CreateAccount(context.Background(), core.Account{
		Name:        "Bia",
		Bank:        "itau",
		CPF:         "529.982.247-25",
		DateOfBirth: core.NewDate(2010, 1, 1),
	})

	v, ok := core.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, core.ErrUnderage.Error(), v.Fields()["dateOfBirth"])
}

func TestCreateAccount_KeepsOpeningBalance(t *testing.T) {
	fx := newFixture()
	fx.svc.now = func() time.Time { return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) }

	created, err := fx.svc.CreateAccount(context.Background(), core.Account{
		Name:        "Bia",
		Bank:        "itau",
		CPF:         "529.982.247-25",
		DateOfBirth: core.NewDate(1990, 1, 1),
		Balance:     core.Cents(50000),
	})
	require.NoError(t, err)
	assert.True(t, created.Balance.Equal(core.Cents(50000)))
}

func TestUpdateAccount_SendsStoredBalance(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	fx.svc.now = func() time.Time { return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) }
	_, err := fx.svc.Deposit(ctx, "1", core.Cents(2500))
	require.NoError(t, err)

	updated, err := fx.svc.UpdateAccount(ctx, core.Account{
		ID:          "1",
		Name:        "Ana Maria",
		Bank:        "nubank",
		CPF:         "529.982.247-25",
		DateOfBirth: core.NewDate(1990, 1, 1),
	})
	require.NoError(t, err)

	require.Len(t, fx.backend.accountUpdates, 1)
	assert.True(t, fx.backend.accountUpdates[0].Balance.Equal(core.Cents(102500)))
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.True(t, updated.Balance.Equal(core.Cents(102500)))

	d, err := fx.svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.True(t, accountBalance(t, d, "1").Confirmed.Equal(core.Cents(102500)))
}

func TestUpdateAccount_UnknownAccountIsNotSent(t *testing.T) {
	fx := newFixture()
	fx.svc.now = func() time.Time { return time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC) }

	_, err := fx.svc.UpdateAccount(context.Background(), core.Account{
		ID:          "9",
		Name:        "Fantasma",
		Bank:        "nubank",
		CPF:         "529.982.247-25",
		DateOfBirth: core.NewDate(1990, 1, 1),
	})

	be, ok := api.AsBusiness(err)
	require.True(t, ok)
	assert.True(t, be.NotFound())
	assert.Empty(t, fx.backend.accountUpdates)
}

func TestReplay_CreateRemapsLaterItems(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	fx.backend.setDown(true)

	created, err := fx.svc.CreateTransaction(ctx, expense("Mercado", 1000, core.RefTo("1")))
	require.NoError(t, err)
	edited := created.Transaction
	edited.Description = "Mercado do mês"
	_, err = fx.svc.UpdateTransaction(ctx, edited)
	require.NoError(t, err)

	fx.backend.setDown(false)
	items, err := fx.persist.DequeueBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	tx, err := fx.svc.Replay(ctx, items[0])
	require.NoError(t, err)
	assert.Equal(t, core.TransactionID("tx-1"), tx.ID)

	next, err := fx.persist.Get(ctx, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, core.TransactionID("tx-1"), next.TransactionID)
}

func TestReplay_DeleteOfMissingTransactionSucceeds(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Replay(context.Background(), state.OutboxItem{Operation: state.OpDelete, TransactionID: "tx-404"})

	assert.NoError(t, err)
}

func TestReplay_UpdateOfNeverCreatedTransaction(t *testing.T) {
	fx := newFixture()

	_, err := fx.svc.Replay(context.Background(), state.OutboxItem{
		Operation:     state.OpUpdate,
		TransactionID: "local-x",
		Transaction:   expense("Mercado", 1000, core.Cash),
	})

	assert.True(t, errors.Is(err, ErrNeverCreated))
}

func TestTaxonomyIsCached(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	cats, err := fx.svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)

	fx.backend.setDown(true)
	cats, err = fx.svc.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
	assert.Equal(t, "Alimentação", fx.svc.CategoryName(ctx, "2"))
	assert.Equal(t, "Transporte", fx.svc.CategoryName(ctx, "transport"))
}
