package http

import (
	"context"
	"sync"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
	"github.com/GMosna/ContabilApp/internal/services"
	"github.com/GMosna/ContabilApp/internal/state"
)

// fakeFinance answers from fields. A nil session means logged out; err, when
// set, is returned by every data operation.
type fakeFinance struct {
	mu sync.Mutex

	session  *core.Session
	err      error
	health   error
	queue    bool
	stale    bool
	accounts []core.Account
	txs      []core.Transaction

	created       []core.Transaction
	updated       []core.Transaction
	savedAccounts []core.Account
	deposits      map[core.AccountID]core.Money
	lastFilter    ledger.TransactionFilter
}

var _ Finance = (*fakeFinance)(nil)

func loggedIn() *fakeFinance {
	return &fakeFinance{
		session:  &core.Session{Token: "t", User: core.User{ID: "1", Name: "Ana", Email: "ana@example.com"}},
		deposits: make(map[core.AccountID]core.Money),
	}
}

func (f *fakeFinance) Session(context.Context) (core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return core.Session{}, state.ErrNoSession
	}
	return *f.session, nil
}

func (f *fakeFinance) Login(_ context.Context, email, password string) (core.Session, error) {
	if password != "secret" {
		return core.Session{}, &api.BusinessError{Status: 401, Message: "Credenciais inválidas"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &core.Session{Token: "t", User: core.User{ID: "1", Email: email}}
	return *f.session, nil
}

func (f *fakeFinance) Register(_ context.Context, in api.RegisterInput) (core.Session, error) {
	if in.Name == "" {
		return core.Session{}, core.ValidationErrors{}.Add("name", core.ErrEmptyName)
	}
	return core.Session{Token: "t", User: core.User{ID: "2", Name: in.Name, Email: in.Email}}, nil
}

func (f *fakeFinance) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	return nil
}

func (f *fakeFinance) Dashboard(context.Context) (services.Dashboard, error) {
	if f.err != nil {
		return services.Dashboard{}, f.err
	}
	return services.Dashboard{
		TotalBalance: core.Cents(15000),
		Totals:       ledger.Totals(f.txs),
		Stale:        f.stale,
	}, nil
}

func (f *fakeFinance) Charts(context.Context) (services.Charts, error) {
	if f.err != nil {
		return services.Charts{}, f.err
	}
	return services.Charts{Monthly: ledger.ByMonth(f.txs), Stale: f.stale}, nil
}

func (f *fakeFinance) Accounts(context.Context) ([]core.Account, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.accounts, f.stale, nil
}

func (f *fakeFinance) Account(_ context.Context, id core.AccountID) (core.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, state.ErrNotFound
}

func (f *fakeFinance) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	f.savedAccounts = append(f.savedAccounts, a)
	a.ID = "10"
	return a, nil
}

func (f *fakeFinance) UpdateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if f.err != nil {
		return core.Account{}, f.err
	}
	f.savedAccounts = append(f.savedAccounts, a)
	return a, nil
}

func (f *fakeFinance) DeleteAccount(context.Context, core.AccountID) error { return f.err }

func (f *fakeFinance) Deposit(_ context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	if f.err != nil {
		return core.Account{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deposits[id] = f.deposits[id].Add(amount)
	return core.Account{ID: id, Name: "Conta", Bank: "nubank", Balance: f.deposits[id]}, nil
}

func (f *fakeFinance) Withdraw(_ context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	if f.err != nil {
		return core.Account{}, f.err
	}
	return core.Account{}, &api.BusinessError{Status: 400, Message: "Saldo insuficiente"}
}

func (f *fakeFinance) Movements(context.Context, core.AccountID) ([]core.Movement, error) {
	return nil, f.err
}

func (f *fakeFinance) Transactions(_ context.Context, filter ledger.TransactionFilter) (services.TransactionList, error) {
	if f.err != nil {
		return services.TransactionList{}, f.err
	}
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	txs := ledger.Filter(f.txs, filter)
	return services.TransactionList{Transactions: txs, Totals: ledger.Totals(txs), Stale: f.stale}, nil
}

func (f *fakeFinance) Transaction(_ context.Context, id core.TransactionID) (core.Transaction, error) {
	for _, tx := range f.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, state.ErrNotFound
}

func (f *fakeFinance) CreateTransaction(_ context.Context, tx core.Transaction) (services.TransactionResult, error) {
	if err := tx.Validate(); err != nil {
		return services.TransactionResult{}, err
	}
	if f.err != nil {
		return services.TransactionResult{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, tx)
	if f.queue {
		tx.ID = core.LocalIDPrefix + "1"
		return services.TransactionResult{Transaction: tx, Queued: true}, nil
	}
	tx.ID = "100"
	return services.TransactionResult{Transaction: tx}, nil
}

func (f *fakeFinance) UpdateTransaction(_ context.Context, tx core.Transaction) (services.TransactionResult, error) {
	if f.err != nil {
		return services.TransactionResult{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, tx)
	return services.TransactionResult{Transaction: tx, Queued: f.queue}, nil
}

func (f *fakeFinance) DeleteTransaction(_ context.Context, id core.TransactionID) (services.TransactionResult, error) {
	if f.err != nil {
		return services.TransactionResult{}, f.err
	}
	return services.TransactionResult{Transaction: core.Transaction{ID: id}, Queued: f.queue}, nil
}

func (f *fakeFinance) ClearTransactions(context.Context) (services.TransactionResult, error) {
	return services.TransactionResult{}, f.err
}

func (f *fakeFinance) Categories(context.Context) ([]core.Category, error) {
	return []core.Category{{ID: "food", Name: "Alimentação"}}, f.err
}

func (f *fakeFinance) TransactionTypes(context.Context) ([]core.TransactionType, error) {
	return []core.TransactionType{{ID: "1", Name: "INCOME"}, {ID: "2", Name: "EXPENSE"}}, f.err
}

func (f *fakeFinance) UpdateTransactionType(_ context.Context, tt core.TransactionType) (core.TransactionType, error) {
	return tt, f.err
}

func (f *fakeFinance) DeleteTransactionType(context.Context, core.TransactionTypeID) error {
	return f.err
}

func (f *fakeFinance) Health(context.Context) error { return f.health }

type fakeOutbox struct {
	stats   state.OutboxStats
	retried int64
}

func (f *fakeOutbox) Stats(context.Context) (state.OutboxStats, error) { return f.stats, nil }

func (f *fakeOutbox) RetryFailed(context.Context) (int64, error) {
	n := f.stats.Failed
	f.retried += n
	f.stats.Pending += n
	f.stats.Failed = 0
	return n, nil
}
