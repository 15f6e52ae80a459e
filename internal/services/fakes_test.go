package services

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
	"github.com/GMosna/ContabilApp/internal/sheets"
	"github.com/GMosna/ContabilApp/internal/state"
	"github.com/GMosna/ContabilApp/internal/state/memory"
)

// fakeBackend keeps balances the way the real backend does: every
// transaction change adjusts the referenced account.
type fakeBackend struct {
	mu         sync.Mutex
	accounts   []core.Account
	txs        []core.Transaction
	categories []core.Category
	types      []core.TransactionType

	down         bool
	unauthorized bool
	rejectCreate error

	created        []api.TransactionInput
	updated        []api.TransactionInput
	deleted        []core.TransactionID
	accountUpdates []core.Account
	cleared        int
	accountLoads   int
	nextID         int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts: []core.Account{
			{ID: "1", Name: "Ana", Bank: "nubank", Balance: core.Cents(100000)},
			{ID: "2", Name: "Ana", Bank: "itau", Balance: core.Cents(50000)},
		},
		categories: []core.Category{
			{ID: "1", Name: "Salário"},
			{ID: "2", Name: "Alimentação"},
		},
		types: []core.TransactionType{
			{ID: "10", Name: "INCOME"},
			{ID: "20", Name: "EXPENSE"},
		},
	}
}

func (f *fakeBackend) fail() error {
	if f.down {
		return api.ErrUnavailable
	}
	if f.unauthorized {
		return api.ErrUnauthorized
	}
	return nil
}

func (f *fakeBackend) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeBackend) balances() *ledger.Balances { return ledger.NewBalances(f.accounts) }

func (f *fakeBackend) Login(_ context.Context, email, password string) (core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Session{}, err
	}
	if password != "secret" {
		return core.Session{}, &api.BusinessError{Status: 401, Message: "E-mail ou senha inválidos."}
	}
	return core.Session{Token: "token-" + email, User: core.User{ID: "7", Name: "Ana", Email: email}}, nil
}

func (f *fakeBackend) Register(_ context.Context, in api.RegisterInput) (core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Session{}, err
	}
	return core.Session{Token: "token-new", User: core.User{ID: "8", Name: in.Name, Email: in.Email}}, nil
}

func (f *fakeBackend) Accounts(context.Context) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.accountLoads++
	return slices.Clone(f.accounts), nil
}

func (f *fakeBackend) Account(_ context.Context, id core.AccountID) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Account{}, err
	}
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, &api.BusinessError{Status: 404, Message: "Conta não encontrada"}
}

func (f *fakeBackend) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Account{}, err
	}
	f.nextID++
	a.ID = core.AccountID(fmt.Sprintf("acc-%d", f.nextID))
	f.accounts = append(f.accounts, a)
	return a, nil
}

func (f *fakeBackend) UpdateAccount(_ context.Context, a core.Account) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Account{}, err
	}
	f.accountUpdates = append(f.accountUpdates, a)
	for i := range f.accounts {
		if f.accounts[i].ID == a.ID {
			f.accounts[i] = a
			return a, nil
		}
	}
	return core.Account{}, &api.BusinessError{Status: 404, Message: "Conta não encontrada"}
}

func (f *fakeBackend) DeleteAccount(_ context.Context, id core.AccountID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.accounts = slices.DeleteFunc(f.accounts, func(a core.Account) bool { return a.ID == id })
	return nil
}

func (f *fakeBackend) Deposit(_ context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	return f.move(id, amount)
}

func (f *fakeBackend) Withdraw(_ context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	return f.move(id, amount.Neg())
}

func (f *fakeBackend) move(id core.AccountID, delta core.Money) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Account{}, err
	}
	for i := range f.accounts {
		if f.accounts[i].ID == id {
			f.accounts[i].Balance = f.accounts[i].Balance.Add(delta)
			return f.accounts[i], nil
		}
	}
	return core.Account{}, &api.BusinessError{Status: 404, Message: "Conta não encontrada"}
}

func (f *fakeBackend) Movements(context.Context, core.AccountID) ([]core.Movement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return nil, f.fail()
}

func (f *fakeBackend) Transactions(context.Context, []core.TransactionType) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return slices.Clone(f.txs), nil
}

func (f *fakeBackend) CreateTransaction(_ context.Context, in api.TransactionInput) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Transaction{}, err
	}
	if f.rejectCreate != nil {
		return core.Transaction{}, f.rejectCreate
	}
	f.created = append(f.created, in)
	f.nextID++
	tx := in.Transaction
	tx.ID = core.TransactionID(fmt.Sprintf("tx-%d", f.nextID))
	b := f.balances()
	b.ApplyCreate(tx)
	f.accounts = b.Accounts()
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeBackend) UpdateTransaction(_ context.Context, in api.TransactionInput) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.Transaction{}, err
	}
	f.updated = append(f.updated, in)
	for i := range f.txs {
		if f.txs[i].ID == in.Transaction.ID {
			b := f.balances()
			b.ApplyEdit(f.txs[i], in.Transaction)
			f.accounts = b.Accounts()
			f.txs[i] = in.Transaction
			return in.Transaction, nil
		}
	}
	return core.Transaction{}, &api.BusinessError{Status: 404, Message: "Transação não encontrada"}
}

func (f *fakeBackend) DeleteTransaction(_ context.Context, id core.TransactionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	for i := range f.txs {
		if f.txs[i].ID == id {
			b := f.balances()
			b.ApplyDelete(f.txs[i])
			f.accounts = b.Accounts()
			f.txs = slices.Delete(f.txs, i, i+1)
			return nil
		}
	}
	return &api.BusinessError{Status: 404, Message: "Transação não encontrada"}
}

func (f *fakeBackend) ClearTransactions(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.accounts = ledger.Unwind(f.accounts, f.txs)
	f.txs = nil
	f.cleared++
	return nil
}

func (f *fakeBackend) Categories(context.Context) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return slices.Clone(f.categories), nil
}

func (f *fakeBackend) TransactionTypes(context.Context) ([]core.TransactionType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return slices.Clone(f.types), nil
}

func (f *fakeBackend) UpdateTransactionType(_ context.Context, tt core.TransactionType) (core.TransactionType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return core.TransactionType{}, err
	}
	for i := range f.types {
		if f.types[i].ID == tt.ID {
			f.types[i] = tt
		}
	}
	return tt, nil
}

func (f *fakeBackend) DeleteTransactionType(_ context.Context, id core.TransactionTypeID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return err
	}
	f.types = slices.DeleteFunc(f.types, func(t core.TransactionType) bool { return t.ID == id })
	return nil
}

func (f *fakeBackend) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail()
}

type published struct {
	id        int64
	operation string
	txID      string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) PublishOutbox(_ context.Context, id int64, operation, txID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{id: id, operation: operation, txID: txID})
	return nil
}

type fakeExporter struct {
	mu   sync.Mutex
	rows []sheets.Row
	err  error
}

func (e *fakeExporter) Export(_ context.Context, row sheets.Row) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.rows = append(e.rows, row)
	return fmt.Sprintf("row-%d", len(e.rows)), nil
}

type fixture struct {
	backend   *fakeBackend
	persist   *memory.Store
	publisher *fakePublisher
	svc       *FinanceService
}

// newFixture returns a logged-in service in offline mode over a fake backend.
func newFixture() *fixture {
	fx := &fixture{
		backend:   newFakeBackend(),
		persist:   memory.New(),
		publisher: &fakePublisher{},
	}
	fx.svc = NewFinanceService(fx.backend, state.NewStore(), fx.persist, Options{
		Offline:   true,
		Publisher: fx.publisher,
	})
	_, _ = fx.svc.Login(context.Background(), "ana@example.com", "secret")
	return fx
}

func expense(desc string, cents int64, account core.AccountRef) core.Transaction {
	return core.Transaction{
		Description: desc,
		Amount:      core.Cents(cents),
		Kind:        core.Expense,
		Category:    "2",
		Date:        core.NewDate(2026, 10, 3),
		Account:     account,
	}
}

func income(desc string, cents int64, account core.AccountRef) core.Transaction {
	tx := expense(desc, cents, account)
	tx.Kind = core.Income
	tx.Category = "1"
	return tx
}
