package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/cache"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
	"github.com/GMosna/ContabilApp/internal/state"
)

var (
	ErrEmptyEmail        = errors.New("empty email")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrEmptyPassword     = errors.New("empty password")
	ErrNoTransactionType = errors.New("no transaction type for kind")
	ErrNeverCreated      = errors.New("transaction was never created on the backend")
)

// Backend is the REST API as used by the service. *api.Client implements it.
type Backend interface {
	Login(ctx context.Context, email, password string) (core.Session, error)
	Register(ctx context.Context, in api.RegisterInput) (core.Session, error)

	Accounts(ctx context.Context) ([]core.Account, error)
	Account(ctx context.Context, id core.AccountID) (core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) (core.Account, error)
	DeleteAccount(ctx context.Context, id core.AccountID) error
	Deposit(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error)
	Withdraw(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error)
	Movements(ctx context.Context, id core.AccountID) ([]core.Movement, error)

	Transactions(ctx context.Context, types []core.TransactionType) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, in api.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, in api.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id core.TransactionID) error
	ClearTransactions(ctx context.Context) error

	Categories(ctx context.Context) ([]core.Category, error)
	TransactionTypes(ctx context.Context) ([]core.TransactionType, error)
	UpdateTransactionType(ctx context.Context, tt core.TransactionType) (core.TransactionType, error)
	DeleteTransactionType(ctx context.Context, id core.TransactionTypeID) error

	Health(ctx context.Context) error
}

var _ Backend = (*api.Client)(nil)

// Publisher announces queued outbox items. *amqp.Client implements it.
type Publisher interface {
	PublishOutbox(ctx context.Context, outboxID int64, operation, transactionID string) error
}

type Options struct {
	// Offline queues transaction changes and serves cached reads while the
	// backend is unreachable.
	Offline bool

	// Publisher is optional. Without it queued items wait for the next poll.
	Publisher Publisher

	TaxonomyTTL time.Duration
}

// FinanceService coordinates the backend, the shared state and the outbox.
type FinanceService struct {
	backend   Backend
	store     *state.Store
	persist   state.Persistence
	publisher Publisher
	offline   bool

	categories *cache.LRUCache[[]core.Category]
	types      *cache.LRUCache[[]core.TransactionType]

	refreshGroup singleflight.Group
	now          func() time.Time
}

func NewFinanceService(backend Backend, store *state.Store, persist state.Persistence, opts Options) *FinanceService {
	ttl := opts.TaxonomyTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FinanceService{
		backend:    backend,
		store:      store,
		persist:    persist,
		publisher:  opts.Publisher,
		offline:    opts.Offline,
		categories: cache.NewLRUCache[[]core.Category](16, ttl),
		types:      cache.NewLRUCache[[]core.TransactionType](16, ttl),
		now:        time.Now,
	}
}

// Caches exposes the taxonomy caches so they can be registered for cleanup.
func (s *FinanceService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.categories, s.types}
}

// Store returns the shared state.
func (s *FinanceService) Store() *state.Store { return s.store }

// Offline reports whether changes are queued while the backend is down.
func (s *FinanceService) Offline() bool { return s.offline }

// Restore loads the persisted session and the last snapshot into the store.
func (s *FinanceService) Restore(ctx context.Context) error {
	sess, err := s.persist.LoadSession(ctx)
	switch {
	case errors.Is(err, state.ErrNoSession):
		return nil
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	}
	s.store.SetSession(sess)

	snap, err := s.persist.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, state.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load snapshot: %w", err)
	}
	if s.store.Restore(snap) {
		slog.InfoContext(ctx, "Restored snapshot",
			"accounts", len(snap.Accounts),
			"transactions", len(snap.Transactions),
			"saved_at", snap.SavedAt)
	}
	return nil
}

// Session returns the logged-in session, picking it up from persistence when
// another process logged in.
func (s *FinanceService) Session(ctx context.Context) (core.Session, error) {
	if sess, err := s.store.Session(); err == nil {
		return sess, nil
	}
	sess, err := s.persist.LoadSession(ctx)
	if err != nil {
		return core.Session{}, err
	}
	s.store.SetSession(sess)
	return sess, nil
}

func (s *FinanceService) Login(ctx context.Context, email, password string) (core.Session, error) {
	var errs core.ValidationErrors
	if strings.TrimSpace(email) == "" {
		errs = errs.Add("email", ErrEmptyEmail)
	}
	if password == "" {
		errs = errs.Add("password", ErrEmptyPassword)
	}
	if err := errs.Err(); err != nil {
		return core.Session{}, err
	}

	sess, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return core.Session{}, err
	}
	if err := s.startSession(ctx, sess); err != nil {
		return core.Session{}, err
	}
	slog.InfoContext(ctx, "User logged in", "user_id", sess.User.ID)
	return sess, nil
}

func (s *FinanceService) Register(ctx context.Context, in api.RegisterInput) (core.Session, error) {
	if err := validateRegistration(in); err != nil {
		return core.Session{}, err
	}
	sess, err := s.backend.Register(ctx, in)
	if err != nil {
		return core.Session{}, err
	}
	if err := s.startSession(ctx, sess); err != nil {
		return core.Session{}, err
	}
	slog.InfoContext(ctx, "User registered", "user_id", sess.User.ID)
	return sess, nil
}

func validateRegistration(in api.RegisterInput) error {
	var errs core.ValidationErrors
	if strings.TrimSpace(in.Name) == "" {
		errs = errs.Add("name", core.ErrEmptyName)
	}
	switch email := strings.TrimSpace(in.Email); {
	case email == "":
		errs = errs.Add("email", ErrEmptyEmail)
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			errs = errs.Add("email", ErrInvalidEmail)
		}
	}
	if in.Password == "" {
		errs = errs.Add("password", ErrEmptyPassword)
	}
	if !core.ValidCPF(in.CPF) {
		errs = errs.Add("cpf", core.ErrInvalidCPF)
	}
	if err := in.DateOfBirth.Validate(); err != nil {
		errs = errs.Add("dateOfBirth", err)
	}
	return errs.Err()
}

func (s *FinanceService) startSession(ctx context.Context, sess core.Session) error {
	s.store.Reset()
	s.purgeTaxonomy()
	s.store.SetSession(sess)
	if err := s.persist.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout forgets the session together with every piece of user data.
func (s *FinanceService) Logout(ctx context.Context) error {
	s.store.Reset()
	s.purgeTaxonomy()
	if err := s.persist.ClearSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *FinanceService) purgeTaxonomy() {
	s.categories.Purge()
	s.types.Purge()
}

// guard ends the session when the backend rejected the token.
func (s *FinanceService) guard(ctx context.Context, err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		slog.WarnContext(ctx, "Session rejected by backend, logging out")
		if lerr := s.Logout(ctx); lerr != nil {
			slog.ErrorContext(ctx, "Failed to clear session", "error", lerr)
		}
	}
	return err
}

func (s *FinanceService) canQueue(err error) bool {
	return s.offline && errors.Is(err, api.ErrUnavailable)
}

// fetched is one load of everything the screens show.
type fetched struct {
	accounts   []core.Account
	txs        []core.Transaction
	categories []core.Category
	types      []core.TransactionType
}

func (s *FinanceService) cacheKey(ctx context.Context) string {
	sess, err := s.store.Session()
	if err != nil {
		return "anonymous"
	}
	return string(sess.User.ID) + ":" + sess.Token[:min(8, len(sess.Token))]
}

// taxonomyErr keeps going with an empty list when a taxonomy endpoint fails
// for a reason other than authentication or connectivity.
func taxonomyErr(ctx context.Context, what string, err error) error {
	if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, api.ErrUnavailable) || ctx.Err() != nil {
		return err
	}
	slog.WarnContext(ctx, "Failed to load "+what, "error", err)
	return nil
}

func (s *FinanceService) loadCategories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.categories.GetOrLoad(ctx, s.cacheKey(ctx), s.backend.Categories)
	if err != nil {
		return s.store.Snapshot().Categories, taxonomyErr(ctx, "categories", err)
	}
	return cats, nil
}

func (s *FinanceService) loadTypes(ctx context.Context) ([]core.TransactionType, error) {
	types, err := s.types.GetOrLoad(ctx, s.cacheKey(ctx), s.backend.TransactionTypes)
	if err != nil {
		return s.store.Snapshot().Types, taxonomyErr(ctx, "transaction types", err)
	}
	return types, nil
}

// fetchSequential loads accounts first and transactions second, the order
// used after every mutation.
func (s *FinanceService) fetchSequential(ctx context.Context) (fetched, error) {
	var f fetched
	var err error
	if f.accounts, err = s.backend.Accounts(ctx); err != nil {
		return f, err
	}
	if f.types, err = s.loadTypes(ctx); err != nil {
		return f, err
	}
	if f.txs, err = s.backend.Transactions(ctx, f.types); err != nil {
		return f, err
	}
	if f.categories, err = s.loadCategories(ctx); err != nil {
		return f, err
	}
	return f, nil
}

func (s *FinanceService) fetchConcurrent(ctx context.Context) (fetched, error) {
	var f fetched
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		f.accounts, err = s.backend.Accounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		if f.types, err = s.loadTypes(gctx); err != nil {
			return err
		}
		f.txs, err = s.backend.Transactions(gctx, f.types)
		return err
	})
	g.Go(func() error {
		var err error
		f.categories, err = s.loadCategories(gctx)
		return err
	})
	return f, g.Wait()
}

// install stores a load unless a newer change landed while it was in flight.
func (s *FinanceService) install(ctx context.Context, since int64, f fetched) bool {
	if !s.store.ReplaceAll(since, f.accounts, f.txs, f.categories, f.types) {
		slog.DebugContext(ctx, "Dropped stale load", "since", since, "version", s.store.Version())
		return false
	}
	if err := s.persist.SaveSnapshot(ctx, s.store.Snapshot()); err != nil {
		slog.WarnContext(ctx, "Failed to save snapshot", "error", err)
	}
	return true
}

func (s *FinanceService) refetch(ctx context.Context) error {
	since := s.store.Version()
	f, err := s.fetchSequential(ctx)
	if err != nil {
		return s.guard(ctx, err)
	}
	s.install(ctx, since, f)
	return nil
}

// Refresh reloads accounts and transactions from the backend. Concurrent
// callers share one load.
func (s *FinanceService) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		return nil, s.refetch(ctx)
	})
	return err
}

// afterMutation reloads server state. Loads started before the mutation are
// discarded first so they cannot overwrite it.
func (s *FinanceService) afterMutation(ctx context.Context) {
	s.store.Invalidate()
	if err := s.refetch(ctx); err != nil {
		slog.WarnContext(ctx, "Refetch after mutation failed", "error", err)
	}
}

// View is what every screen reads: confirmed data with pending changes applied.
type View struct {
	Projection
	// Confirmed holds the accounts as the backend last reported them, from the
	// same snapshot as the projection.
	Confirmed  []core.Account
	Categories []core.Category
	Types      []core.TransactionType
	// Stale is set when the backend was unreachable and cached data is shown.
	Stale   bool
	Version int64
}

func (s *FinanceService) load(ctx context.Context, concurrent bool) (View, error) {
	if _, err := s.store.Session(); err != nil {
		return View{}, err
	}

	since := s.store.Version()
	var f fetched
	var err error
	if concurrent {
		f, err = s.fetchConcurrent(ctx)
	} else {
		f, err = s.fetchSequential(ctx)
	}

	stale := false
	switch {
	case err == nil:
		s.install(ctx, since, f)
	case s.canQueue(err):
		if !s.store.Loaded() {
			if rerr := s.Restore(ctx); rerr != nil {
				slog.WarnContext(ctx, "Failed to restore snapshot", "error", rerr)
			}
		}
		if !s.store.Loaded() {
			return View{}, err
		}
		stale = true
	default:
		return View{}, s.guard(ctx, err)
	}

	return s.project(ctx, stale), nil
}

func (s *FinanceService) project(ctx context.Context, stale bool) View {
	snap := s.store.Snapshot()
	pending, err := s.persist.Pending(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read outbox", "error", err)
	}
	return View{
		Projection: Project(snap.Accounts, snap.Transactions, pending),
		Confirmed:  snap.Accounts,
		Categories: snap.Categories,
		Types:      snap.Types,
		Stale:      stale,
		Version:    snap.Version,
	}
}

// Load returns the current view after a sequential refetch.
func (s *FinanceService) Load(ctx context.Context) (View, error) {
	return s.load(ctx, false)
}

// AccountBalance is an account as shown on the dashboard. Balance includes
// queued changes, Confirmed is what the backend last reported.
type AccountBalance struct {
	core.Account
	BankLabel string     `json:"bankLabel"`
	Confirmed core.Money `json:"confirmedBalance"`
}

type Dashboard struct {
	Accounts          []AccountBalance      `json:"accounts"`
	TotalBalance      core.Money            `json:"totalBalance"`
	Totals            core.Totals           `json:"totals"`
	CurrentMonth      core.Totals           `json:"currentMonth"`
	IncomeByCategory  []core.CategoryAmount `json:"incomeByCategory"`
	ExpenseByCategory []core.CategoryAmount `json:"expenseByCategory"`
	LastIncome        *core.Transaction     `json:"lastIncome,omitempty"`
	LastExpense       *core.Transaction     `json:"lastExpense,omitempty"`
	Pending           int                   `json:"pending"`
	Stale             bool                  `json:"stale"`
	Version           int64                 `json:"version"`
}

// Dashboard loads accounts, transactions and the taxonomy concurrently and
// summarizes them.
func (s *FinanceService) Dashboard(ctx context.Context) (Dashboard, error) {
	v, err := s.load(ctx, true)
	if err != nil {
		return Dashboard{}, err
	}

	confirmed := make(map[core.AccountID]core.Money)
	for _, a := range v.Confirmed {
		confirmed[a.ID] = a.Balance
	}
	accounts := make([]AccountBalance, len(v.Accounts))
	for i, a := range v.Accounts {
		accounts[i] = AccountBalance{Account: a, BankLabel: core.BankLabel(a.Bank), Confirmed: confirmed[a.ID]}
	}

	now := s.now()
	d := Dashboard{
		Accounts:          accounts,
		TotalBalance:      v.Queued.Total,
		Totals:            ledger.Totals(v.Transactions),
		CurrentMonth:      ledger.Totals(ledger.InMonth(v.Transactions, now.Year(), now.Month())),
		IncomeByCategory:  ledger.NameCategories(ledger.ByCategory(v.Transactions, core.Income), v.Categories),
		ExpenseByCategory: ledger.NameCategories(ledger.ByCategory(v.Transactions, core.Expense), v.Categories),
		Pending:           v.Pending,
		Stale:             v.Stale,
		Version:           v.Version,
	}
	if tx, ok := ledger.Latest(v.Transactions, core.Income); ok {
		d.LastIncome = &tx
	}
	if tx, ok := ledger.Latest(v.Transactions, core.Expense); ok {
		d.LastExpense = &tx
	}
	return d, nil
}

type Charts struct {
	Monthly           []core.MonthAmount    `json:"monthly"`
	IncomeByCategory  []core.CategoryAmount `json:"incomeByCategory"`
	ExpenseByCategory []core.CategoryAmount `json:"expenseByCategory"`
	Stale             bool                  `json:"stale"`
}

func (s *FinanceService) Charts(ctx context.Context) (Charts, error) {
	v, err := s.load(ctx, true)
	if err != nil {
		return Charts{}, err
	}
	return Charts{
		Monthly:           ledger.ByMonth(v.Transactions),
		IncomeByCategory:  ledger.NameCategories(ledger.ByCategory(v.Transactions, core.Income), v.Categories),
		ExpenseByCategory: ledger.NameCategories(ledger.ByCategory(v.Transactions, core.Expense), v.Categories),
		Stale:             v.Stale,
	}, nil
}

// TransactionList is the transactions screen: the filtered list plus what is
// needed to label it.
type TransactionList struct {
	Transactions []core.Transaction `json:"transactions"`
	Totals       core.Totals        `json:"totals"`
	Accounts     []core.Account     `json:"accounts"`
	Categories   []core.Category    `json:"categories"`
	Stale        bool               `json:"stale"`
}

func (s *FinanceService) Transactions(ctx context.Context, f ledger.TransactionFilter) (TransactionList, error) {
	v, err := s.load(ctx, false)
	if err != nil {
		return TransactionList{}, err
	}
	txs := ledger.Filter(v.Transactions, f)
	return TransactionList{
		Transactions: txs,
		Totals:       ledger.Totals(txs),
		Accounts:     v.Accounts,
		Categories:   v.Categories,
		Stale:        v.Stale,
	}, nil
}

// Transaction finds one transaction, queued ones included.
func (s *FinanceService) Transaction(ctx context.Context, id core.TransactionID) (core.Transaction, error) {
	v := s.project(ctx, false)
	i := slices.IndexFunc(v.Transactions, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		v, err := s.load(ctx, false)
		if err != nil {
			return core.Transaction{}, err
		}
		if i = slices.IndexFunc(v.Transactions, func(t core.Transaction) bool { return t.ID == id }); i < 0 {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, state.ErrNotFound)
		}
		return v.Transactions[i], nil
	}
	return v.Transactions[i], nil
}

func (s *FinanceService) Accounts(ctx context.Context) ([]core.Account, bool, error) {
	v, err := s.load(ctx, false)
	if err != nil {
		return nil, false, err
	}
	return v.Accounts, v.Stale, nil
}

func (s *FinanceService) Account(ctx context.Context, id core.AccountID) (core.Account, error) {
	a, err := s.backend.Account(ctx, id)
	if err == nil {
		return a, nil
	}
	if !s.canQueue(err) {
		return core.Account{}, s.guard(ctx, err)
	}
	for _, a := range s.project(ctx, true).Accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return core.Account{}, err
}

func (s *FinanceService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.CPF = core.NormalizeCPF(a.CPF)
	if err := a.ValidateAt(s.now()); err != nil {
		return core.Account{}, err
	}
	created, err := s.backend.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, s.guard(ctx, err)
	}
	slog.InfoContext(ctx, "Account created", "account_id", created.ID, "bank", created.Bank)
	s.afterMutation(ctx)
	return created, nil
}

// UpdateAccount edits the holder details. The backend stores whatever balance
// it receives, so the current one is read back and sent unchanged: balances
// move only through deposits, withdrawals and transactions.
func (s *FinanceService) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.CPF = core.NormalizeCPF(a.CPF)
	if err := a.ValidateAt(s.now()); err != nil {
		return core.Account{}, err
	}
	current, err := s.backend.Account(ctx, a.ID)
	if err != nil {
		return core.Account{}, s.guard(ctx, err)
	}
	a.Balance = current.Balance
	updated, err := s.backend.UpdateAccount(ctx, a)
	if err != nil {
		return core.Account{}, s.guard(ctx, err)
	}
	slog.InfoContext(ctx, "Account updated", "account_id", a.ID)
	s.afterMutation(ctx)
	return updated, nil
}

func (s *FinanceService) DeleteAccount(ctx context.Context, id core.AccountID) error {
	if err := s.backend.DeleteAccount(ctx, id); err != nil {
		return s.guard(ctx, err)
	}
	slog.InfoContext(ctx, "Account deleted", "account_id", id)
	s.afterMutation(ctx)
	return nil
}

func (s *FinanceService) Deposit(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	return s.move(ctx, id, amount, s.backend.Deposit, "Deposit")
}

func (s *FinanceService) Withdraw(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error) {
	return s.move(ctx, id, amount, s.backend.Withdraw, "Withdrawal")
}

func (s *FinanceService) move(
	ctx context.Context,
	id core.AccountID,
	amount core.Money,
	call func(context.Context, core.AccountID, core.Money) (core.Account, error),
	what string,
) (core.Account, error) {
	if err := amount.Validate(); err != nil {
		return core.Account{}, core.ValidationErrors{}.Add("value", err)
	}
	a, err := call(ctx, id, amount)
	if err != nil {
		return core.Account{}, s.guard(ctx, err)
	}
	slog.InfoContext(ctx, what+" recorded", "account_id", id, "amount", amount.StringFixed(2))
	s.afterMutation(ctx)
	return a, nil
}

func (s *FinanceService) Movements(ctx context.Context, id core.AccountID) ([]core.Movement, error) {
	ms, err := s.backend.Movements(ctx, id)
	if err != nil {
		return nil, s.guard(ctx, err)
	}
	return ms, nil
}

func (s *FinanceService) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.loadCategories(ctx)
	if err != nil && !s.canQueue(err) {
		return nil, s.guard(ctx, err)
	}
	return cats, nil
}

func (s *FinanceService) TransactionTypes(ctx context.Context) ([]core.TransactionType, error) {
	types, err := s.loadTypes(ctx)
	if err != nil && !s.canQueue(err) {
		return nil, s.guard(ctx, err)
	}
	return types, nil
}

func (s *FinanceService) UpdateTransactionType(ctx context.Context, tt core.TransactionType) (core.TransactionType, error) {
	var errs core.ValidationErrors
	if strings.TrimSpace(tt.Name) == "" {
		errs = errs.Add("name", core.ErrEmptyName)
	}
	if err := errs.Err(); err != nil {
		return core.TransactionType{}, err
	}
	updated, err := s.backend.UpdateTransactionType(ctx, tt)
	if err != nil {
		return core.TransactionType{}, s.guard(ctx, err)
	}
	s.types.Purge()
	return updated, nil
}

func (s *FinanceService) DeleteTransactionType(ctx context.Context, id core.TransactionTypeID) error {
	if err := s.backend.DeleteTransactionType(ctx, id); err != nil {
		return s.guard(ctx, err)
	}
	s.types.Purge()
	return nil
}

// typeIDFor finds the backend type row of a kind.
func (s *FinanceService) typeIDFor(ctx context.Context, kind core.Kind) (core.TransactionTypeID, error) {
	types, err := s.loadTypes(ctx)
	if err != nil {
		return "", err
	}
	for _, tt := range types {
		if k, ok := tt.Kind(); ok && k == kind {
			return tt.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoTransactionType, kind)
}

func (s *FinanceService) input(ctx context.Context, tx core.Transaction) (api.TransactionInput, error) {
	sess, err := s.Session(ctx)
	if err != nil {
		return api.TransactionInput{}, err
	}
	typeID, err := s.typeIDFor(ctx, tx.Kind)
	if err != nil {
		return api.TransactionInput{}, err
	}
	return api.TransactionInput{Transaction: tx, TypeID: typeID, UserID: sess.User.ID}, nil
}

// TransactionResult reports a transaction change. Queued is set when the
// change is waiting in the outbox.
type TransactionResult struct {
	Transaction core.Transaction `json:"transaction"`
	Queued      bool             `json:"queued"`
}

// queuedAhead reports whether the outbox still holds a change that must reach
// the backend before a new one for id. Changes to a transaction wait for its
// queued changes and for any queued clear-all; a clear-all (empty id) waits
// for everything.
func (s *FinanceService) queuedAhead(ctx context.Context, id core.TransactionID, op state.Operation) (bool, error) {
	if !s.offline {
		return false, nil
	}
	pending, err := s.persist.Pending(ctx)
	if err != nil {
		return false, fmt.Errorf("read outbox: %w", err)
	}
	for _, it := range pending {
		switch {
		case op == state.OpClearAll, it.Operation == state.OpClearAll:
			return true, nil
		case id != "" && it.TransactionID == id:
			return true, nil
		}
	}
	return false, nil
}

func (s *FinanceService) CreateTransaction(ctx context.Context, tx core.Transaction) (TransactionResult, error) {
	if err := tx.Validate(); err != nil {
		return TransactionResult{}, err
	}

	behind, err := s.queuedAhead(ctx, "", state.OpCreate)
	if err != nil {
		return TransactionResult{}, err
	}
	if behind {
		tx.ID = core.TransactionID(core.LocalIDPrefix + uuid.NewString())
		return s.enqueue(ctx, state.OpCreate, tx)
	}

	in, err := s.input(ctx, tx)
	if err == nil {
		var created core.Transaction
		if created, err = s.backend.CreateTransaction(ctx, in); err == nil {
			slog.InfoContext(ctx, "Transaction created", "transaction_id", created.ID, "type", created.Kind)
			s.afterMutation(ctx)
			return TransactionResult{Transaction: created}, nil
		}
	}
	if s.canQueue(err) {
		tx.ID = core.TransactionID(core.LocalIDPrefix + uuid.NewString())
		return s.enqueue(ctx, state.OpCreate, tx)
	}
	return TransactionResult{}, s.guard(ctx, err)
}

func (s *FinanceService) UpdateTransaction(ctx context.Context, tx core.Transaction) (TransactionResult, error) {
	if err := tx.Validate(); err != nil {
		return TransactionResult{}, err
	}
	if tx.ID == "" {
		return TransactionResult{}, core.ValidationErrors{}.Add("id", core.ErrInvalidID)
	}
	// Not on the backend yet: queue behind the create.
	if tx.ID.IsLocal() {
		return s.enqueue(ctx, state.OpUpdate, tx)
	}
	behind, err := s.queuedAhead(ctx, tx.ID, state.OpUpdate)
	if err != nil {
		return TransactionResult{}, err
	}
	if behind {
		return s.enqueue(ctx, state.OpUpdate, tx)
	}

	in, err := s.input(ctx, tx)
	if err == nil {
		var updated core.Transaction
		if updated, err = s.backend.UpdateTransaction(ctx, in); err == nil {
			slog.InfoContext(ctx, "Transaction updated", "transaction_id", tx.ID)
			s.afterMutation(ctx)
			return TransactionResult{Transaction: updated}, nil
		}
	}
	if s.canQueue(err) {
		return s.enqueue(ctx, state.OpUpdate, tx)
	}
	return TransactionResult{}, s.guard(ctx, err)
}

func (s *FinanceService) DeleteTransaction(ctx context.Context, id core.TransactionID) (TransactionResult, error) {
	if id == "" {
		return TransactionResult{}, core.ValidationErrors{}.Add("id", core.ErrInvalidID)
	}
	old := core.Transaction{ID: id}
	if found, err := s.Transaction(ctx, id); err == nil {
		old = found
	}
	if id.IsLocal() {
		return s.enqueue(ctx, state.OpDelete, old)
	}
	behind, err := s.queuedAhead(ctx, id, state.OpDelete)
	if err != nil {
		return TransactionResult{}, err
	}
	if behind {
		return s.enqueue(ctx, state.OpDelete, old)
	}

	err = s.backend.DeleteTransaction(ctx, id)
	if err == nil {
		slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id)
		s.afterMutation(ctx)
		return TransactionResult{Transaction: old}, nil
	}
	if s.canQueue(err) {
		return s.enqueue(ctx, state.OpDelete, old)
	}
	return TransactionResult{}, s.guard(ctx, err)
}

// ClearTransactions removes every transaction of the user.
func (s *FinanceService) ClearTransactions(ctx context.Context) (TransactionResult, error) {
	behind, err := s.queuedAhead(ctx, "", state.OpClearAll)
	if err != nil {
		return TransactionResult{}, err
	}
	if behind {
		return s.enqueue(ctx, state.OpClearAll, core.Transaction{})
	}

	err = s.backend.ClearTransactions(ctx)
	if err == nil {
		slog.InfoContext(ctx, "All transactions cleared")
		s.afterMutation(ctx)
		return TransactionResult{}, nil
	}
	if s.canQueue(err) {
		return s.enqueue(ctx, state.OpClearAll, core.Transaction{})
	}
	return TransactionResult{}, s.guard(ctx, err)
}

func (s *FinanceService) enqueue(ctx context.Context, op state.Operation, tx core.Transaction) (TransactionResult, error) {
	id, err := s.persist.Enqueue(ctx, state.OutboxItem{
		Operation:     op,
		TransactionID: tx.ID,
		Transaction:   tx,
	})
	if err != nil {
		return TransactionResult{}, fmt.Errorf("queue %s: %w", op, err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishOutbox(ctx, id, string(op), tx.ID.String()); err != nil {
			slog.WarnContext(ctx, "Failed to publish outbox message, worker will poll",
				"outbox_id", id, "error", err)
		}
	}
	s.store.Invalidate()
	slog.InfoContext(ctx, "Transaction change queued",
		"outbox_id", id,
		"operation", op,
		"transaction_id", tx.ID)
	return TransactionResult{Transaction: tx, Queued: true}, nil
}

// Replay sends one outbox item to the backend. For creates it returns the
// transaction with the id the backend assigned and points later items at it.
func (s *FinanceService) Replay(ctx context.Context, item state.OutboxItem) (core.Transaction, error) {
	tx := item.Transaction
	tx.ID = item.TransactionID

	switch item.Operation {
	case state.OpCreate:
		in, err := s.input(ctx, tx)
		if err != nil {
			return core.Transaction{}, err
		}
		in.Transaction.ID = ""
		created, err := s.backend.CreateTransaction(ctx, in)
		if err != nil {
			return core.Transaction{}, err
		}
		// The create went through; failing here would replay it twice.
		if item.TransactionID.IsLocal() && created.ID != "" {
			if err := s.persist.RemapTransaction(ctx, item.TransactionID, created.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to remap queued transaction id",
					"from", item.TransactionID, "to", created.ID, "error", err)
			}
		}
		return created, nil

	case state.OpUpdate:
		if tx.ID.IsLocal() {
			return core.Transaction{}, fmt.Errorf("%w: %s", ErrNeverCreated, tx.ID)
		}
		in, err := s.input(ctx, tx)
		if err != nil {
			return core.Transaction{}, err
		}
		return s.backend.UpdateTransaction(ctx, in)

	case state.OpDelete:
		if tx.ID.IsLocal() {
			return core.Transaction{}, fmt.Errorf("%w: %s", ErrNeverCreated, tx.ID)
		}
		err := s.backend.DeleteTransaction(ctx, tx.ID)
		if be, ok := api.AsBusiness(err); ok && be.NotFound() {
			err = nil
		}
		return tx, err

	case state.OpClearAll:
		return core.Transaction{}, s.backend.ClearTransactions(ctx)
	}
	return core.Transaction{}, fmt.Errorf("unknown operation: %s", item.Operation)
}

// AccountLabel names the account of tx for display and export.
func (s *FinanceService) AccountLabel(tx core.Transaction) string {
	return core.AccountLabel(tx.Account, s.store.Snapshot().Accounts)
}

// CategoryName resolves a category id against the loaded categories.
func (s *FinanceService) CategoryName(ctx context.Context, id core.CategoryID) string {
	cats, _ := s.loadCategories(ctx)
	for _, c := range cats {
		if c.ID == id && c.Name != "" {
			return c.Name
		}
	}
	return core.CategoryLabel(id)
}

// Pending lists the outbox items not yet replayed.
func (s *FinanceService) Pending(ctx context.Context) ([]state.OutboxItem, error) {
	return s.persist.Pending(ctx)
}

// Health reports whether the backend answers.
func (s *FinanceService) Health(ctx context.Context) error {
	return s.backend.Health(ctx)
}
