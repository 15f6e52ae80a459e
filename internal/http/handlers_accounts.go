package http

import (
	"context"
	"net/http"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/log"
)

// accountView adds what the accounts page shows next to each account.
type accountView struct {
	core.Account
	BankLabel string `json:"bankLabel"`
	CPF       string `json:"cpfFormatted,omitempty"`
}

func newAccountView(a core.Account) accountView {
	v := accountView{Account: a, BankLabel: core.BankLabel(a.Bank)}
	if a.CPF != "" {
		v.CPF = core.FormatCPF(a.CPF)
	}
	return v
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, stale, err := s.finance.Accounts(r.Context())
	if err != nil {
		writeError(w, r, err, "list_accounts")
		return
	}
	views := make([]accountView, len(accounts))
	for i, a := range accounts {
		views[i] = newAccountView(a)
	}
	resp := NewResponse().Data(map[string]any{"accounts": views, "stale": stale})
	if stale {
		resp.NotifyWarning(msgStale)
	}
	resp.Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.finance.Account(r.Context(), accountIDParam(r))
	if err != nil {
		writeError(w, r, err, "get_account")
		return
	}
	NewResponse().Data(newAccountView(a)).Write(w)
}

// readAccount builds an account from the account form. The balance is only
// read on create; edits keep the stored one.
func readAccount(w http.ResponseWriter, r *http.Request, withBalance bool) (core.Account, bool) {
	p, ok := parseBody(w, r)
	if !ok {
		return core.Account{}, false
	}
	f := p.Fields()
	a := core.Account{
		Name:        sanitizeInput(f.String("name")),
		Bank:        f.String("bank"),
		CPF:         core.NormalizeCPF(f.String("cpf")),
		DateOfBirth: f.Date("dateOfBirth"),
	}
	if withBalance {
		a.Balance = f.Balance("balance")
	}
	if err := f.Err(); err != nil {
		writeError(w, r, err, "read_account")
		return core.Account{}, false
	}
	return a, true
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	a, ok := readAccount(w, r, true)
	if !ok {
		return
	}
	created, err := s.finance.CreateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err, "create_account")
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Data(newAccountView(created)).
		NotifySuccess("Conta criada com sucesso!").
		Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	a, ok := readAccount(w, r, false)
	if !ok {
		return
	}
	a.ID = accountIDParam(r)
	updated, err := s.finance.UpdateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err, "update_account")
		return
	}
	NewResponse().
		Data(newAccountView(updated)).
		NotifySuccess("Conta atualizada com sucesso!").
		Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := accountIDParam(r)
	if err := s.finance.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err, "delete_account")
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Account deleted", log.FieldAccountID, id)
	NewResponse().NotifySuccess("Conta excluída com sucesso!").Write(w)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, s.finance.Deposit, "deposit", "Depósito realizado com sucesso!")
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleMove(w, r, s.finance.Withdraw, "withdraw", "Saque realizado com sucesso!")
}

// handleMove reads {"value": ...} and moves money in or out of an account.
// An overdraft comes back from the backend as a business error.
func (s *Server) handleMove(
	w http.ResponseWriter,
	r *http.Request,
	move func(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error),
	operation, success string,
) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	f := p.Fields()
	amount := f.Amount("value")
	if err := f.Err(); err != nil {
		writeError(w, r, err, operation)
		return
	}

	a, err := move(r.Context(), accountIDParam(r), amount)
	if err != nil {
		writeError(w, r, err, operation)
		return
	}
	NewResponse().Data(newAccountView(a)).NotifySuccess(success).Write(w)
}

func (s *Server) handleMovements(w http.ResponseWriter, r *http.Request) {
	ms, err := s.finance.Movements(r.Context(), accountIDParam(r))
	if err != nil {
		writeError(w, r, err, "movements")
		return
	}
	if ms == nil {
		ms = []core.Movement{}
	}
	NewResponse().Data(ms).Write(w)
}
