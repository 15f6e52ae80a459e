package http

import (
	"context"
	"net/http"

	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/log"
	"github.com/GMosna/ContabilApp/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseTransactionFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "list_transactions")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, err := s.finance.Transactions(ctx, filter)
	if err != nil {
		writeError(w, r, err, "list_transactions")
		return
	}
	if list.Transactions == nil {
		list.Transactions = []core.Transaction{}
	}
	resp := NewResponse().Data(list)
	if list.Stale {
		resp.NotifyWarning(msgStale)
	}
	resp.Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.finance.Transaction(r.Context(), transactionIDParam(r))
	if err != nil {
		writeError(w, r, err, "get_transaction")
		return
	}
	NewResponse().Data(tx).Write(w)
}

// readTransaction builds a transaction from the transaction form. The date
// defaults to today; an empty account or "cash" means paid in cash.
func readTransaction(w http.ResponseWriter, r *http.Request) (core.Transaction, bool) {
	p, ok := parseBody(w, r)
	if !ok {
		return core.Transaction{}, false
	}
	f := p.Fields()
	tx := core.Transaction{
		Description: sanitizeInput(f.String("description")),
		Amount:      f.Amount("amount"),
		Kind:        f.Kind("type"),
		Category:    core.CategoryID(sanitizeInput(f.String("category"))),
		Date:        f.Date("date"),
		Account:     f.AccountRef("accountId"),
	}
	if err := f.Err(); err != nil {
		writeError(w, r, err, "read_transaction")
		return core.Transaction{}, false
	}
	if tx.Date.IsZero() {
		tx.Date = core.Today()
	}
	return tx, true
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := readTransaction(w, r)
	if !ok {
		return
	}
	res, err := s.finance.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, err, "create_transaction")
		return
	}
	logStored(r.Context(), s.logger, "create", res)
	transactionResponse(res, "Transação adicionada com sucesso!").
		Status(http.StatusCreated).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := readTransaction(w, r)
	if !ok {
		return
	}
	tx.ID = transactionIDParam(r)
	res, err := s.finance.UpdateTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, err, "update_transaction")
		return
	}
	logStored(r.Context(), s.logger, "update", res)
	transactionResponse(res, "Transação atualizada com sucesso!").Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	res, err := s.finance.DeleteTransaction(r.Context(), transactionIDParam(r))
	if err != nil {
		writeError(w, r, err, "delete_transaction")
		return
	}
	logStored(r.Context(), s.logger, "delete", res)
	transactionResponse(res, "Transação excluída com sucesso!").Write(w)
}

// handleClearTransactions deletes every transaction, unwinding their effect
// on the account balances.
func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	res, err := s.finance.ClearTransactions(r.Context())
	if err != nil {
		writeError(w, r, err, "clear_transactions")
		return
	}
	transactionResponse(res, "Todas as transações foram excluídas.").Write(w)
}

// transactionResponse reports a confirmed change as a success and a queued
// one as a warning.
func transactionResponse(res services.TransactionResult, success string) *ResponseBuilder {
	resp := NewResponse().Data(res.Transaction).Queued(res.Queued)
	if res.Queued {
		return resp.NotifyWarning(msgQueued)
	}
	return resp.NotifySuccess(success)
}

func logStored(ctx context.Context, logger *log.Logger, op string, res services.TransactionResult) {
	tx := res.Transaction
	log.NewStructuredLogger(logger).LogTransactionStored(ctx, op,
		tx.ID.String(),
		string(tx.Kind),
		tx.Category.String(),
		tx.Amount.StringFixed(2),
		tx.Account.String(),
		res.Queued)
}
